// Package mdnsoffload holds the domain types shared by the offload
// daemon: the intents clients register, the match metadata derived
// from their response packets, and the keys that identify them in the
// registry and on the companion device.
package mdnsoffload

import (
	"fmt"
	"strings"
)

// MatchCriteria identifies one answer record within a response packet:
// its record type and the byte offset of its owner name.
type MatchCriteria struct {
	Type       uint16 `cbor:"type"`
	NameOffset uint32 `cbor:"name_offset"`
}

// ProtocolData is a client-submitted response packet together with the
// match criteria extracted from it. It is never mutated after parsing.
type ProtocolData struct {
	RawPacket     []byte          `cbor:"raw_packet"`
	MatchCriteria []MatchCriteria `cbor:"match_criteria"`
}

// RecordKey is the registry-assigned identifier of an offload intent.
// Keys start at 1 and are never reused within a process lifetime.
type RecordKey uint32

// DeviceKey is the opaque handle the companion device returns for an
// offloaded response. It is distinct from RecordKey.
type DeviceKey int32

// InvalidDeviceKey is returned by the device when it declines an
// offloaded response.
const InvalidDeviceKey DeviceKey = -1

// OwnerToken identifies the lifetime of a registering client. All
// removals must present the token used at registration.
type OwnerToken string

// AppID identifies the application owning an intent. The allow-list is
// expressed in terms of AppIDs.
type AppID uint32

// perUserRange is the number of uids reserved per user.
const perUserRange = 100000

// AppIDFromUID strips the user component from a uid.
func AppIDFromUID(uid uint32) AppID {
	return AppID(uid % perUserRange)
}

// OffloadIntent is a request that the device answer queries with the
// given protocol data on the given interface.
type OffloadIntent struct {
	Interface    string
	RecordKey    RecordKey
	ProtocolData ProtocolData
	Owner        OwnerToken
	Priority     int64
	AppID        AppID
}

// PassthroughIntent is a request that queries for a name bypass the
// device filter on the given interface.
type PassthroughIntent struct {
	Interface      string
	OriginalQName  string
	CanonicalQName string
	Owner          OwnerToken
	Priority       int64
	AppID          AppID
}

// PassthroughMode selects how the device treats queries that are not
// answered by an offloaded response.
type PassthroughMode int

const (
	PassthroughForwardAll PassthroughMode = iota
	PassthroughDropAll
	PassthroughExplicitList
)

// String returns the string representation of the passthrough mode.
func (m PassthroughMode) String() string {
	switch m {
	case PassthroughForwardAll:
		return "forward-all"
	case PassthroughDropAll:
		return "drop-all"
	case PassthroughExplicitList:
		return "explicit-list"
	default:
		return fmt.Sprintf("PassthroughMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m PassthroughMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PassthroughMode) UnmarshalText(text []byte) error {
	mode, err := ParsePassthroughMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParsePassthroughMode parses the output of PassthroughMode.String.
func ParsePassthroughMode(s string) (PassthroughMode, error) {
	switch strings.ToLower(s) {
	case "forward-all":
		return PassthroughForwardAll, nil
	case "drop-all":
		return PassthroughDropAll, nil
	case "explicit-list":
		return PassthroughExplicitList, nil
	default:
		return PassthroughForwardAll, fmt.Errorf("unknown passthrough mode: %q", s)
	}
}
