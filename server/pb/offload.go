// Package pb defines the messages and service descriptor of the
// mdnsoffload command surface. Messages are plain structs carried by
// the CBOR codec registered in package codec.
package pb

// Empty is used by calls with no arguments or no result.
type Empty struct{}

// SessionRequest opens an owner session.
type SessionRequest struct {
	// Name is a free-form label for logs.
	Name string `cbor:"name,omitempty"`
}

// SessionEvent is sent on a session stream. The first event carries
// the owner token.
type SessionEvent struct {
	Token string `cbor:"token"`
	AppID uint32 `cbor:"app_id"`
}

type AddOffloadRequest struct {
	Interface string `cbor:"interface"`
	Packet    []byte `cbor:"packet"`
}

type AddOffloadResponse struct {
	RecordKey uint32 `cbor:"record_key"`
}

type RemoveOffloadRequest struct {
	RecordKey uint32 `cbor:"record_key"`
}

type PassthroughRequest struct {
	Interface string `cbor:"interface"`
	QName     string `cbor:"qname"`
}

type SetAllowListRequest struct {
	AppIDs []uint32 `cbor:"app_ids"`
}

type SetInteractiveRequest struct {
	Interactive bool `cbor:"interactive"`
}

// OffloadIntentInfo describes one registered offload intent.
type OffloadIntentInfo struct {
	RecordKey uint32   `cbor:"record_key"`
	Interface string   `cbor:"interface"`
	Priority  int64    `cbor:"priority"`
	AppID     uint32   `cbor:"app_id"`
	QNames    []string `cbor:"qnames"`
	Packet    []byte   `cbor:"packet"`
}

// PassthroughIntentInfo describes one registered passthrough intent.
type PassthroughIntentInfo struct {
	Interface string `cbor:"interface"`
	QName     string `cbor:"qname"`
	Priority  int64  `cbor:"priority"`
	AppID     uint32 `cbor:"app_id"`
}

// LiveRecord pairs a device key with the record it serves.
type LiveRecord struct {
	DeviceKey int32  `cbor:"device_key"`
	RecordKey uint32 `cbor:"record_key"`
}

// InterfaceInfo is the controller state of one interface.
type InterfaceInfo struct {
	Name        string       `cbor:"name"`
	Available   bool         `cbor:"available"`
	Offloaded   []LiveRecord `cbor:"offloaded"`
	Passthrough []string     `cbor:"passthrough"`
}

type DumpResponse struct {
	Connected      bool                    `cbor:"connected"`
	OffloadEnabled bool                    `cbor:"offload_enabled"`
	Interactive    bool                    `cbor:"interactive"`
	AllowList      []uint32                `cbor:"allow_list"`
	Offload        []OffloadIntentInfo     `cbor:"offload"`
	Passthrough    []PassthroughIntentInfo `cbor:"passthrough"`
	Interfaces     []InterfaceInfo         `cbor:"interfaces"`
}
