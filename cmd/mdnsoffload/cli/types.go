// Package cli provides the Kong-based command-line interface for
// mdnsoffload.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/frobware/go-mdnsoffload"
)

// AppID is an application id given on the command line. Full uids
// are accepted and reduced to their app id.
type AppID struct {
	Value mdnsoffload.AppID
}

// ParseAppID parses a decimal app id or uid.
func ParseAppID(s string) (AppID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AppID{}, fmt.Errorf("app id cannot be empty")
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return AppID{}, fmt.Errorf("invalid app id %q: %w", s, err)
	}
	return AppID{Value: mdnsoffload.AppIDFromUID(uint32(v))}, nil
}

// ResourceRecord is a DNS record in zone file syntax, for example
// "atv.local. 120 IN A 192.0.2.1".
type ResourceRecord struct {
	RR dns.RR
}

// ParseResourceRecord parses one zone file line.
func ParseResourceRecord(s string) (ResourceRecord, error) {
	rr, err := dns.NewRR(s)
	if err != nil {
		return ResourceRecord{}, fmt.Errorf("invalid record %q: %w", s, err)
	}
	if rr == nil {
		return ResourceRecord{}, fmt.Errorf("record cannot be empty")
	}
	return ResourceRecord{RR: rr}, nil
}

// OnOff is a boolean given as on/off, true/false or yes/no.
type OnOff struct {
	Value bool
}

// ParseOnOff parses a boolean word.
func ParseOnOff(s string) (OnOff, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return OnOff{Value: true}, nil
	case "off", "false", "no", "0":
		return OnOff{Value: false}, nil
	default:
		return OnOff{}, fmt.Errorf("expected on or off, got %q", s)
	}
}
