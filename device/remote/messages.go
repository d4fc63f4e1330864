package remote

import "github.com/frobware/go-mdnsoffload"

// Wire messages of the device service. Every field is tagged for the
// CBOR codec; unknown fields are ignored by the decoder.

type Empty struct{}

type PingReply struct {
	Version string `cbor:"version"`
}

type AddProtocolResponseRequest struct {
	Interface string                   `cbor:"interface"`
	Data      mdnsoffload.ProtocolData `cbor:"data"`
}

type AddProtocolResponseReply struct {
	Key mdnsoffload.DeviceKey `cbor:"key"`
}

type KeyRequest struct {
	Key mdnsoffload.DeviceKey `cbor:"key"`
}

type PassthroughEntryRequest struct {
	Interface string `cbor:"interface"`
	QName     string `cbor:"qname"`
}

type AddPassthroughEntryReply struct {
	Added bool `cbor:"added"`
}

type SetPassthroughModeRequest struct {
	Interface string                      `cbor:"interface"`
	Mode      mdnsoffload.PassthroughMode `cbor:"mode"`
}

type SetGlobalOffloadEnabledRequest struct {
	Enabled bool `cbor:"enabled"`
}

type CounterReply struct {
	Count int `cbor:"count"`
}
