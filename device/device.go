// Package device defines the contract the offload engine consumes from
// the companion device. Implementations live in device/fake (in-memory)
// and device/remote (gRPC).
package device

import (
	"context"

	"github.com/frobware/go-mdnsoffload"
)

// ProtocolResponses manages offloaded responses.
type ProtocolResponses interface {
	// AddProtocolResponse offloads data on iface. A device that is full
	// returns mdnsoffload.InvalidDeviceKey and a nil error.
	AddProtocolResponse(ctx context.Context, iface string, data mdnsoffload.ProtocolData) (mdnsoffload.DeviceKey, error)
	RemoveProtocolResponse(ctx context.Context, key mdnsoffload.DeviceKey) error
}

// Passthrough manages the per-interface passthrough list.
type Passthrough interface {
	// AddPassthroughEntry reports false when the list is full or the
	// name is not acceptable to the device.
	AddPassthroughEntry(ctx context.Context, iface, name string) (bool, error)
	RemovePassthroughEntry(ctx context.Context, iface, name string) error
	SetPassthroughMode(ctx context.Context, iface string, mode mdnsoffload.PassthroughMode) error
}

// Control covers device-wide state and counters.
type Control interface {
	ResetAll(ctx context.Context) error
	SetGlobalOffloadEnabled(ctx context.Context, enabled bool) error
	TakeAndResetHitCounter(ctx context.Context, key mdnsoffload.DeviceKey) (int, error)
	TakeAndResetMissCounter(ctx context.Context) (int, error)
}

// Device is the complete companion-device contract.
type Device interface {
	ProtocolResponses
	Passthrough
	Control
}
