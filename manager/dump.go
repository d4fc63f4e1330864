package manager

import (
	"context"
	"maps"
	"slices"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/registry"
)

// LiveRecord is one response the manager believes is on the device.
type LiveRecord struct {
	DeviceKey mdnsoffload.DeviceKey
	RecordKey mdnsoffload.RecordKey
}

// InterfaceDump is the state of one interface controller.
type InterfaceDump struct {
	Name        string
	State       State
	Offloaded   []LiveRecord
	Passthrough []string
}

// Dump is a point-in-time view of the manager, taken on the event loop.
type Dump struct {
	Connected      bool
	OffloadEnabled bool
	Interactive    bool
	Registry       registry.Snapshot
	Interfaces     []InterfaceDump
}

// Dump returns a consistent snapshot of all state.
func (m *Manager) Dump(ctx context.Context) (Dump, error) {
	v, err := m.submit(ctx, dumpState{})
	if err != nil {
		return Dump{}, err
	}
	return v.(Dump), nil
}

func (m *Manager) snapshot() Dump {
	d := Dump{
		Connected:      m.rec.Connected(),
		OffloadEnabled: m.rec.OffloadEnabled(),
		Interactive:    m.interactive,
		Registry:       m.reg.Snapshot(),
	}
	for _, c := range m.sortedControllers() {
		tracked := m.rec.TrackedState(c.Interface())
		id := InterfaceDump{
			Name:        c.Interface(),
			State:       c.State(),
			Passthrough: tracked.Passthrough,
		}
		for _, key := range slices.Sorted(maps.Keys(tracked.Offload)) {
			id.Offloaded = append(id.Offloaded, LiveRecord{DeviceKey: key, RecordKey: tracked.Offload[key]})
		}
		d.Interfaces = append(d.Interfaces, id)
	}
	return d
}
