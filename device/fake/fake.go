// Package fake provides an in-memory companion device with the same
// capacity behaviour as real hardware: a bounded number of offloaded
// responses and passthrough names per interface. It records every call
// and supports error injection, and is safe for concurrent use.
package fake

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/frobware/go-mdnsoffload"
)

const (
	DefaultOffloadCapacity     = 3
	DefaultPassthroughCapacity = 4
	DefaultMaxQNameLength      = 255
)

// Op records one call made to the device.
type Op struct {
	Name      string
	Interface string
	Key       mdnsoffload.DeviceKey
	QName     string
	Err       error
}

type record struct {
	key  mdnsoffload.DeviceKey
	data mdnsoffload.ProtocolData
}

type ifaceState struct {
	mode        mdnsoffload.PassthroughMode
	records     []record
	passthrough []string
}

// Option configures a Device.
type Option func(*Device)

// WithOffloadCapacity sets the per-interface offload capacity.
func WithOffloadCapacity(n int) Option {
	return func(d *Device) { d.offloadCapacity = n }
}

// WithPassthroughCapacity sets the per-interface passthrough capacity.
func WithPassthroughCapacity(n int) Option {
	return func(d *Device) { d.passthroughCapacity = n }
}

// WithLogger logs every call at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) { d.logger = logger.With("component", "fake-device") }
}

// Device is an in-memory device.
type Device struct {
	mu sync.Mutex

	offloadCapacity     int
	passthroughCapacity int
	logger              *slog.Logger

	offloadEnabled bool
	nextKey        mdnsoffload.DeviceKey
	missCounter    int
	hitCounters    map[mdnsoffload.DeviceKey]int
	ifaces         map[string]*ifaceState

	ops    []Op
	failOn map[string]error
}

// New returns an empty device.
func New(opts ...Option) *Device {
	d := &Device{
		offloadCapacity:     DefaultOffloadCapacity,
		passthroughCapacity: DefaultPassthroughCapacity,
		logger:              slog.New(slog.DiscardHandler),
		hitCounters:         make(map[mdnsoffload.DeviceKey]int),
		ifaces:              make(map[string]*ifaceState),
		failOn:              make(map[string]error),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FailOn makes every subsequent call of the named operation return err.
// A nil err clears the injection. Names match the method names.
func (d *Device) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failOn, op)
		return
	}
	d.failOn[op] = err
}

func (d *Device) iface(name string) *ifaceState {
	s, ok := d.ifaces[name]
	if !ok {
		s = &ifaceState{mode: mdnsoffload.PassthroughDropAll}
		d.ifaces[name] = s
	}
	return s
}

// begin records op and returns the injected error for it, if any.
// Callers hold d.mu.
func (d *Device) begin(op Op) error {
	op.Err = d.failOn[op.Name]
	d.ops = append(d.ops, op)
	d.logger.Debug(op.Name, "iface", op.Interface, "key", op.Key, "qname", op.QName, "error", op.Err)
	return op.Err
}

func (d *Device) AddProtocolResponse(ctx context.Context, iface string, data mdnsoffload.ProtocolData) (mdnsoffload.DeviceKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(Op{Name: "AddProtocolResponse", Interface: iface}); err != nil {
		return mdnsoffload.InvalidDeviceKey, err
	}
	s := d.iface(iface)
	if len(s.records) >= d.offloadCapacity {
		return mdnsoffload.InvalidDeviceKey, nil
	}
	key := d.nextKey
	d.nextKey++
	s.records = append(s.records, record{key: key, data: data})
	return key, nil
}

func (d *Device) RemoveProtocolResponse(ctx context.Context, key mdnsoffload.DeviceKey) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(Op{Name: "RemoveProtocolResponse", Key: key}); err != nil {
		return err
	}
	for _, s := range d.ifaces {
		s.records = slices.DeleteFunc(s.records, func(r record) bool { return r.key == key })
	}
	return nil
}

func (d *Device) AddPassthroughEntry(ctx context.Context, iface, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(Op{Name: "AddPassthroughEntry", Interface: iface, QName: name}); err != nil {
		return false, err
	}
	s := d.iface(iface)
	if len(s.passthrough) >= d.passthroughCapacity || len(name) > DefaultMaxQNameLength {
		return false, nil
	}
	s.passthrough = append(s.passthrough, name)
	return true, nil
}

func (d *Device) RemovePassthroughEntry(ctx context.Context, iface, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(Op{Name: "RemovePassthroughEntry", Interface: iface, QName: name}); err != nil {
		return err
	}
	s := d.iface(iface)
	if i := slices.Index(s.passthrough, name); i >= 0 {
		s.passthrough = slices.Delete(s.passthrough, i, i+1)
	}
	return nil
}

func (d *Device) SetPassthroughMode(ctx context.Context, iface string, mode mdnsoffload.PassthroughMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(Op{Name: "SetPassthroughMode", Interface: iface, QName: mode.String()}); err != nil {
		return err
	}
	switch mode {
	case mdnsoffload.PassthroughForwardAll, mdnsoffload.PassthroughDropAll, mdnsoffload.PassthroughExplicitList:
	default:
		return fmt.Errorf("invalid passthrough mode %d", int(mode))
	}
	d.iface(iface).mode = mode
	return nil
}

func (d *Device) ResetAll(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(Op{Name: "ResetAll"}); err != nil {
		return err
	}
	d.nextKey = 0
	d.missCounter = 0
	clear(d.hitCounters)
	clear(d.ifaces)
	return nil
}

func (d *Device) SetGlobalOffloadEnabled(ctx context.Context, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(Op{Name: "SetGlobalOffloadEnabled", QName: fmt.Sprint(enabled)}); err != nil {
		return err
	}
	d.offloadEnabled = enabled
	return nil
}

func (d *Device) TakeAndResetHitCounter(ctx context.Context, key mdnsoffload.DeviceKey) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(Op{Name: "TakeAndResetHitCounter", Key: key}); err != nil {
		return 0, err
	}
	n := d.hitCounters[key]
	delete(d.hitCounters, key)
	return n, nil
}

func (d *Device) TakeAndResetMissCounter(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(Op{Name: "TakeAndResetMissCounter"}); err != nil {
		return 0, err
	}
	n := d.missCounter
	d.missCounter = 0
	return n, nil
}

// Inspection helpers.

// OffloadedPackets returns the raw packets offloaded on iface in the
// order the device accepted them.
func (d *Device) OffloadedPackets(iface string) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.ifaces[iface]
	if !ok {
		return nil
	}
	out := make([][]byte, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.data.RawPacket)
	}
	return out
}

// OffloadedKeys returns the device keys live on iface.
func (d *Device) OffloadedKeys(iface string) []mdnsoffload.DeviceKey {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.ifaces[iface]
	if !ok {
		return nil
	}
	out := make([]mdnsoffload.DeviceKey, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.key)
	}
	return out
}

// PassthroughNames returns the passthrough list of iface in insertion
// order.
func (d *Device) PassthroughNames(iface string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.ifaces[iface]
	if !ok {
		return nil
	}
	return slices.Clone(s.passthrough)
}

// PassthroughMode returns the mode of iface. Interfaces never touched
// report drop-all.
func (d *Device) PassthroughMode(iface string) mdnsoffload.PassthroughMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.ifaces[iface]; ok {
		return s.mode
	}
	return mdnsoffload.PassthroughDropAll
}

// OffloadEnabled reports the global offload state.
func (d *Device) OffloadEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offloadEnabled
}

// RecordHits adds n answered queries to key.
func (d *Device) RecordHits(key mdnsoffload.DeviceKey, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hitCounters[key] += n
}

// RecordMisses adds n unanswered queries.
func (d *Device) RecordMisses(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.missCounter += n
}

// Operations returns a copy of every recorded call.
func (d *Device) Operations() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.ops)
}

// ResetOperations forgets recorded calls.
func (d *Device) ResetOperations() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = nil
}
