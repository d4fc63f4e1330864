// Package reconciler brings the companion device in line with the
// desired intents of each interface and remembers what it believes the
// device holds.
//
// Every pass follows the same shape:
//
//	PLAN    -> compute.PlanOffload / compute.PlanPassthrough (pure)
//	EXECUTE -> one device call per action; a failed call affects only
//	           its own entry and never aborts the pass
//
// Tracked state is updated from confirmed results only. When no device
// is attached every pass is a no-op.
//
// A Reconciler is not safe for concurrent use; the manager's event loop
// owns it.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/action"
	"github.com/frobware/go-mdnsoffload/compute"
	"github.com/frobware/go-mdnsoffload/device"
)

// tracked is the reconciler's belief about one interface.
type tracked struct {
	// device key -> record key it was offloaded for
	offload map[mdnsoffload.DeviceKey]mdnsoffload.RecordKey
	// original-case names
	passthrough map[string]struct{}
}

func newTracked() *tracked {
	return &tracked{
		offload:     make(map[mdnsoffload.DeviceKey]mdnsoffload.RecordKey),
		passthrough: make(map[string]struct{}),
	}
}

// Reconciler applies desired intents to a device.
type Reconciler struct {
	dev            device.Device
	state          map[string]*tracked
	offloadEnabled bool
	logger         *slog.Logger
}

// New returns a Reconciler with no device attached.
func New(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		state:  make(map[string]*tracked),
		logger: logger.With("component", "reconciler"),
	}
}

// Attach makes dev the target of subsequent passes and forgets all
// tracked state, since a freshly connected device holds nothing.
func (r *Reconciler) Attach(dev device.Device) {
	r.dev = dev
	r.ClearTracked()
}

// Detach forgets the device and all tracked state without calling the
// device.
func (r *Reconciler) Detach() {
	r.dev = nil
	r.ClearTracked()
}

// Connected reports whether a device is attached.
func (r *Reconciler) Connected() bool {
	return r.dev != nil
}

// ClearTracked forgets everything believed to be on the device.
func (r *Reconciler) ClearTracked() {
	clear(r.state)
}

// Forget drops the tracked state of iface without calling the device.
func (r *Reconciler) Forget(iface string) {
	delete(r.state, iface)
}

func (r *Reconciler) stateFor(iface string) *tracked {
	s, ok := r.state[iface]
	if !ok {
		s = newTracked()
		r.state[iface] = s
	}
	return s
}

// ReconcileOffload replaces the offloaded responses on iface with
// desired, highest priority first.
func (r *Reconciler) ReconcileOffload(ctx context.Context, iface string, desired []mdnsoffload.OffloadIntent) {
	if !r.Connected() {
		r.logger.Warn("cannot apply offload state", "iface", iface, "error", mdnsoffload.ErrDeviceDisconnected)
		return
	}
	s := r.stateFor(iface)
	plan := compute.PlanOffload(iface, slices.Collect(maps.Keys(s.offload)), desired)
	r.execute(ctx, s, plan)
}

// ReconcilePassthrough replaces the passthrough list of iface with
// desired.
func (r *Reconciler) ReconcilePassthrough(ctx context.Context, iface string, desired []mdnsoffload.PassthroughIntent) {
	if !r.Connected() {
		r.logger.Warn("cannot apply passthrough state", "iface", iface, "error", mdnsoffload.ErrDeviceDisconnected)
		return
	}
	s := r.stateFor(iface)
	plan := compute.PlanPassthrough(iface, slices.Collect(maps.Keys(s.passthrough)), desired)
	r.execute(ctx, s, plan)
}

func (r *Reconciler) execute(ctx context.Context, s *tracked, plan []action.Action) {
	for _, a := range plan {
		if err := r.apply(ctx, s, a); err != nil {
			level := slog.LevelError
			if errors.Is(err, mdnsoffload.ErrCapacityExceeded) {
				level = slog.LevelWarn
			}
			r.logger.Log(ctx, level, "device action not applied", "action", fmt.Sprintf("%T", a), "error", err)
		}
	}
}

// apply performs a single action and folds a confirmed result into s.
func (r *Reconciler) apply(ctx context.Context, s *tracked, a action.Action) error {
	switch a := a.(type) {
	case action.RemoveProtocolResponse:
		if err := r.dev.RemoveProtocolResponse(ctx, a.Key); err != nil {
			return mdnsoffload.DeviceError{Op: fmt.Sprintf("remove response %d on %s", a.Key, a.Interface), Err: err}
		}
		delete(s.offload, a.Key)
		return nil

	case action.AddProtocolResponse:
		key, err := r.dev.AddProtocolResponse(ctx, a.Interface, a.Data)
		if err != nil {
			return mdnsoffload.DeviceError{Op: fmt.Sprintf("offload record %d on %s", a.RecordKey, a.Interface), Err: err}
		}
		if key == mdnsoffload.InvalidDeviceKey {
			return fmt.Errorf("offload record %d on %s: %w", a.RecordKey, a.Interface, mdnsoffload.ErrCapacityExceeded)
		}
		s.offload[key] = a.RecordKey
		r.logger.Debug("offloaded record", "iface", a.Interface, "record_key", a.RecordKey, "device_key", key)
		return nil

	case action.SetPassthroughMode:
		if err := r.dev.SetPassthroughMode(ctx, a.Interface, a.Mode); err != nil {
			return mdnsoffload.DeviceError{Op: fmt.Sprintf("set passthrough mode %s on %s", a.Mode, a.Interface), Err: err}
		}
		return nil

	case action.RemovePassthroughEntry:
		if err := r.dev.RemovePassthroughEntry(ctx, a.Interface, a.SimpleName); err != nil {
			return mdnsoffload.DeviceError{Op: fmt.Sprintf("remove passthrough %q on %s", a.QName, a.Interface), Err: err}
		}
		delete(s.passthrough, a.QName)
		return nil

	case action.AddPassthroughEntry:
		ok, err := r.dev.AddPassthroughEntry(ctx, a.Interface, a.SimpleName)
		if err != nil {
			return mdnsoffload.DeviceError{Op: fmt.Sprintf("add passthrough %q on %s", a.QName, a.Interface), Err: err}
		}
		if !ok {
			return fmt.Errorf("add passthrough %q on %s: %w", a.QName, a.Interface, mdnsoffload.ErrCapacityExceeded)
		}
		s.passthrough[a.QName] = struct{}{}
		return nil

	default:
		return fmt.Errorf("unknown action type: %T", a)
	}
}

// ResetAll asks the device to forget everything.
func (r *Reconciler) ResetAll(ctx context.Context) {
	if !r.Connected() {
		r.logger.Warn("cannot reset device", "error", mdnsoffload.ErrDeviceDisconnected)
		return
	}
	if err := r.dev.ResetAll(ctx); err != nil {
		r.logger.Error("failed to reset device", "error", err)
	}
}

// SetOffloadEnabled records the desired global offload state and pushes
// it to the device when one is attached. Without a device the state is
// applied on the next ApplyOffloadState.
func (r *Reconciler) SetOffloadEnabled(ctx context.Context, enabled bool) {
	r.offloadEnabled = enabled
	if !r.Connected() {
		r.logger.Debug("deferring offload state until device connects", "enabled", enabled)
		return
	}
	r.ApplyOffloadState(ctx)
}

// ApplyOffloadState pushes the recorded global offload state.
func (r *Reconciler) ApplyOffloadState(ctx context.Context) {
	if !r.Connected() {
		r.logger.Warn("cannot set offload state", "enabled", r.offloadEnabled, "error", mdnsoffload.ErrDeviceDisconnected)
		return
	}
	if err := r.dev.SetGlobalOffloadEnabled(ctx, r.offloadEnabled); err != nil {
		r.logger.Error("failed to set offload state", "enabled", r.offloadEnabled, "error", err)
	}
}

// OffloadEnabled reports the recorded global offload state.
func (r *Reconciler) OffloadEnabled() bool {
	return r.offloadEnabled
}

// HitCount is the number of queries one offloaded record answered.
type HitCount struct {
	Interface string
	DeviceKey mdnsoffload.DeviceKey
	RecordKey mdnsoffload.RecordKey
	Hits      int
}

// Counters is one harvest of device counters.
type Counters struct {
	Misses int
	Hits   []HitCount
}

// HarvestCounters reads and resets the miss counter and the hit counter
// of every tracked record. Failed reads are logged and skipped.
func (r *Reconciler) HarvestCounters(ctx context.Context) (Counters, error) {
	if !r.Connected() {
		return Counters{}, mdnsoffload.ErrDeviceDisconnected
	}

	var c Counters
	misses, err := r.dev.TakeAndResetMissCounter(ctx)
	if err != nil {
		r.logger.Error("failed to read miss counter", "error", err)
	} else {
		c.Misses = misses
	}

	for _, iface := range slices.Sorted(maps.Keys(r.state)) {
		s := r.state[iface]
		for _, key := range slices.Sorted(maps.Keys(s.offload)) {
			hits, err := r.dev.TakeAndResetHitCounter(ctx, key)
			if err != nil {
				r.logger.Error("failed to read hit counter", "iface", iface, "device_key", key, "error", err)
				continue
			}
			c.Hits = append(c.Hits, HitCount{Interface: iface, DeviceKey: key, RecordKey: s.offload[key], Hits: hits})
		}
	}
	return c, nil
}

// Tracked is the believed device state of one interface.
type Tracked struct {
	Offload     map[mdnsoffload.DeviceKey]mdnsoffload.RecordKey
	Passthrough []string
}

// TrackedState returns a copy of the believed device state of iface.
func (r *Reconciler) TrackedState(iface string) Tracked {
	s, ok := r.state[iface]
	if !ok {
		return Tracked{Offload: map[mdnsoffload.DeviceKey]mdnsoffload.RecordKey{}}
	}
	return Tracked{
		Offload:     maps.Clone(s.offload),
		Passthrough: slices.Sorted(maps.Keys(s.passthrough)),
	}
}
