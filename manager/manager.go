// Package manager owns the offload engine's state and serialises every
// change to it.
//
// # Event Loop
//
// All mutation of the registry and every reconciliation pass run on a
// single goroutine started by Run. Client calls, interface availability
// changes, device connection changes, allow-list updates and owner
// terminations are all posted to one queue and handled in arrival
// order:
//
//	caller -> event -> Run loop -> registry (read/write)
//	                            -> controller -> reconciler -> device
//
// No locks protect the registry or tracked device state; correctness
// relies entirely on the single queue.
//
// # Owner Lifetime
//
// Every registration carries an Owner whose Done channel closes when
// the client goes away. The first registration of a token starts a
// watcher that posts an ownerGone event when Done closes; handling it
// removes all of that owner's intents and refreshes the interfaces
// they touched.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/device"
	"github.com/frobware/go-mdnsoffload/priority"
	"github.com/frobware/go-mdnsoffload/reconciler"
	"github.com/frobware/go-mdnsoffload/registry"
	"github.com/frobware/go-mdnsoffload/wire"
)

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("manager stopped")

// Owner identifies a registering client and its lifetime.
type Owner struct {
	Token mdnsoffload.OwnerToken
	AppID mdnsoffload.AppID
	// Done is closed when the owner terminates. A nil Done never
	// closes.
	Done <-chan struct{}
}

// MetricsSink receives device counters harvested when the primary
// domain becomes interactive.
type MetricsSink interface {
	RecordCounters(ctx context.Context, at time.Time, c reconciler.Counters) error
}

// Config configures a Manager.
type Config struct {
	// PriorityQNames ranks query names, most important first.
	PriorityQNames []string
	// AllowList is the initial set of app ids whose intents are
	// materialised.
	AllowList []mdnsoffload.AppID
	// Interactive is the initial interactive state. Offload is enabled
	// on the device only while not interactive.
	Interactive bool
	// Metrics receives harvested counters. Nil logs them instead.
	Metrics MetricsSink
	Logger  *slog.Logger
	// Now is used to timestamp harvested counters. Nil uses time.Now.
	Now func() time.Time
}

// Manager runs the offload engine.
type Manager struct {
	reg         *registry.Registry
	rec         *reconciler.Reconciler
	controllers map[string]*Controller
	watched     map[mdnsoffload.OwnerToken]struct{}
	interactive bool
	metrics     MetricsSink
	now         func() time.Time
	logger      *slog.Logger

	events  chan envelope
	stopped chan struct{}
}

// New creates a Manager. Call Run to start processing.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		reg:         registry.New(priority.NewResolver(cfg.PriorityQNames)),
		rec:         reconciler.New(logger),
		controllers: make(map[string]*Controller),
		watched:     make(map[mdnsoffload.OwnerToken]struct{}),
		interactive: cfg.Interactive,
		metrics:     cfg.Metrics,
		now:         now,
		logger:      logger.With("component", "manager"),
		events:      make(chan envelope),
		stopped:     make(chan struct{}),
	}
	if m.metrics == nil {
		m.metrics = logSink{logger: m.logger}
	}
	m.reg.SetAllowList(cfg.AllowList)
	return m
}

// Run processes events until ctx is cancelled. It must be called
// exactly once.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.stopped)

	m.rec.SetOffloadEnabled(ctx, !m.interactive)
	m.logger.Info("event loop started", "interactive", m.interactive)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("event loop stopped")
			return ctx.Err()
		case env := <-m.events:
			value, err := m.dispatch(ctx, env.ev)
			if env.reply != nil {
				env.reply <- result{value: value, err: err}
			}
		}
	}
}

// submit posts ev and waits for its result.
func (m *Manager) submit(ctx context.Context, ev event) (any, error) {
	env := envelope{ev: ev, reply: make(chan result, 1)}
	select {
	case m.events <- env:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.stopped:
		return nil, ErrStopped
	}
	select {
	case r := <-env.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.stopped:
		return nil, ErrStopped
	}
}

// post enqueues ev without waiting for it to be handled.
func (m *Manager) post(ev event) {
	select {
	case m.events <- envelope{ev: ev}:
	case <-m.stopped:
	}
}

func (m *Manager) dispatch(ctx context.Context, ev event) (any, error) {
	switch ev := ev.(type) {
	case addOffload:
		return m.handleAddOffload(ctx, ev)
	case removeOffload:
		m.handleRemoveOffload(ctx, ev)
		return nil, nil
	case addPassthrough:
		m.handleAddPassthrough(ctx, ev)
		return nil, nil
	case removePassthrough:
		m.handleRemovePassthrough(ctx, ev)
		return nil, nil
	case networkAvailable:
		m.controller(ev.iface).OnNetworkAvailable(ctx)
		return nil, nil
	case networkLost:
		m.controller(ev.iface).OnNetworkLost(ctx)
		return nil, nil
	case deviceConnected:
		m.handleDeviceConnected(ctx, ev.dev)
		return nil, nil
	case deviceDisconnected:
		m.handleDeviceDisconnected()
		return nil, nil
	case allowListChanged:
		m.reg.SetAllowList(ev.ids)
		for _, c := range m.sortedControllers() {
			c.OnAllowListChanged(ctx)
		}
		return nil, nil
	case ownerGone:
		m.handleOwnerGone(ctx, ev.owner)
		return nil, nil
	case interactiveChanged:
		m.handleInteractive(ctx, ev.interactive)
		return nil, nil
	case dumpState:
		return m.snapshot(), nil
	default:
		return nil, fmt.Errorf("unknown event type: %T", ev)
	}
}

// controller returns the controller for iface, creating it on first
// use.
func (m *Manager) controller(iface string) *Controller {
	c, ok := m.controllers[iface]
	if !ok {
		c = NewController(iface, m.reg, m.rec, m.logger)
		m.controllers[iface] = c
	}
	return c
}

func (m *Manager) sortedControllers() []*Controller {
	out := make([]*Controller, 0, len(m.controllers))
	for _, iface := range slices.Sorted(maps.Keys(m.controllers)) {
		out = append(out, m.controllers[iface])
	}
	return out
}

// watch starts observing owner's lifetime once per token.
func (m *Manager) watch(owner Owner) {
	if owner.Done == nil {
		return
	}
	if _, ok := m.watched[owner.Token]; ok {
		return
	}
	m.watched[owner.Token] = struct{}{}
	go func() {
		select {
		case <-owner.Done:
			m.post(ownerGone{owner: owner.Token})
		case <-m.stopped:
		}
	}()
}

// AddOffload registers packet for offload on iface and returns its
// record key. A malformed packet is rejected with a FormatError and
// nothing is stored.
func (m *Manager) AddOffload(ctx context.Context, owner Owner, iface string, packet []byte) (mdnsoffload.RecordKey, error) {
	if iface == "" || owner.Token == "" {
		return 0, fmt.Errorf("interface and owner are required: %w", mdnsoffload.ErrInvalidRequest)
	}
	data, err := wire.ParseProtocolData(packet)
	if err != nil {
		return 0, err
	}
	v, err := m.submit(ctx, addOffload{owner: owner, iface: iface, data: data})
	if err != nil {
		return 0, err
	}
	return v.(mdnsoffload.RecordKey), nil
}

func (m *Manager) handleAddOffload(ctx context.Context, ev addOffload) (mdnsoffload.RecordKey, error) {
	intent, err := m.reg.RegisterOffload(ev.iface, ev.data, ev.owner.Token, ev.owner.AppID)
	if err != nil {
		return 0, err
	}
	m.logger.Info("registered offload intent",
		"iface", ev.iface,
		"record_key", intent.RecordKey,
		"priority", intent.Priority,
		"app_id", ev.owner.AppID)
	m.watch(ev.owner)
	m.controller(ev.iface).RefreshOffload(ctx)
	return intent.RecordKey, nil
}

// RemoveOffload removes the offload intent stored under key. Requests
// for unknown keys or keys held by another owner are logged and
// ignored.
func (m *Manager) RemoveOffload(ctx context.Context, owner mdnsoffload.OwnerToken, key mdnsoffload.RecordKey) error {
	if key == 0 {
		return fmt.Errorf("record key must be positive: %w", mdnsoffload.ErrInvalidRequest)
	}
	_, err := m.submit(ctx, removeOffload{owner: owner, key: key})
	return err
}

func (m *Manager) handleRemoveOffload(ctx context.Context, ev removeOffload) {
	intent, err := m.reg.RemoveOffload(ev.key, ev.owner)
	if err != nil {
		m.logger.Warn("failed to remove offload intent", "record_key", ev.key, "error", err)
		return
	}
	m.logger.Info("removed offload intent", "iface", intent.Interface, "record_key", ev.key)
	m.controller(intent.Interface).RefreshOffload(ctx)
}

// AddPassthrough asks that queries for qname on iface bypass the
// device filter.
func (m *Manager) AddPassthrough(ctx context.Context, owner Owner, iface, qname string) error {
	if iface == "" || qname == "" || owner.Token == "" {
		return fmt.Errorf("interface, qname and owner are required: %w", mdnsoffload.ErrInvalidRequest)
	}
	_, err := m.submit(ctx, addPassthrough{owner: owner, iface: iface, qname: qname})
	return err
}

func (m *Manager) handleAddPassthrough(ctx context.Context, ev addPassthrough) {
	pt := m.reg.RegisterPassthrough(ev.iface, ev.qname, ev.owner.Token, ev.owner.AppID)
	m.logger.Info("registered passthrough intent",
		"iface", ev.iface,
		"qname", pt.OriginalQName,
		"priority", pt.Priority,
		"app_id", ev.owner.AppID)
	m.watch(ev.owner)
	m.controller(ev.iface).RefreshPassthrough(ctx)
}

// RemovePassthrough removes the first passthrough intent for qname held
// by owner. Requests that match nothing are logged and ignored.
func (m *Manager) RemovePassthrough(ctx context.Context, owner mdnsoffload.OwnerToken, iface, qname string) error {
	if iface == "" || qname == "" {
		return fmt.Errorf("interface and qname are required: %w", mdnsoffload.ErrInvalidRequest)
	}
	_, err := m.submit(ctx, removePassthrough{owner: owner, iface: iface, qname: qname})
	return err
}

func (m *Manager) handleRemovePassthrough(ctx context.Context, ev removePassthrough) {
	removed, ok := m.reg.RemovePassthrough(ev.qname, ev.owner)
	if !ok {
		m.logger.Warn("failed to remove passthrough intent", "qname", ev.qname, "error", mdnsoffload.ErrOwnershipMismatch)
		return
	}
	m.logger.Info("removed passthrough intent", "iface", removed.Interface, "qname", ev.qname)
	m.controller(ev.iface).RefreshPassthrough(ctx)
	if removed.Interface != ev.iface {
		m.controller(removed.Interface).RefreshPassthrough(ctx)
	}
}

func (m *Manager) handleOwnerGone(ctx context.Context, owner mdnsoffload.OwnerToken) {
	delete(m.watched, owner)
	affected := m.reg.RemoveOwner(owner)
	m.logger.Info("owner terminated, removed its intents", "interfaces", affected)
	for _, iface := range affected {
		c := m.controller(iface)
		c.RefreshOffload(ctx)
		c.RefreshPassthrough(ctx)
	}
}

// NetworkAvailable reports that iface can carry offloaded traffic.
func (m *Manager) NetworkAvailable(ctx context.Context, iface string) error {
	_, err := m.submit(ctx, networkAvailable{iface: iface})
	return err
}

// NetworkLost reports that iface went away.
func (m *Manager) NetworkLost(ctx context.Context, iface string) error {
	_, err := m.submit(ctx, networkLost{iface: iface})
	return err
}

// DeviceConnected makes dev the companion device. The device is reset
// and every available interface is reprogrammed.
func (m *Manager) DeviceConnected(ctx context.Context, dev device.Device) error {
	_, err := m.submit(ctx, deviceConnected{dev: dev})
	return err
}

func (m *Manager) handleDeviceConnected(ctx context.Context, dev device.Device) {
	m.logger.Info("device connected")
	m.rec.Attach(dev)
	m.rec.ResetAll(ctx)
	for _, c := range m.sortedControllers() {
		c.OnDeviceConnected(ctx)
	}
	m.rec.ApplyOffloadState(ctx)
}

// DeviceDisconnected reports that the device link dropped.
func (m *Manager) DeviceDisconnected(ctx context.Context) error {
	_, err := m.submit(ctx, deviceDisconnected{})
	return err
}

func (m *Manager) handleDeviceDisconnected() {
	m.logger.Error("device disconnected")
	m.rec.Detach()
	for _, c := range m.sortedControllers() {
		c.OnDeviceDisconnected()
	}
}

// SetAllowList replaces the allow-list and reconciles every available
// interface.
func (m *Manager) SetAllowList(ctx context.Context, ids []mdnsoffload.AppID) error {
	_, err := m.submit(ctx, allowListChanged{ids: slices.Clone(ids)})
	return err
}

// SetInteractive reports the interactive state of the primary domain.
// Becoming interactive disables device offload and harvests counters;
// leaving it enables offload.
func (m *Manager) SetInteractive(ctx context.Context, interactive bool) error {
	_, err := m.submit(ctx, interactiveChanged{interactive: interactive})
	return err
}

func (m *Manager) handleInteractive(ctx context.Context, interactive bool) {
	m.interactive = interactive
	if !interactive {
		m.rec.SetOffloadEnabled(ctx, true)
		return
	}
	m.rec.SetOffloadEnabled(ctx, false)
	counters, err := m.rec.HarvestCounters(ctx)
	if err != nil {
		m.logger.Warn("cannot harvest counters", "error", err)
		return
	}
	if err := m.metrics.RecordCounters(ctx, m.now(), counters); err != nil {
		m.logger.Error("failed to record counters", "error", err)
	}
}

// logSink logs counters when no store is configured.
type logSink struct {
	logger *slog.Logger
}

func (s logSink) RecordCounters(ctx context.Context, at time.Time, c reconciler.Counters) error {
	s.logger.Debug("missed queries", "count", c.Misses)
	for _, h := range c.Hits {
		s.logger.Debug("record hits", "iface", h.Interface, "record_key", h.RecordKey, "device_key", h.DeviceKey, "count", h.Hits)
	}
	return nil
}
