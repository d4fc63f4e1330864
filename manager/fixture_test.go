package manager_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/device/fake"
	"github.com/frobware/go-mdnsoffload/manager"
)

const (
	ifc0 = "imaginaryif0"
	ifc1 = "imaginaryif1"

	appUID0              = 1234
	secondaryUserAppUID0 = 101234
	appUID1              = 1235
)

var priorityList = []string{
	"_googlecast._tcp.local.",
	"_some._other._svc.local.",
}

func testLogger() *slog.Logger {
	if os.Getenv("MDNSOFFLOAD_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.DiscardHandler)
}

// testOwner is a client whose lifetime the test controls.
type testOwner struct {
	manager.Owner
	done chan struct{}
}

func newOwner(token string, uid uint32) *testOwner {
	done := make(chan struct{})
	return &testOwner{
		Owner: manager.Owner{
			Token: mdnsoffload.OwnerToken(token),
			AppID: mdnsoffload.AppIDFromUID(uid),
			Done:  done,
		},
		done: done,
	}
}

func (o *testOwner) die() { close(o.done) }

type fixture struct {
	t      *testing.T
	ctx    context.Context
	mgr    *manager.Manager
	dev    *fake.Device
	owner0 *testOwner
	owner1 *testOwner
}

type fixtureOption func(*manager.Config)

func withPriorityList(names ...string) fixtureOption {
	return func(c *manager.Config) { c.PriorityQNames = names }
}

func withInteractive(interactive bool) fixtureOption {
	return func(c *manager.Config) { c.Interactive = interactive }
}

func withMetrics(sink manager.MetricsSink) fixtureOption {
	return func(c *manager.Config) { c.Metrics = sink }
}

// newManager starts a manager with no device and no interfaces.
func newManager(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := manager.Config{
		PriorityQNames: priorityList,
		AllowList:      []mdnsoffload.AppID{mdnsoffload.AppIDFromUID(appUID0)},
		Logger:         testLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := manager.New(cfg)
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &fixture{
		t:      t,
		ctx:    ctx,
		mgr:    mgr,
		dev:    fake.New(),
		owner0: newOwner("client-0", appUID0),
		owner1: newOwner("client-1", appUID0),
	}
}

// newDefaultFixture connects the device and brings ifc0 up.
func newDefaultFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := newManager(t, opts...)
	f.connect()
	f.available(ifc0)
	return f
}

func (f *fixture) connect() {
	f.t.Helper()
	require.NoError(f.t, f.mgr.DeviceConnected(f.ctx, f.dev))
}

func (f *fixture) disconnect() {
	f.t.Helper()
	require.NoError(f.t, f.mgr.DeviceDisconnected(f.ctx))
}

func (f *fixture) available(iface string) {
	f.t.Helper()
	require.NoError(f.t, f.mgr.NetworkAvailable(f.ctx, iface))
}

func (f *fixture) lost(iface string) {
	f.t.Helper()
	require.NoError(f.t, f.mgr.NetworkLost(f.ctx, iface))
}

func (f *fixture) offload(owner *testOwner, iface string, packet []byte) mdnsoffload.RecordKey {
	f.t.Helper()
	key, err := f.mgr.AddOffload(f.ctx, owner.Owner, iface, packet)
	require.NoError(f.t, err)
	require.Positive(f.t, key)
	return key
}

func (f *fixture) passthrough(owner *testOwner, iface, qname string) {
	f.t.Helper()
	require.NoError(f.t, f.mgr.AddPassthrough(f.ctx, owner.Owner, iface, qname))
}

// sync waits until every previously posted event has been handled.
func (f *fixture) sync() manager.Dump {
	f.t.Helper()
	d, err := f.mgr.Dump(f.ctx)
	require.NoError(f.t, err)
	return d
}

func (f *fixture) assertOffloaded(iface string, packets ...[]byte) {
	f.t.Helper()
	if len(packets) == 0 {
		assert.Empty(f.t, f.dev.OffloadedPackets(iface))
		return
	}
	assert.Equal(f.t, packets, f.dev.OffloadedPackets(iface))
}

func (f *fixture) assertPassthrough(iface string, names ...string) {
	f.t.Helper()
	if len(names) == 0 {
		assert.Empty(f.t, f.dev.PassthroughNames(iface))
		return
	}
	assert.Equal(f.t, names, f.dev.PassthroughNames(iface))
}
