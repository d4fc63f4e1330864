//go:build e2e

package e2e

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/client"
	"github.com/frobware/go-mdnsoffload/codec"
	"github.com/frobware/go-mdnsoffload/config"
	"github.com/frobware/go-mdnsoffload/device/fake"
	"github.com/frobware/go-mdnsoffload/device/remote"
	"github.com/frobware/go-mdnsoffload/logging"
	"github.com/frobware/go-mdnsoffload/netwatch"
	"github.com/frobware/go-mdnsoffload/server"
)

const waitFor = 10 * time.Second

// TestEnv is a complete daemon with a fake companion device, each in
// its own runtime directory.
type TestEnv struct {
	T      *testing.T
	Dirs   config.RuntimeDirs
	Config config.Config
	Client *client.Client
	Links  *LinkSource
	logger *slog.Logger

	mu     sync.Mutex
	device *fake.Device
	devSrv *grpc.Server

	cancel    context.CancelFunc
	daemonErr chan error
}

type envOption func(*TestEnv)

// withNetlink makes the daemon watch real links instead of Links.
func withNetlink() envOption {
	return func(e *TestEnv) { e.Links = nil }
}

func withInterfaces(names ...string) envOption {
	return func(e *TestEnv) { e.Config.Offload.Interfaces = names }
}

// NewTestEnv starts a fake device and a daemon connected to it.
//
// Set MDNSOFFLOAD_LOG (e.g. "debug" or "info,reconciler=debug") to see
// daemon logs.
func NewTestEnv(t *testing.T, opts ...envOption) *TestEnv {
	t.Helper()

	// Keep socket paths short.
	base, err := os.MkdirTemp("", "mdnsoffload-e2e-")
	require.NoError(t, err)
	dirs, err := config.NewRuntimeDirs(base)
	require.NoError(t, err)
	require.NoError(t, dirs.EnsureDirectories())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if spec := os.Getenv(logging.EnvVar); spec != "" {
		logger, err = logging.New(logging.Options{EnvSpec: spec, Output: os.Stderr})
		require.NoError(t, err, "invalid %s spec", logging.EnvVar)
	}

	cfg := config.DefaultConfig()
	cfg.Device.Address = dirs.DeviceSocketPath()
	cfg.Offload.AllowedAppIDs = []uint32{uint32(mdnsoffload.AppIDFromUID(uint32(os.Getuid())))}

	env := &TestEnv{
		T:      t,
		Dirs:   dirs,
		Config: cfg,
		Links:  NewLinkSource(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(env)
	}
	t.Cleanup(env.cleanup)

	env.StartDevice()
	env.startDaemon()
	return env
}

func (e *TestEnv) startDaemon() {
	e.T.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.daemonErr = make(chan error, 1)

	rc := server.RunConfig{Dirs: e.Dirs, Config: e.Config, Logger: e.logger}
	if e.Links != nil {
		rc.Links = e.Links
	}
	go func() { e.daemonErr <- server.Run(ctx, rc) }()

	c, err := client.Dial(e.Dirs.SocketPath(), client.WithLogger(e.logger))
	require.NoError(e.T, err)
	e.Client = c

	require.Eventually(e.T, func() bool {
		d, err := c.Dump(context.Background())
		return err == nil && d.Connected
	}, waitFor, 20*time.Millisecond, "daemon did not come up with a connected device")
}

// StartDevice serves a new, empty fake device on the configured
// address.
func (e *TestEnv) StartDevice() *fake.Device {
	e.T.Helper()
	sock := e.Dirs.DeviceSocketPath()
	require.NoError(e.T, os.RemoveAll(sock))
	ln, err := net.Listen("unix", sock)
	require.NoError(e.T, err)

	dev := fake.New(fake.WithLogger(e.logger))
	srv := grpc.NewServer(codec.ServerOption())
	remote.Register(srv, dev)
	go func() { _ = srv.Serve(ln) }()

	e.mu.Lock()
	e.device, e.devSrv = dev, srv
	e.mu.Unlock()
	return dev
}

// StopDevice stops serving the current device.
func (e *TestEnv) StopDevice() {
	e.mu.Lock()
	srv := e.devSrv
	e.devSrv = nil
	e.mu.Unlock()
	if srv != nil {
		srv.Stop()
	}
}

// Device returns the device currently served.
func (e *TestEnv) Device() *fake.Device {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device
}

// OpenSession opens an owner session that ends with the test.
func (e *TestEnv) OpenSession(name string) *client.Session {
	e.T.Helper()
	s, err := e.Client.OpenSession(context.Background(), name)
	require.NoError(e.T, err)
	e.T.Cleanup(func() { s.Close() })
	return s
}

// EventuallyOffloaded waits until iface on the current device carries
// exactly packets.
func (e *TestEnv) EventuallyOffloaded(iface string, packets ...[]byte) {
	e.T.Helper()
	require.Eventually(e.T, func() bool {
		got := e.Device().OffloadedPackets(iface)
		if len(got) != len(packets) {
			return false
		}
		for i := range got {
			if string(got[i]) != string(packets[i]) {
				return false
			}
		}
		return true
	}, waitFor, 20*time.Millisecond, "device never carried %d packets on %s", len(packets), iface)
}

func (e *TestEnv) cleanup() {
	if e.Client != nil {
		e.Client.Close()
	}
	if e.cancel != nil {
		e.cancel()
		select {
		case err := <-e.daemonErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				e.T.Logf("daemon exited: %v", err)
			}
		case <-time.After(waitFor):
			e.T.Logf("daemon did not stop")
		}
	}
	e.StopDevice()
	if err := os.RemoveAll(e.Dirs.Base()); err != nil {
		e.T.Logf("warning: failed to remove %s: %v", e.Dirs.Base(), err)
	}
	if err := os.RemoveAll(e.Dirs.Sock()); err != nil {
		e.T.Logf("warning: failed to remove %s: %v", e.Dirs.Sock(), err)
	}
}

// LinkSource is a netwatch.Source driven by the test.
type LinkSource struct {
	ch chan netwatch.Link
}

func NewLinkSource() *LinkSource {
	return &LinkSource{ch: make(chan netwatch.Link, 16)}
}

func (s *LinkSource) Subscribe(ctx context.Context) (<-chan netwatch.Link, error) {
	return s.ch, nil
}

// Up reports link index as up under name.
func (s *LinkSource) Up(index int, name string) {
	s.ch <- netwatch.Link{Index: index, Name: name, Up: true}
}

// Down reports link index as down.
func (s *LinkSource) Down(index int, name string) {
	s.ch <- netwatch.Link{Index: index, Name: name}
}

// RequireRoot skips the test unless running as root.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
}
