package netwatch_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-mdnsoffload/netwatch"
)

type chanSource struct {
	ch chan netwatch.Link
}

func (s *chanSource) Subscribe(ctx context.Context) (<-chan netwatch.Link, error) {
	return s.ch, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) NetworkAvailable(ctx context.Context, iface string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "+"+iface)
	return nil
}

func (s *recordingSink) NetworkLost(ctx context.Context, iface string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "-"+iface)
	return nil
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// run feeds links to a watcher and returns the events it produced.
func run(t *testing.T, opts netwatch.Options, links ...netwatch.Link) []string {
	t.Helper()
	src := &chanSource{ch: make(chan netwatch.Link)}
	sink := &recordingSink{}
	opts.Logger = slog.New(slog.DiscardHandler)
	w := netwatch.New(src, sink, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for _, l := range links {
		select {
		case src.ch <- l:
		case <-time.After(5 * time.Second):
			t.Fatal("watcher stopped reading")
		}
	}
	close(src.ch)
	err := <-done
	cancel()
	require.EqualError(t, err, "link subscription closed")
	return sink.snapshot()
}

func TestWatcher_UpAndDown(t *testing.T) {
	events := run(t, netwatch.Options{},
		netwatch.Link{Index: 2, Name: "eth0", Up: true},
		netwatch.Link{Index: 2, Name: "eth0", Up: true},
		netwatch.Link{Index: 2, Name: "eth0", Up: false},
		netwatch.Link{Index: 2, Name: "eth0", Up: true},
	)
	assert.Equal(t, []string{"+eth0", "-eth0", "+eth0"}, events)
}

func TestWatcher_IgnoresLoopback(t *testing.T) {
	events := run(t, netwatch.Options{},
		netwatch.Link{Index: 1, Name: "lo", Up: true, Loopback: true},
		netwatch.Link{Index: 2, Name: "eth0", Up: true},
	)
	assert.Equal(t, []string{"+eth0"}, events)
}

func TestWatcher_InterfaceFilter(t *testing.T) {
	events := run(t, netwatch.Options{Interfaces: []string{"wlan0"}},
		netwatch.Link{Index: 2, Name: "eth0", Up: true},
		netwatch.Link{Index: 3, Name: "wlan0", Up: true},
	)
	assert.Equal(t, []string{"+wlan0"}, events)
}

func TestWatcher_Deleted(t *testing.T) {
	events := run(t, netwatch.Options{},
		netwatch.Link{Index: 4, Name: "veth0", Up: true},
		netwatch.Link{Index: 4, Name: "veth0", Deleted: true},
		netwatch.Link{Index: 5, Name: "veth1", Deleted: true},
	)
	assert.Equal(t, []string{"+veth0", "-veth0"}, events)
}

func TestWatcher_RenameReportsOldLostNewAvailable(t *testing.T) {
	events := run(t, netwatch.Options{},
		netwatch.Link{Index: 2, Name: "eth0", Up: true},
		netwatch.Link{Index: 2, Name: "lan0", Up: true},
	)
	assert.Equal(t, []string{"+eth0", "-eth0", "+lan0"}, events)
}

func TestWatcher_RenameOutOfFilter(t *testing.T) {
	events := run(t, netwatch.Options{Interfaces: []string{"eth0"}},
		netwatch.Link{Index: 2, Name: "eth0", Up: true},
		netwatch.Link{Index: 2, Name: "lan0", Up: true},
		netwatch.Link{Index: 2, Name: "eth0", Up: true},
	)
	assert.Equal(t, []string{"+eth0", "-eth0", "+eth0"}, events)
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	src := &chanSource{ch: make(chan netwatch.Link)}
	w := netwatch.New(src, &recordingSink{}, netwatch.Options{Logger: slog.New(slog.DiscardHandler)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.Run(ctx), context.Canceled)
}
