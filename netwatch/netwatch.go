// Package netwatch reports which network interfaces can carry
// offloaded traffic. It follows link updates, treats a link as
// available while it is administratively and operationally up, and
// reports a rename as the old name lost and the new name available.
package netwatch

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// Link is the part of a link update the watcher needs.
type Link struct {
	Index    int
	Name     string
	Up       bool
	Loopback bool
	// Deleted is set when the link went away.
	Deleted bool
}

// Source streams link updates. The stream starts with one update per
// existing link.
type Source interface {
	Subscribe(ctx context.Context) (<-chan Link, error)
}

// Sink receives availability changes. manager.Manager satisfies it.
type Sink interface {
	NetworkAvailable(ctx context.Context, iface string) error
	NetworkLost(ctx context.Context, iface string) error
}

// Options configures a Watcher.
type Options struct {
	// Interfaces restricts reporting to these names. Empty reports
	// every non-loopback link.
	Interfaces []string
	Logger     *slog.Logger
}

type linkState struct {
	name      string
	available bool
}

// Watcher turns link updates into availability changes.
type Watcher struct {
	src    Source
	sink   Sink
	allow  []string
	links  map[int]linkState
	logger *slog.Logger
}

// New creates a Watcher.
func New(src Source, sink Sink, opts Options) *Watcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		src:    src,
		sink:   sink,
		allow:  slices.Clone(opts.Interfaces),
		links:  make(map[int]linkState),
		logger: logger.With("component", "netwatch"),
	}
}

// Run follows the source until ctx is cancelled or the stream ends.
func (w *Watcher) Run(ctx context.Context) error {
	updates, err := w.src.Subscribe(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("watching links", "interfaces", w.allow)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("link subscription closed")
			}
			if err := w.handle(ctx, l); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) wanted(l Link) bool {
	if l.Loopback {
		return false
	}
	return len(w.allow) == 0 || slices.Contains(w.allow, l.Name)
}

func (w *Watcher) handle(ctx context.Context, l Link) error {
	prev, known := w.links[l.Index]

	if l.Deleted {
		delete(w.links, l.Index)
		if known && prev.available {
			return w.lost(ctx, prev.name)
		}
		return nil
	}

	next := linkState{name: l.Name, available: l.Up && w.wanted(l)}
	w.links[l.Index] = next

	if known && prev.name != next.name {
		w.logger.Info("link renamed", "index", l.Index, "from", prev.name, "to", next.name)
		if prev.available {
			if err := w.lost(ctx, prev.name); err != nil {
				return err
			}
		}
		prev.available = false
	}

	switch {
	case next.available && !prev.available:
		return w.available(ctx, next.name)
	case !next.available && prev.available:
		return w.lost(ctx, next.name)
	}
	return nil
}

func (w *Watcher) available(ctx context.Context, name string) error {
	w.logger.Info("network available", "iface", name)
	return w.sink.NetworkAvailable(ctx, name)
}

func (w *Watcher) lost(ctx context.Context, name string) error {
	w.logger.Info("network lost", "iface", name)
	return w.sink.NetworkLost(ctx, name)
}
