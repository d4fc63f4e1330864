// Package lock keeps a single daemon per runtime directory using
// flock(2) on {base}/.lock.
//
// The daemon runs its whole lifetime inside Run. Possession of a Held
// value is proof that the lock is held; it cannot be constructed
// outside this package.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ErrHeld is returned by TryRun when another process holds the lock.
var ErrHeld = errors.New("lock held by another process")

// Held represents the region in which the lock is held.
type Held interface {
	// Path is the lock file path.
	Path() string
	heldMarker()
}

type held struct {
	f *os.File
}

func (*held) heldMarker() {}

func (h *held) Path() string { return h.f.Name() }

// Run acquires the lock, writes the caller's pid into the lock file,
// runs fn and releases the lock. It waits for the lock with
// exponential backoff until ctx is done.
func Run(ctx context.Context, path string, fn func(context.Context, Held) error) error {
	f, err := acquire(ctx, path, true)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(ctx, &held{f: f})
}

// TryRun is Run without waiting: it returns ErrHeld immediately if the
// lock is taken.
func TryRun(ctx context.Context, path string, fn func(context.Context, Held) error) error {
	f, err := acquire(ctx, path, false)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(ctx, &held{f: f})
}

func acquire(ctx context.Context, path string, wait bool) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	backoff := 25 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("flock: %w", err)
		}
		if !wait {
			pid, _ := Holder(path)
			f.Close()
			return nil, fmt.Errorf("%s (pid %d): %w", path, pid, ErrHeld)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}

	if err := writePID(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

// Holder returns the pid recorded in the lock file. The pid may be
// stale if the holder exited without a successor.
func Holder(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse lock file %s: %w", path, err)
	}
	return pid, nil
}
