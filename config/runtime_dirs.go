package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRuntimeBase is where the daemon keeps its state when
// --runtime-dir is not given.
const DefaultRuntimeBase = "/run/mdnsoffload"

// RuntimeDirs derives every path the daemon touches from one base
// directory:
//
//	{base}/.lock                      single-instance lock
//	{base}/db/metrics.db              harvested counters
//	{base}-sock/mdnsoffload.sock      command socket
//	{base}-sock/device.sock           default fake-device listener
//
// The zero value is not usable; build one with NewRuntimeDirs.
type RuntimeDirs struct {
	base string
}

// DefaultRuntimeDirs returns the layout rooted at DefaultRuntimeBase.
func DefaultRuntimeDirs() RuntimeDirs {
	dirs, err := NewRuntimeDirs(DefaultRuntimeBase)
	if err != nil {
		panic(fmt.Sprintf("DefaultRuntimeDirs: %v", err))
	}
	return dirs
}

// NewRuntimeDirs roots the layout at base, which must be absolute.
func NewRuntimeDirs(base string) (RuntimeDirs, error) {
	switch {
	case base == "":
		return RuntimeDirs{}, errors.New("base path cannot be empty")
	case !filepath.IsAbs(base):
		return RuntimeDirs{}, fmt.Errorf("base path must be absolute, got %q", base)
	}
	return RuntimeDirs{base: filepath.Clean(base)}, nil
}

func (d RuntimeDirs) Base() string { return d.base }
func (d RuntimeDirs) DB() string   { return filepath.Join(d.base, "db") }
func (d RuntimeDirs) Lock() string { return filepath.Join(d.base, ".lock") }

// Sock is kept beside base rather than under it so the socket can be
// bind-mounted into other containers on its own.
func (d RuntimeDirs) Sock() string { return d.base + "-sock" }

func (d RuntimeDirs) SocketPath() string       { return filepath.Join(d.Sock(), "mdnsoffload.sock") }
func (d RuntimeDirs) DeviceSocketPath() string { return filepath.Join(d.Sock(), "device.sock") }
func (d RuntimeDirs) DBPath() string           { return filepath.Join(d.DB(), "metrics.db") }

// EnsureDirectories creates base, DB and Sock.
func (d RuntimeDirs) EnsureDirectories() error {
	for _, dir := range []string{d.base, d.DB(), d.Sock()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create runtime directory %s: %w", dir, err)
		}
	}
	return nil
}
