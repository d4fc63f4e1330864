// Package logging builds the daemon's slog loggers: a text or JSON
// handler behind a filter that applies a per-component level taken
// from a spec string such as "info,reconciler=debug".
package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level extends slog's levels with trace. Values for debug through
// error match the slog constants.
type Level int

const (
	// LevelTrace sits below debug and has no slog constant.
	LevelTrace Level = -8
	// LevelDebug equals slog.LevelDebug.
	LevelDebug Level = -4
	// LevelInfo equals slog.LevelInfo.
	LevelInfo Level = 0
	// LevelWarn equals slog.LevelWarn. Non-fatal device and ownership
	// failures are reported at this level.
	LevelWarn Level = 4
	// LevelError equals slog.LevelError.
	LevelError Level = 8
)

// ParseLevel parses trace, debug, info, warn or error
// (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "err":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// ToSlog converts Level to slog.Level.
func (l Level) ToSlog() slog.Level {
	return slog.Level(l)
}

// String returns the lower-case name ParseLevel accepts.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("Level(%d)", l)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
