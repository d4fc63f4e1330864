package client

import (
	"log/slog"

	"google.golang.org/grpc"

	"github.com/frobware/go-mdnsoffload/config"
)

// DefaultSocketPath returns the command socket of a daemon using the
// default runtime directories.
func DefaultSocketPath() string {
	return config.DefaultRuntimeDirs().SocketPath()
}

// Option configures Dial.
type Option interface {
	apply(*dialOptions)
}

type dialOptions struct {
	logger      *slog.Logger
	dialOptions []grpc.DialOption
}

type funcOption func(*dialOptions)

func (f funcOption) apply(o *dialOptions) { f(o) }

// WithLogger sets the logger for client operations.
// If not specified, a no-op logger is used.
func WithLogger(l *slog.Logger) Option {
	return funcOption(func(o *dialOptions) { o.logger = l })
}

// WithDialOptions appends gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return funcOption(func(o *dialOptions) { o.dialOptions = append(o.dialOptions, opts...) })
}
