package remote

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/grpc/connectivity"

	"github.com/frobware/go-mdnsoffload/device"
)

// Handler is told when the device becomes reachable and when it is
// lost. manager.Manager satisfies it.
type Handler interface {
	DeviceConnected(ctx context.Context, dev device.Device) error
	DeviceDisconnected(ctx context.Context) error
}

// SuperviseConfig configures Supervise.
type SuperviseConfig struct {
	// PingTimeout bounds each handshake attempt.
	PingTimeout time.Duration
	// MaxBackoff caps the delay between failed handshakes.
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// Supervise handshakes with the device behind c, reports it to h, and
// reports its loss when the connection fails. It repeats until ctx is
// cancelled and then returns ctx.Err().
func Supervise(ctx context.Context, c *Client, h Handler, cfg SuperviseConfig) error {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = c.logger
	}

	for {
		if err := handshake(ctx, c, cfg, logger); err != nil {
			return err
		}
		if err := h.DeviceConnected(ctx, c); err != nil {
			return err
		}

		awaitLoss(ctx, c)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("device connection lost", "state", c.conn.GetState())
		if err := h.DeviceDisconnected(ctx); err != nil {
			return err
		}
	}
}

// handshake pings the device with exponential backoff until it answers
// or ctx is done.
func handshake(ctx context.Context, c *Client, cfg SuperviseConfig, logger *slog.Logger) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxInterval = cfg.MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.1

	ping := func() (string, error) {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
		return c.Ping(pingCtx)
	}
	notify := func(err error, next time.Duration) {
		logger.Debug("device handshake failed", "error", err, "retry_in", next)
	}

	version, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	logger.Info("device reachable", "target", c.conn.Target(), "version", version)
	return nil
}

// awaitLoss blocks until the connection leaves Ready or ctx is done.
// Idle timeouts are disabled by Dial, so any departure from Ready means
// the transport to the device went away.
func awaitLoss(ctx context.Context, c *Client) {
	for {
		state := c.conn.GetState()
		if state != connectivity.Ready {
			return
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return
		}
	}
}
