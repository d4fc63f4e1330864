// Package remote carries the device contract over gRPC. Register
// exposes any device.Device on a server; Client implements
// device.Device against such a server; Supervise keeps a Client
// connected and reports connection changes.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/codec"
	"github.com/frobware/go-mdnsoffload/device"
)

var _ device.Device = (*Client)(nil)

// Client is a device reached over gRPC.
type Client struct {
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// Dial creates a client for the device at address. Unix socket paths
// may be given bare or with a unix:// prefix. No connection is made
// until the first call.
func Dial(address string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target := ParseAddress(address)
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithIdleTimeout(0),
		codec.CallOption(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}
	return &Client{conn: conn, logger: logger.With("component", "remote-device")}, nil
}

// ParseAddress normalises an address for gRPC.
func ParseAddress(address string) string {
	if strings.HasPrefix(address, "unix://") {
		return address
	}
	if strings.HasPrefix(address, "/") {
		return "unix://" + address
	}
	return address
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return translateError(method, err)
	}
	return nil
}

// Ping checks that the device is reachable. It waits for the
// connection to become ready, bounded by ctx.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var out PingReply
	if err := c.invoke(ctx, methodPing, &Empty{}, &out, grpc.WaitForReady(true)); err != nil {
		return "", err
	}
	return out.Version, nil
}

func (c *Client) AddProtocolResponse(ctx context.Context, iface string, data mdnsoffload.ProtocolData) (mdnsoffload.DeviceKey, error) {
	var out AddProtocolResponseReply
	if err := c.invoke(ctx, methodAddProtocolResponse, &AddProtocolResponseRequest{Interface: iface, Data: data}, &out); err != nil {
		return mdnsoffload.InvalidDeviceKey, err
	}
	return out.Key, nil
}

func (c *Client) RemoveProtocolResponse(ctx context.Context, key mdnsoffload.DeviceKey) error {
	return c.invoke(ctx, methodRemoveProtocolResponse, &KeyRequest{Key: key}, &Empty{})
}

func (c *Client) AddPassthroughEntry(ctx context.Context, iface, name string) (bool, error) {
	var out AddPassthroughEntryReply
	if err := c.invoke(ctx, methodAddPassthroughEntry, &PassthroughEntryRequest{Interface: iface, QName: name}, &out); err != nil {
		return false, err
	}
	return out.Added, nil
}

func (c *Client) RemovePassthroughEntry(ctx context.Context, iface, name string) error {
	return c.invoke(ctx, methodRemovePassthroughEntry, &PassthroughEntryRequest{Interface: iface, QName: name}, &Empty{})
}

func (c *Client) SetPassthroughMode(ctx context.Context, iface string, mode mdnsoffload.PassthroughMode) error {
	return c.invoke(ctx, methodSetPassthroughMode, &SetPassthroughModeRequest{Interface: iface, Mode: mode}, &Empty{})
}

func (c *Client) ResetAll(ctx context.Context) error {
	return c.invoke(ctx, methodResetAll, &Empty{}, &Empty{})
}

func (c *Client) SetGlobalOffloadEnabled(ctx context.Context, enabled bool) error {
	return c.invoke(ctx, methodSetGlobalOffloadEnabled, &SetGlobalOffloadEnabledRequest{Enabled: enabled}, &Empty{})
}

func (c *Client) TakeAndResetHitCounter(ctx context.Context, key mdnsoffload.DeviceKey) (int, error) {
	var out CounterReply
	if err := c.invoke(ctx, methodTakeAndResetHitCounter, &KeyRequest{Key: key}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) TakeAndResetMissCounter(ctx context.Context) (int, error) {
	var out CounterReply
	if err := c.invoke(ctx, methodTakeAndResetMissCounter, &Empty{}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// translateError strips the gRPC status wrapping and names the method.
func translateError(method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", method, err)
	}
	return fmt.Errorf("%s: %s: %s", method, st.Code(), st.Message())
}
