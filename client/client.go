// Package client talks to a running mdnsoffload daemon.
//
// Registrations are made through a Session, whose lifetime bounds the
// lifetime of everything registered with it:
//
//	c, err := client.Dial(client.DefaultSocketPath())
//	s, err := c.OpenSession(ctx, "my-service")
//	key, err := s.AddOffload(ctx, "wlan0", packet)
//	...
//	s.Close() // withdraws key
package client

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/codec"
	pb "github.com/frobware/go-mdnsoffload/server/pb"
)

// Client is a connection to the daemon's command socket.
type Client struct {
	client pb.OffloadClient
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// Dial creates a Client for the daemon listening on the unix socket at
// address. No connection is made until the
// first call.
func Dial(address string, opts ...Option) (*Client, error) {
	o := dialOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt.apply(&o)
	}

	target := parseAddress(address)
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		codec.CallOption(),
	}, o.dialOptions...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}
	return &Client{
		client: pb.NewOffloadClient(conn),
		conn:   conn,
		logger: o.logger,
	}, nil
}

// parseAddress turns a socket path into a gRPC unix target.
func parseAddress(address string) string {
	switch {
	case strings.HasPrefix(address, "unix:"):
		return address
	case filepath.IsAbs(address):
		return "unix://" + address
	default:
		return "unix:" + address
	}
}

// Close releases the connection. Open sessions end with it.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetAllowList replaces the daemon's allow-list.
func (c *Client) SetAllowList(ctx context.Context, ids []mdnsoffload.AppID) error {
	req := &pb.SetAllowListRequest{AppIDs: make([]uint32, len(ids))}
	for i, id := range ids {
		req.AppIDs[i] = uint32(id)
	}
	_, err := c.client.SetAllowList(ctx, req)
	return translateGRPCError(err)
}

// SetInteractive reports whether the primary domain is interactive.
func (c *Client) SetInteractive(ctx context.Context, interactive bool) error {
	_, err := c.client.SetInteractive(ctx, &pb.SetInteractiveRequest{Interactive: interactive})
	return translateGRPCError(err)
}

// Dump returns the daemon's state.
func (c *Client) Dump(ctx context.Context) (*pb.DumpResponse, error) {
	resp, err := c.client.Dump(ctx, &pb.Empty{})
	if err != nil {
		return nil, translateGRPCError(err)
	}
	return resp, nil
}
