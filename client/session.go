package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/frobware/go-mdnsoffload"
	pb "github.com/frobware/go-mdnsoffload/server/pb"
)

// Session is an owner session. Everything registered through it is
// withdrawn by the daemon when the session ends.
type Session struct {
	client *Client
	token  mdnsoffload.OwnerToken
	appID  mdnsoffload.AppID
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

// OpenSession opens a session labelled name. The session lasts until
// Close is called, ctx is cancelled or the daemon goes away.
func (c *Client) OpenSession(ctx context.Context, name string) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.client.Session(ctx, &pb.SessionRequest{Name: name})
	if err != nil {
		cancel()
		return nil, translateGRPCError(err)
	}
	ev, err := stream.Recv()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open session: %w", translateGRPCError(err))
	}

	s := &Session{
		client: c,
		token:  mdnsoffload.OwnerToken(ev.Token),
		appID:  mdnsoffload.AppID(ev.AppID),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: c.logger.With("session", ev.Token),
	}
	go s.hold(stream)
	return s, nil
}

// hold drains the stream until it ends.
func (s *Session) hold(stream grpc.ServerStreamingClient[pb.SessionEvent]) {
	defer close(s.done)
	for {
		if _, err := stream.Recv(); err != nil {
			if err != io.EOF {
				err = translateGRPCError(err)
			}
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.logger.Debug("session ended", "error", err)
			return
		}
	}
}

// Token returns the owner token the daemon assigned.
func (s *Session) Token() mdnsoffload.OwnerToken { return s.token }

// AppID returns the app id the daemon derived for this caller.
func (s *Session) AppID() mdnsoffload.AppID { return s.appID }

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns why the session ended, or nil while it is open. A
// session ended by the daemon reports io.EOF.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the session and waits for the stream to finish.
func (s *Session) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *Session) outgoing(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, pb.OwnerTokenKey, string(s.token))
}

// AddOffload asks the daemon to offload a response packet on iface.
func (s *Session) AddOffload(ctx context.Context, iface string, packet []byte) (mdnsoffload.RecordKey, error) {
	resp, err := s.client.client.AddOffload(s.outgoing(ctx), &pb.AddOffloadRequest{Interface: iface, Packet: packet})
	if err != nil {
		return 0, translateGRPCError(err)
	}
	return mdnsoffload.RecordKey(resp.RecordKey), nil
}

// RemoveOffload withdraws a response added by this session.
func (s *Session) RemoveOffload(ctx context.Context, key mdnsoffload.RecordKey) error {
	_, err := s.client.client.RemoveOffload(s.outgoing(ctx), &pb.RemoveOffloadRequest{RecordKey: uint32(key)})
	return translateGRPCError(err)
}

// AddPassthrough lets queries for qname on iface bypass the device.
func (s *Session) AddPassthrough(ctx context.Context, iface, qname string) error {
	_, err := s.client.client.AddPassthrough(s.outgoing(ctx), &pb.PassthroughRequest{Interface: iface, QName: qname})
	return translateGRPCError(err)
}

// RemovePassthrough withdraws a passthrough name added by this session.
func (s *Session) RemovePassthrough(ctx context.Context, iface, qname string) error {
	_, err := s.client.client.RemovePassthrough(s.outgoing(ctx), &pb.PassthroughRequest{Interface: iface, QName: qname})
	return translateGRPCError(err)
}
