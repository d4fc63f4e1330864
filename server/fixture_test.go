package server_test

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/codec"
	"github.com/frobware/go-mdnsoffload/device/fake"
	"github.com/frobware/go-mdnsoffload/manager"
	"github.com/frobware/go-mdnsoffload/server"
	pb "github.com/frobware/go-mdnsoffload/server/pb"
)

const ifc0 = "imaginaryif0"

// testLogger returns a logger for tests. By default it discards all
// output. Set MDNSOFFLOAD_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("MDNSOFFLOAD_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.DiscardHandler)
}

// selfAppID is the app id every connection in these tests presents.
func selfAppID() mdnsoffload.AppID {
	return mdnsoffload.AppIDFromUID(uint32(os.Getuid()))
}

// testFixture runs a manager driving a fake device behind a server on
// a unix socket.
type testFixture struct {
	t      *testing.T
	ctx    context.Context
	Server *server.Server
	Device *fake.Device
	Client pb.OffloadClient
}

func newTestFixture(t *testing.T, opts ...server.Option) *testFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	mgr := manager.New(manager.Config{
		AllowList: []mdnsoffload.AppID{selfAppID()},
		Logger:    testLogger(),
	})
	mgrDone := make(chan error, 1)
	go func() { mgrDone <- mgr.Run(ctx) }()

	dev := fake.New()
	require.NoError(t, mgr.DeviceConnected(ctx, dev))
	require.NoError(t, mgr.NetworkAvailable(ctx, ifc0))

	srv := server.New(mgr, testLogger(), opts...)
	sock := filepath.Join(t.TempDir(), "s.sock")
	lis, err := net.Listen("unix", sock)
	require.NoError(t, err)
	gs := srv.NewGRPCServer()
	go func() { _ = gs.Serve(lis) }()

	conn, err := grpc.NewClient("unix://"+sock,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		codec.CallOption(),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Shutdown()
		gs.Stop()
		cancel()
		<-mgrDone
	})

	return &testFixture{
		t:      t,
		ctx:    ctx,
		Server: srv,
		Device: dev,
		Client: pb.NewOffloadClient(conn),
	}
}

// testSession is an open owner session.
type testSession struct {
	Token  string
	AppID  uint32
	stream grpc.ServerStreamingClient[pb.SessionEvent]
	cancel context.CancelFunc
}

// Close ends the session stream.
func (s *testSession) Close() { s.cancel() }

func (f *testFixture) openSession(name string) *testSession {
	f.t.Helper()
	ctx, cancel := context.WithCancel(f.ctx)
	f.t.Cleanup(cancel)
	stream, err := f.Client.Session(ctx, &pb.SessionRequest{Name: name})
	require.NoError(f.t, err)
	ev, err := stream.Recv()
	require.NoError(f.t, err)
	require.NotEmpty(f.t, ev.Token)
	return &testSession{Token: ev.Token, AppID: ev.AppID, stream: stream, cancel: cancel}
}

// as returns a context presenting the session's token.
func (f *testFixture) as(s *testSession) context.Context {
	return metadata.AppendToOutgoingContext(f.ctx, pb.OwnerTokenKey, s.Token)
}

func (f *testFixture) offload(s *testSession, iface string, packet []byte) uint32 {
	f.t.Helper()
	resp, err := f.Client.AddOffload(f.as(s), &pb.AddOffloadRequest{Interface: iface, Packet: packet})
	require.NoError(f.t, err)
	require.Positive(f.t, resp.RecordKey)
	return resp.RecordKey
}

// dump also acts as a barrier: every earlier call has been handled once
// it returns.
func (f *testFixture) dump() *pb.DumpResponse {
	f.t.Helper()
	d, err := f.Client.Dump(f.ctx, &pb.Empty{})
	require.NoError(f.t, err)
	return d
}

// requireStatus asserts err is a gRPC status with code and, when
// reason is non-empty, an ErrorInfo detail carrying reason.
func requireStatus(t *testing.T, err error, code codes.Code, reason string) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "not a status error: %v", err)
	assert.Equal(t, code, st.Code(), st.Message())
	if reason == "" {
		return
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			assert.Equal(t, reason, info.Reason)
			assert.Equal(t, pb.ErrorDomain, info.Domain)
			return
		}
	}
	t.Errorf("no ErrorInfo detail in %v", err)
}
