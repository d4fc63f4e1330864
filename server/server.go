// Package server implements the mdnsoffload daemon and its gRPC command
// surface.
//
// Clients open an owner session with the Session stream and present the
// returned token on every registration. The stream is held open for the
// client's lifetime; when it ends, for whatever reason, every intent
// registered under the token is withdrawn. Callers are identified by
// the kernel-reported uid of the unix socket peer.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/codec"
	"github.com/frobware/go-mdnsoffload/config"
	"github.com/frobware/go-mdnsoffload/device/remote"
	"github.com/frobware/go-mdnsoffload/lock"
	"github.com/frobware/go-mdnsoffload/manager"
	"github.com/frobware/go-mdnsoffload/netwatch"
	pb "github.com/frobware/go-mdnsoffload/server/pb"
	"github.com/frobware/go-mdnsoffload/store/sqlite"
)

// MaxRequestSize bounds an inbound message. A multicast DNS packet is
// at most 9000 bytes (RFC 6762 section 17).
const MaxRequestSize = 64 << 10

// RunConfig configures the daemon.
type RunConfig struct {
	Dirs   config.RuntimeDirs
	Config config.Config
	Logger *slog.Logger
	// Links supplies interface availability. Nil subscribes to
	// netlink.
	Links netwatch.Source
}

// Run starts the daemon and blocks until ctx is cancelled or a
// component fails. Only one daemon may run per runtime directory.
func Run(ctx context.Context, cfg RunConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Dirs.EnsureDirectories(); err != nil {
		return fmt.Errorf("runtime directory setup failed: %w", err)
	}
	return lock.TryRun(ctx, cfg.Dirs.Lock(), func(ctx context.Context, _ lock.Held) error {
		return run(ctx, cfg, logger)
	})
}

func run(ctx context.Context, cfg RunConfig, logger *slog.Logger) error {
	dirs := cfg.Dirs
	conf := cfg.Config

	var metrics manager.MetricsSink
	if conf.Metrics.Enabled {
		st, err := sqlite.New(ctx, dirs.DBPath(), logger)
		if err != nil {
			return fmt.Errorf("failed to open store at %s: %w", dirs.DBPath(), err)
		}
		defer st.Close()
		if retention := conf.Metrics.Retention.Duration; retention > 0 {
			n, err := st.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				return fmt.Errorf("prune metrics: %w", err)
			}
			logger.Info("pruned metrics", "harvests", n, "retention", retention)
		}
		metrics = st
	} else {
		logger.Info("metrics store disabled")
	}

	mgr := manager.New(manager.Config{
		PriorityQNames: conf.Offload.PriorityQNames,
		AllowList:      conf.Offload.AllowList(),
		Interactive:    conf.Offload.StartInteractive,
		Metrics:        metrics,
		Logger:         logger,
	})

	links := cfg.Links
	if links == nil {
		links = netwatch.NetlinkSource{Logger: logger}
	}
	watcher := netwatch.New(links, mgr, netwatch.Options{
		Interfaces: conf.Offload.Interfaces,
		Logger:     logger,
	})

	dev, err := remote.Dial(conf.Device.Address, logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	srv := New(mgr, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(ctx) })
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error {
		return remote.Supervise(ctx, dev, mgr, remote.SuperviseConfig{
			PingTimeout: conf.Device.ConnectTimeout.Duration,
			Logger:      logger,
		})
	})
	g.Go(func() error { return srv.serve(ctx, dirs.SocketPath()) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Engine is the subset of the manager the command surface drives.
type Engine interface {
	AddOffload(ctx context.Context, owner manager.Owner, iface string, packet []byte) (mdnsoffload.RecordKey, error)
	RemoveOffload(ctx context.Context, owner mdnsoffload.OwnerToken, key mdnsoffload.RecordKey) error
	AddPassthrough(ctx context.Context, owner manager.Owner, iface, qname string) error
	RemovePassthrough(ctx context.Context, owner mdnsoffload.OwnerToken, iface, qname string) error
	SetAllowList(ctx context.Context, ids []mdnsoffload.AppID) error
	SetInteractive(ctx context.Context, interactive bool) error
	Dump(ctx context.Context) (manager.Dump, error)
}

// Server implements the Offload gRPC service.
type Server struct {
	pb.UnimplementedOffloadServer

	engine    Engine
	adminUIDs map[uint32]struct{}
	logger    *slog.Logger
	opCounter atomic.Uint64

	mu       sync.Mutex
	sessions map[mdnsoffload.OwnerToken]*session
	closing  chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithAdminUIDs replaces the set of uids allowed to make
// administrative calls. The default is root and the daemon's own uid.
func WithAdminUIDs(uids ...uint32) Option {
	return func(s *Server) {
		s.adminUIDs = make(map[uint32]struct{}, len(uids))
		for _, uid := range uids {
			s.adminUIDs[uid] = struct{}{}
		}
	}
}

// New creates a server driving engine.
func New(engine Engine, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: engine,
		adminUIDs: map[uint32]struct{}{
			0:                   {},
			uint32(os.Getuid()): {},
		},
		logger:   logger.With("component", "server"),
		sessions: make(map[mdnsoffload.OwnerToken]*session),
		closing:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewGRPCServer returns a gRPC server with s registered, using peer
// credentials, the CBOR codec and the logging interceptors.
func (s *Server) NewGRPCServer() *grpc.Server {
	gs := grpc.NewServer(
		grpc.Creds(peerCredentials{}),
		grpc.MaxRecvMsgSize(MaxRequestSize),
		codec.ServerOption(),
		grpc.UnaryInterceptor(s.loggingInterceptor()),
		grpc.StreamInterceptor(s.streamLoggingInterceptor()),
	)
	pb.RegisterOffloadServer(gs, s)
	return gs
}

// Shutdown ends every open session. Subsequent sessions end as soon as
// they start.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closing:
	default:
		close(s.closing)
	}
}

// serve listens on socketPath until ctx is cancelled.
func (s *Server) serve(ctx context.Context, socketPath string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	defer ln.Close()

	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	gs := s.NewGRPCServer()
	errChan := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "gRPC server listening", "socket", socketPath)
		if err := gs.Serve(ln); err != nil {
			errChan <- fmt.Errorf("unix socket server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "shutting down gRPC server")
		s.Shutdown()
		gs.GracefulStop()
		return nil
	case err := <-errChan:
		return err
	}
}

// loggingInterceptor returns a gRPC unary interceptor that assigns a
// monotonic operation ID to each request and logs errors.
func (s *Server) loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		opID := s.opCounter.Add(1)
		resp, err := handler(ctx, req)
		if err != nil {
			s.logger.ErrorContext(ctx, "grpc error", "op_id", opID, "method", info.FullMethod, "error", err)
		} else {
			s.logger.DebugContext(ctx, "grpc call", "op_id", opID, "method", info.FullMethod)
		}
		return resp, toStatus(err)
	}
}

func (s *Server) streamLoggingInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		opID := s.opCounter.Add(1)
		err := handler(srv, ss)
		if err != nil {
			s.logger.Error("grpc stream error", "op_id", opID, "method", info.FullMethod, "error", err)
		}
		return toStatus(err)
	}
}

// Session opens an owner session and holds it until the caller goes
// away or the server shuts down.
func (s *Server) Session(req *pb.SessionRequest, stream grpc.ServerStreamingServer[pb.SessionEvent]) error {
	ctx := stream.Context()
	cred, err := peerCredFrom(ctx)
	if err != nil {
		return err
	}

	sess := s.openSession(cred, req.Name)
	defer s.closeSession(sess)

	if err := stream.Send(&pb.SessionEvent{Token: string(sess.token), AppID: uint32(cred.AppID())}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-s.closing:
	}
	return nil
}

// AddOffload registers a response packet for the caller's session.
func (s *Server) AddOffload(ctx context.Context, req *pb.AddOffloadRequest) (*pb.AddOffloadResponse, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	if req.Interface == "" {
		return nil, fmt.Errorf("interface is required: %w", mdnsoffload.ErrInvalidRequest)
	}
	key, err := s.engine.AddOffload(ctx, owner, req.Interface, req.Packet)
	if err != nil {
		return nil, err
	}
	return &pb.AddOffloadResponse{RecordKey: uint32(key)}, nil
}

// RemoveOffload withdraws a response previously registered by the
// caller's session.
func (s *Server) RemoveOffload(ctx context.Context, req *pb.RemoveOffloadRequest) (*pb.Empty, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	if req.RecordKey == 0 {
		return nil, fmt.Errorf("record key must be positive: %w", mdnsoffload.ErrInvalidRequest)
	}
	if err := s.engine.RemoveOffload(ctx, owner.Token, mdnsoffload.RecordKey(req.RecordKey)); err != nil {
		return nil, err
	}
	return &pb.Empty{}, nil
}

// AddPassthrough lets queries for a name bypass the device filter.
func (s *Server) AddPassthrough(ctx context.Context, req *pb.PassthroughRequest) (*pb.Empty, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	if req.Interface == "" || req.QName == "" {
		return nil, fmt.Errorf("interface and qname are required: %w", mdnsoffload.ErrInvalidRequest)
	}
	if err := s.engine.AddPassthrough(ctx, owner, req.Interface, req.QName); err != nil {
		return nil, err
	}
	return &pb.Empty{}, nil
}

// RemovePassthrough withdraws a passthrough name.
func (s *Server) RemovePassthrough(ctx context.Context, req *pb.PassthroughRequest) (*pb.Empty, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	if req.QName == "" {
		return nil, fmt.Errorf("qname is required: %w", mdnsoffload.ErrInvalidRequest)
	}
	if err := s.engine.RemovePassthrough(ctx, owner.Token, req.Interface, req.QName); err != nil {
		return nil, err
	}
	return &pb.Empty{}, nil
}

// SetAllowList replaces the set of app ids whose intents are
// materialised.
func (s *Server) SetAllowList(ctx context.Context, req *pb.SetAllowListRequest) (*pb.Empty, error) {
	if err := s.admin(ctx); err != nil {
		return nil, err
	}
	ids := make([]mdnsoffload.AppID, len(req.AppIDs))
	for i, id := range req.AppIDs {
		ids[i] = mdnsoffload.AppID(id)
	}
	if err := s.engine.SetAllowList(ctx, ids); err != nil {
		return nil, err
	}
	return &pb.Empty{}, nil
}

// SetInteractive reports the primary domain's interactive state.
func (s *Server) SetInteractive(ctx context.Context, req *pb.SetInteractiveRequest) (*pb.Empty, error) {
	if err := s.admin(ctx); err != nil {
		return nil, err
	}
	if err := s.engine.SetInteractive(ctx, req.Interactive); err != nil {
		return nil, err
	}
	return &pb.Empty{}, nil
}

// Dump returns the manager's state.
func (s *Server) Dump(ctx context.Context, _ *pb.Empty) (*pb.DumpResponse, error) {
	if err := s.admin(ctx); err != nil {
		return nil, err
	}
	d, err := s.engine.Dump(ctx)
	if err != nil {
		return nil, err
	}
	return dumpToProto(d), nil
}
