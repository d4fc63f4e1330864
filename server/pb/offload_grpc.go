package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	Offload_Session_FullMethodName           = "/mdnsoffload.v1.Offload/Session"
	Offload_AddOffload_FullMethodName        = "/mdnsoffload.v1.Offload/AddOffload"
	Offload_RemoveOffload_FullMethodName     = "/mdnsoffload.v1.Offload/RemoveOffload"
	Offload_AddPassthrough_FullMethodName    = "/mdnsoffload.v1.Offload/AddPassthrough"
	Offload_RemovePassthrough_FullMethodName = "/mdnsoffload.v1.Offload/RemovePassthrough"
	Offload_SetAllowList_FullMethodName      = "/mdnsoffload.v1.Offload/SetAllowList"
	Offload_SetInteractive_FullMethodName    = "/mdnsoffload.v1.Offload/SetInteractive"
	Offload_Dump_FullMethodName              = "/mdnsoffload.v1.Offload/Dump"
)

// OwnerTokenKey is the metadata key carrying the session token on
// owner calls.
const OwnerTokenKey = "x-owner-token"

// OffloadClient is the client API for the Offload service.
type OffloadClient interface {
	Session(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[SessionEvent], error)
	AddOffload(ctx context.Context, in *AddOffloadRequest, opts ...grpc.CallOption) (*AddOffloadResponse, error)
	RemoveOffload(ctx context.Context, in *RemoveOffloadRequest, opts ...grpc.CallOption) (*Empty, error)
	AddPassthrough(ctx context.Context, in *PassthroughRequest, opts ...grpc.CallOption) (*Empty, error)
	RemovePassthrough(ctx context.Context, in *PassthroughRequest, opts ...grpc.CallOption) (*Empty, error)
	SetAllowList(ctx context.Context, in *SetAllowListRequest, opts ...grpc.CallOption) (*Empty, error)
	SetInteractive(ctx context.Context, in *SetInteractiveRequest, opts ...grpc.CallOption) (*Empty, error)
	Dump(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*DumpResponse, error)
}

type offloadClient struct {
	cc grpc.ClientConnInterface
}

func NewOffloadClient(cc grpc.ClientConnInterface) OffloadClient {
	return &offloadClient{cc}
}

func (c *offloadClient) Session(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[SessionEvent], error) {
	stream, err := c.cc.NewStream(ctx, &Offload_ServiceDesc.Streams[0], Offload_Session_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SessionRequest, SessionEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *offloadClient) AddOffload(ctx context.Context, in *AddOffloadRequest, opts ...grpc.CallOption) (*AddOffloadResponse, error) {
	return invoke[AddOffloadResponse](ctx, c.cc, Offload_AddOffload_FullMethodName, in, opts)
}

func (c *offloadClient) RemoveOffload(ctx context.Context, in *RemoveOffloadRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Offload_RemoveOffload_FullMethodName, in, opts)
}

func (c *offloadClient) AddPassthrough(ctx context.Context, in *PassthroughRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Offload_AddPassthrough_FullMethodName, in, opts)
}

func (c *offloadClient) RemovePassthrough(ctx context.Context, in *PassthroughRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Offload_RemovePassthrough_FullMethodName, in, opts)
}

func (c *offloadClient) SetAllowList(ctx context.Context, in *SetAllowListRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Offload_SetAllowList_FullMethodName, in, opts)
}

func (c *offloadClient) SetInteractive(ctx context.Context, in *SetInteractiveRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Offload_SetInteractive_FullMethodName, in, opts)
}

func (c *offloadClient) Dump(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*DumpResponse, error) {
	return invoke[DumpResponse](ctx, c.cc, Offload_Dump_FullMethodName, in, opts)
}

// OffloadServer is the server API for the Offload service.
// Implementations must embed UnimplementedOffloadServer.
type OffloadServer interface {
	Session(*SessionRequest, grpc.ServerStreamingServer[SessionEvent]) error
	AddOffload(context.Context, *AddOffloadRequest) (*AddOffloadResponse, error)
	RemoveOffload(context.Context, *RemoveOffloadRequest) (*Empty, error)
	AddPassthrough(context.Context, *PassthroughRequest) (*Empty, error)
	RemovePassthrough(context.Context, *PassthroughRequest) (*Empty, error)
	SetAllowList(context.Context, *SetAllowListRequest) (*Empty, error)
	SetInteractive(context.Context, *SetInteractiveRequest) (*Empty, error)
	Dump(context.Context, *Empty) (*DumpResponse, error)
	mustEmbedUnimplementedOffloadServer()
}

// UnimplementedOffloadServer must be embedded for forward
// compatibility.
type UnimplementedOffloadServer struct{}

func (UnimplementedOffloadServer) Session(*SessionRequest, grpc.ServerStreamingServer[SessionEvent]) error {
	return status.Error(codes.Unimplemented, "method Session not implemented")
}
func (UnimplementedOffloadServer) AddOffload(context.Context, *AddOffloadRequest) (*AddOffloadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddOffload not implemented")
}
func (UnimplementedOffloadServer) RemoveOffload(context.Context, *RemoveOffloadRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveOffload not implemented")
}
func (UnimplementedOffloadServer) AddPassthrough(context.Context, *PassthroughRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method AddPassthrough not implemented")
}
func (UnimplementedOffloadServer) RemovePassthrough(context.Context, *PassthroughRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method RemovePassthrough not implemented")
}
func (UnimplementedOffloadServer) SetAllowList(context.Context, *SetAllowListRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method SetAllowList not implemented")
}
func (UnimplementedOffloadServer) SetInteractive(context.Context, *SetInteractiveRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method SetInteractive not implemented")
}
func (UnimplementedOffloadServer) Dump(context.Context, *Empty) (*DumpResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Dump not implemented")
}
func (UnimplementedOffloadServer) mustEmbedUnimplementedOffloadServer() {}

func RegisterOffloadServer(s grpc.ServiceRegistrar, srv OffloadServer) {
	s.RegisterService(&Offload_ServiceDesc, srv)
}

func _Offload_Session_Handler(srv any, stream grpc.ServerStream) error {
	m := new(SessionRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(OffloadServer).Session(m, &grpc.GenericServerStream[SessionRequest, SessionEvent]{ServerStream: stream})
}

// unaryHandler adapts a typed OffloadServer method to a grpc.MethodDesc
// handler.
func unaryHandler[Req, Resp any](method string, call func(OffloadServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OffloadServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(OffloadServer), ctx, req.(*Req))
		})
	}
}

// Offload_ServiceDesc is the grpc.ServiceDesc for the Offload service.
var Offload_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "mdnsoffload.v1.Offload",
	HandlerType: (*OffloadServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddOffload", Handler: unaryHandler(Offload_AddOffload_FullMethodName, OffloadServer.AddOffload)},
		{MethodName: "RemoveOffload", Handler: unaryHandler(Offload_RemoveOffload_FullMethodName, OffloadServer.RemoveOffload)},
		{MethodName: "AddPassthrough", Handler: unaryHandler(Offload_AddPassthrough_FullMethodName, OffloadServer.AddPassthrough)},
		{MethodName: "RemovePassthrough", Handler: unaryHandler(Offload_RemovePassthrough_FullMethodName, OffloadServer.RemovePassthrough)},
		{MethodName: "SetAllowList", Handler: unaryHandler(Offload_SetAllowList_FullMethodName, OffloadServer.SetAllowList)},
		{MethodName: "SetInteractive", Handler: unaryHandler(Offload_SetInteractive_FullMethodName, OffloadServer.SetInteractive)},
		{MethodName: "Dump", Handler: unaryHandler(Offload_Dump_FullMethodName, OffloadServer.Dump)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Session",
			Handler:       _Offload_Session_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "mdnsoffload/offload.cbor",
}
