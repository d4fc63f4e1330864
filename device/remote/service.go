package remote

import (
	"context"

	"google.golang.org/grpc"

	"github.com/frobware/go-mdnsoffload/device"
)

// ServiceName is the gRPC service exposing a device.
const ServiceName = "mdnsoffload.v1.Device"

// ProtocolVersion is reported by Ping.
const ProtocolVersion = "1"

const (
	methodPing                    = "Ping"
	methodAddProtocolResponse     = "AddProtocolResponse"
	methodRemoveProtocolResponse  = "RemoveProtocolResponse"
	methodAddPassthroughEntry     = "AddPassthroughEntry"
	methodRemovePassthroughEntry  = "RemovePassthroughEntry"
	methodSetPassthroughMode      = "SetPassthroughMode"
	methodResetAll                = "ResetAll"
	methodSetGlobalOffloadEnabled = "SetGlobalOffloadEnabled"
	methodTakeAndResetHitCounter  = "TakeAndResetHitCounter"
	methodTakeAndResetMissCounter = "TakeAndResetMissCounter"
)

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds a method handler that decodes Req, invokes call against
// the registered device and returns its reply.
func unary[Req, Resp any](name string, call func(context.Context, device.Device, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			dev := srv.(device.Device)
			if interceptor == nil {
				return call(ctx, dev, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(ctx, dev, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*device.Device)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodPing, func(ctx context.Context, _ device.Device, _ *Empty) (*PingReply, error) {
			return &PingReply{Version: ProtocolVersion}, nil
		}),
		unary(methodAddProtocolResponse, func(ctx context.Context, dev device.Device, in *AddProtocolResponseRequest) (*AddProtocolResponseReply, error) {
			key, err := dev.AddProtocolResponse(ctx, in.Interface, in.Data)
			if err != nil {
				return nil, err
			}
			return &AddProtocolResponseReply{Key: key}, nil
		}),
		unary(methodRemoveProtocolResponse, func(ctx context.Context, dev device.Device, in *KeyRequest) (*Empty, error) {
			return &Empty{}, dev.RemoveProtocolResponse(ctx, in.Key)
		}),
		unary(methodAddPassthroughEntry, func(ctx context.Context, dev device.Device, in *PassthroughEntryRequest) (*AddPassthroughEntryReply, error) {
			added, err := dev.AddPassthroughEntry(ctx, in.Interface, in.QName)
			if err != nil {
				return nil, err
			}
			return &AddPassthroughEntryReply{Added: added}, nil
		}),
		unary(methodRemovePassthroughEntry, func(ctx context.Context, dev device.Device, in *PassthroughEntryRequest) (*Empty, error) {
			return &Empty{}, dev.RemovePassthroughEntry(ctx, in.Interface, in.QName)
		}),
		unary(methodSetPassthroughMode, func(ctx context.Context, dev device.Device, in *SetPassthroughModeRequest) (*Empty, error) {
			return &Empty{}, dev.SetPassthroughMode(ctx, in.Interface, in.Mode)
		}),
		unary(methodResetAll, func(ctx context.Context, dev device.Device, _ *Empty) (*Empty, error) {
			return &Empty{}, dev.ResetAll(ctx)
		}),
		unary(methodSetGlobalOffloadEnabled, func(ctx context.Context, dev device.Device, in *SetGlobalOffloadEnabledRequest) (*Empty, error) {
			return &Empty{}, dev.SetGlobalOffloadEnabled(ctx, in.Enabled)
		}),
		unary(methodTakeAndResetHitCounter, func(ctx context.Context, dev device.Device, in *KeyRequest) (*CounterReply, error) {
			n, err := dev.TakeAndResetHitCounter(ctx, in.Key)
			if err != nil {
				return nil, err
			}
			return &CounterReply{Count: n}, nil
		}),
		unary(methodTakeAndResetMissCounter, func(ctx context.Context, dev device.Device, _ *Empty) (*CounterReply, error) {
			n, err := dev.TakeAndResetMissCounter(ctx)
			if err != nil {
				return nil, err
			}
			return &CounterReply{Count: n}, nil
		}),
	},
	Metadata: "mdnsoffload/device.cbor",
}

// Register exposes dev on s. The server must use the CBOR codec.
func Register(s grpc.ServiceRegistrar, dev device.Device) {
	s.RegisterService(&serviceDesc, dev)
}
