package server

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/manager"
	pb "github.com/frobware/go-mdnsoffload/server/pb"
)

// toStatus converts a domain error into a gRPC status error carrying an
// ErrorInfo reason the client can map back.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code, reason := classify(err)
	st := status.New(code, err.Error())
	if reason != "" {
		detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: pb.ErrorDomain})
		if derr == nil {
			st = detailed
		}
	}
	return st.Err()
}

func classify(err error) (codes.Code, string) {
	switch {
	case errors.Is(err, mdnsoffload.ErrFormat):
		return codes.InvalidArgument, pb.ReasonMalformedPacket
	case errors.Is(err, mdnsoffload.ErrInvalidRequest):
		return codes.InvalidArgument, pb.ReasonInvalidRequest
	case errors.Is(err, mdnsoffload.ErrUnknownOwner):
		return codes.FailedPrecondition, pb.ReasonUnknownOwner
	case errors.Is(err, manager.ErrStopped):
		return codes.Unavailable, pb.ReasonStopped
	case errors.Is(err, errUnauthenticated):
		return codes.Unauthenticated, ""
	case errors.Is(err, errPermissionDenied):
		return codes.PermissionDenied, ""
	case errors.Is(err, context.Canceled):
		return codes.Canceled, ""
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, ""
	default:
		return codes.Internal, ""
	}
}
