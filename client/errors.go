package client

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/frobware/go-mdnsoffload"
	pb "github.com/frobware/go-mdnsoffload/server/pb"
)

var (
	// ErrStopped is returned when the daemon is shutting down.
	ErrStopped = errors.New("daemon stopped")

	// ErrPermissionDenied is returned for calls the caller's uid may
	// not make.
	ErrPermissionDenied = errors.New("permission denied")
)

// remoteError is a daemon error that matches the corresponding local
// sentinel with errors.Is.
type remoteError struct {
	code codes.Code
	msg  string
	kind error
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.kind }

// Code returns the gRPC status code the daemon sent.
func (e *remoteError) Code() codes.Code { return e.code }

var reasons = map[string]error{
	pb.ReasonMalformedPacket: mdnsoffload.ErrFormat,
	pb.ReasonInvalidRequest:  mdnsoffload.ErrInvalidRequest,
	pb.ReasonUnknownOwner:    mdnsoffload.ErrUnknownOwner,
	pb.ReasonStopped:         ErrStopped,
}

// translateGRPCError converts gRPC status errors into errors matching
// the mdnsoffload sentinels. Errors without a known reason are
// returned unchanged.
func translateGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.Domain != pb.ErrorDomain {
			continue
		}
		if kind, ok := reasons[info.Reason]; ok {
			return &remoteError{code: st.Code(), msg: st.Message(), kind: kind}
		}
	}

	if st.Code() == codes.PermissionDenied {
		return &remoteError{code: st.Code(), msg: st.Message(), kind: ErrPermissionDenied}
	}
	return err
}
