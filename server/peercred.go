package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"

	"github.com/frobware/go-mdnsoffload"
)

var (
	errUnauthenticated  = errors.New("caller identity unavailable")
	errPermissionDenied = errors.New("permission denied")
)

// PeerCred is the identity of a caller on the command socket, read
// with SO_PEERCRED when the connection is accepted.
type PeerCred struct {
	credentials.CommonAuthInfo
	PID int32
	UID uint32
	GID uint32
}

// AuthType implements credentials.AuthInfo.
func (PeerCred) AuthType() string { return "peercred" }

// AppID is the caller's uid with the user component removed.
func (p PeerCred) AppID() mdnsoffload.AppID {
	return mdnsoffload.AppIDFromUID(p.UID)
}

// peerCredentials is a server-side TransportCredentials that performs
// no handshake and records the kernel's view of the peer on unix
// sockets. Other connection types carry no identity.
type peerCredentials struct{}

func (peerCredentials) ClientHandshake(_ context.Context, _ string, conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	return conn, nil, errors.New("peer credentials are server-side only")
}

func (peerCredentials) ServerHandshake(conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return conn, nil, nil
	}
	cred, err := readPeerCred(uc)
	if err != nil {
		return nil, nil, err
	}
	return conn, PeerCred{
		CommonAuthInfo: credentials.CommonAuthInfo{SecurityLevel: credentials.NoSecurity},
		PID:            cred.Pid,
		UID:            cred.Uid,
		GID:            cred.Gid,
	}, nil
}

func (peerCredentials) Info() credentials.ProtocolInfo {
	return credentials.ProtocolInfo{SecurityProtocol: "peercred"}
}

func (c peerCredentials) Clone() credentials.TransportCredentials { return c }

func (peerCredentials) OverrideServerName(string) error { return nil }

func readPeerCred(conn *net.UnixConn) (*unix.Ucred, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("peer credentials: %w", err)
	}
	var (
		cred    *unix.Ucred
		credErr error
	)
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return nil, fmt.Errorf("peer credentials: %w", err)
	}
	if credErr != nil {
		return nil, fmt.Errorf("SO_PEERCRED: %w", credErr)
	}
	return cred, nil
}

// peerCredFrom returns the identity recorded for the caller of ctx.
func peerCredFrom(ctx context.Context) (PeerCred, error) {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return PeerCred{}, errUnauthenticated
	}
	cred, ok := p.AuthInfo.(PeerCred)
	if !ok {
		return PeerCred{}, errUnauthenticated
	}
	return cred, nil
}
