package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/manager"
	pb "github.com/frobware/go-mdnsoffload/server/pb"
)

// session is an open owner session. done closes when the session
// stream ends, which the manager treats as the owner's death.
type session struct {
	token mdnsoffload.OwnerToken
	name  string
	cred  PeerCred
	done  chan struct{}
}

func (s *Server) openSession(cred PeerCred, name string) *session {
	sess := &session{
		token: mdnsoffload.OwnerToken(uuid.NewString()),
		name:  name,
		cred:  cred,
		done:  make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[sess.token] = sess
	s.mu.Unlock()
	s.logger.Info("session opened", "token", sess.token, "name", name, "uid", cred.UID, "pid", cred.PID, "app_id", cred.AppID())
	return sess
}

func (s *Server) closeSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.token)
	s.mu.Unlock()
	close(sess.done)
	s.logger.Info("session closed", "token", sess.token, "name", sess.name)
}

// owner authenticates an owner call: the token must name an open
// session created by the same uid as the caller.
func (s *Server) owner(ctx context.Context) (manager.Owner, error) {
	cred, err := peerCredFrom(ctx)
	if err != nil {
		return manager.Owner{}, err
	}
	md, _ := metadata.FromIncomingContext(ctx)
	tokens := md.Get(pb.OwnerTokenKey)
	if len(tokens) != 1 || tokens[0] == "" {
		return manager.Owner{}, fmt.Errorf("missing %s metadata: %w", pb.OwnerTokenKey, mdnsoffload.ErrUnknownOwner)
	}
	token := mdnsoffload.OwnerToken(tokens[0])

	s.mu.Lock()
	sess, ok := s.sessions[token]
	s.mu.Unlock()
	if !ok {
		return manager.Owner{}, fmt.Errorf("token %s: %w", token, mdnsoffload.ErrUnknownOwner)
	}
	if sess.cred.UID != cred.UID {
		return manager.Owner{}, fmt.Errorf("session %s belongs to uid %d: %w", token, sess.cred.UID, errPermissionDenied)
	}
	return manager.Owner{Token: token, AppID: sess.cred.AppID(), Done: sess.done}, nil
}

// admin authorises an administrative call.
func (s *Server) admin(ctx context.Context) error {
	cred, err := peerCredFrom(ctx)
	if err != nil {
		return err
	}
	if _, ok := s.adminUIDs[cred.UID]; !ok {
		return fmt.Errorf("uid %d is not an administrator: %w", cred.UID, errPermissionDenied)
	}
	return nil
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
