package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"luci-rpc/protocol"

	"github.com/google/uuid"
)

// AnonymousSession is the id a client uses before logging in.
const AnonymousSession = "00000000000000000000000000000000"

// DefaultSessionTimeout is the idle time after which a session expires.
const DefaultSessionTimeout = 300 * time.Second

type session struct {
	user    string
	timeout time.Duration
	expires time.Time
}

// SessionStore issues and checks rpcd-style session ids. The anonymous
// session may only log in.
type SessionStore struct {
	mu       sync.Mutex
	users    map[string]string
	sessions map[string]*session
	timeout  time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store accepting the given user -> password pairs.
func NewSessionStore(users map[string]string) *SessionStore {
	return &SessionStore{
		users:    users,
		sessions: make(map[string]*session),
		timeout:  DefaultSessionTimeout,
		now:      time.Now,
	}
}

// newSessionID returns 32 lowercase hex characters, like rpcd.
func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Login returns a fresh session id for valid credentials.
func (s *SessionStore) Login(user, password string, timeout time.Duration) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want, ok := s.users[user]
	if !ok || want != password {
		return "", false
	}
	if timeout <= 0 {
		timeout = s.timeout
	}

	sid := newSessionID()
	s.sessions[sid] = &session{user: user, timeout: timeout, expires: s.now().Add(timeout)}
	return sid, true
}

// Destroy ends a session.
func (s *SessionStore) Destroy(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sid]
	delete(s.sessions, sid)
	return ok
}

// Valid reports whether sid is a live session and extends it.
func (s *SessionStore) Valid(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return false
	}
	now := s.now()
	if now.After(sess.expires) {
		delete(s.sessions, sid)
		return false
	}
	sess.expires = now.Add(sess.timeout)
	return true
}

// Allowed is the access check applied to every call.
func (s *SessionStore) Allowed(sid, object, method string) bool {
	if object == "session" && method == "login" {
		return true
	}
	return s.Valid(sid)
}

// object is the built-in "session" ubus object.
func (s *SessionStore) object() Object {
	return Object{
		"login": {
			Signature: map[string]string{"username": "string", "password": "string", "timeout": "number"},
			Handler: func(ctx context.Context, call *Call) (protocol.Status, any) {
				var seconds int
				if _, err := call.Arg("timeout", &seconds); err != nil {
					return protocol.StatusInvalidArgument, nil
				}
				timeout := time.Duration(seconds) * time.Second

				sid, ok := s.Login(call.StringArg("username"), call.StringArg("password"), timeout)
				if !ok {
					return protocol.StatusPermissionDenied, nil
				}
				if timeout <= 0 {
					timeout = s.timeout
				}
				return protocol.StatusOK, map[string]any{
					"ubus_rpc_session": sid,
					"timeout":          int(timeout.Seconds()),
					"expires":          int(timeout.Seconds()),
					"data":             map[string]string{"username": call.StringArg("username")},
				}
			},
		},
		"destroy": {
			Handler: func(ctx context.Context, call *Call) (protocol.Status, any) {
				if !s.Destroy(call.Session) {
					return protocol.StatusNotFound, nil
				}
				return protocol.StatusOK, nil
			},
		},
	}
}
