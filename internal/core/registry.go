package core

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Session binds one live connection to the user it represents, once known.
// Sessions are replaced, never mutated, so a loaded *Session is safe to read.
type Session struct {
	ConnID string
	UserID string
	Client *Client
}

// Identified reports whether a user id has been bound to the session.
func (s *Session) Identified() bool {
	return s.UserID != ""
}

// PresenceState is the per-user connection count and the time of its last
// online/offline transition.
type PresenceState struct {
	Count          int
	LastTransition time.Time
}

// Online reports whether the user has at least one open connection.
func (p PresenceState) Online() bool {
	return p.Count > 0
}

// Registry maps connections to users and counts open connections per user.
// Both maps serialize writers per key, so different connections and
// different users never contend.
type Registry struct {
	sessions *xsync.MapOf[string, *Session]
	counts   *xsync.MapOf[string, PresenceState]
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: xsync.NewMapOf[string, *Session](),
		counts:   xsync.NewMapOf[string, PresenceState](),
	}
}

// Register creates an unidentified session for the client.
func (r *Registry) Register(c *Client) *Session {
	s := &Session{ConnID: c.ID, Client: c}
	actual, _ := r.sessions.LoadOrStore(c.ID, s)
	return actual
}

// Identify binds userID to the connection exactly once. first is true only for
// the call that performed the binding. Rebinding to a different user fails
// with ErrIdentityConflict and leaves the session untouched.
func (r *Registry) Identify(connID, userID string) (first bool, err error) {
	if userID == "" {
		return false, ErrBadRequest
	}
	r.sessions.Compute(connID, func(s *Session, loaded bool) (*Session, bool) {
		if !loaded {
			err = ErrUnknownConnection
			return nil, true
		}
		switch s.UserID {
		case "":
			next := *s
			next.UserID = userID
			first = true
			return &next, false
		case userID:
			return s, false
		default:
			err = ErrIdentityConflict
			return s, false
		}
	})
	return first, err
}

// Deregister removes the session and returns the user it was bound to.
func (r *Registry) Deregister(connID string) (userID string, ok bool) {
	s, loaded := r.sessions.LoadAndDelete(connID)
	if !loaded || !s.Identified() {
		return "", false
	}
	return s.UserID, true
}

// Session returns the current session of a connection.
func (r *Registry) Session(connID string) (*Session, bool) {
	return r.sessions.Load(connID)
}

// ActiveCount returns the number of identified open connections of a user.
func (r *Registry) ActiveCount(userID string) int {
	state, _ := r.counts.Load(userID)
	return state.Count
}

// Presence returns the presence state of a user.
func (r *Registry) Presence(userID string) PresenceState {
	state, _ := r.counts.Load(userID)
	return state
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return r.sessions.Size()
}

// Each calls fn for every registered session.
func (r *Registry) Each(fn func(*Session)) {
	r.sessions.Range(func(_ string, s *Session) bool {
		fn(s)
		return true
	})
}

// adjust applies delta to the user's count, floored at zero, and lets fn see
// the before and after state while the user's key is still held. Whatever fn
// returns is stored.
func (r *Registry) adjust(userID string, delta int, fn func(prev, next PresenceState) PresenceState) PresenceState {
	var result PresenceState
	r.counts.Compute(userID, func(prev PresenceState, _ bool) (PresenceState, bool) {
		next := prev
		next.Count += delta
		if next.Count < 0 {
			next.Count = 0
		}
		if fn != nil {
			next = fn(prev, next)
		}
		result = next
		return next, false
	})
	return result
}
