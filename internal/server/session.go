// Package server tracks live sessions: the mapping from a registered username
// to its reachable transport, plus the online/offline status of every user
// the server has ever seen.
package server

import (
	"sync"

	"github.com/google/uuid"
)

// User statuses. Users are created on first registration and never deleted,
// so message history stays attributable after they go offline.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Session binds an online username to its live client transport. The ID
// distinguishes successive sessions of the same username in log output.
type Session struct {
	ID       string
	Username string
	Client   *Client
}

// SessionRegistry is the single source of truth for "is this user currently
// reachable". All operations are safe for concurrent use.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	statuses map[string]string
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		statuses: make(map[string]string),
	}
}

// Register binds username to the given client. It fails with
// ErrDuplicateSession if the username already has a live session; the
// existing session is left untouched.
func (r *SessionRegistry) Register(username string, client *Client) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[username]; exists {
		return nil, ErrDuplicateSession
	}

	session := &Session{
		ID:       uuid.NewString(),
		Username: username,
		Client:   client,
	}
	r.sessions[username] = session
	r.statuses[username] = StatusOnline
	return session, nil
}

// Deregister removes the session for username and flips the user offline.
// It is idempotent: deregistering an absent username returns nil.
func (r *SessionRegistry) Deregister(username string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[username]
	if !exists {
		return nil
	}
	delete(r.sessions, username)
	r.statuses[username] = StatusOffline
	return session
}

// Lookup returns the transport handle for an online username.
func (r *SessionRegistry) Lookup(username string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[username]
	if !exists {
		return nil, false
	}
	return session.Client, true
}

// ListOnline returns the usernames of every live session.
func (r *SessionRegistry) ListOnline() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make([]string, 0, len(r.sessions))
	for username := range r.sessions {
		online = append(online, username)
	}
	return online
}

// Status reports online/offline for a known user; unknown users are offline.
func (r *SessionRegistry) Status(username string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if status, known := r.statuses[username]; known {
		return status
	}
	return StatusOffline
}
