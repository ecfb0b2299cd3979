package server

import "errors"

// Sentinel errors returned by the session registry and membership directory.
// Failures scoped to a single peer or request never escalate past these; the
// accept loop and the shared stores stay available for the life of the process.
var (
	// ErrDuplicateSession is returned when a username is already bound to a
	// live session. A second registration is rejected at handshake time
	// instead of silently replacing the first transport.
	ErrDuplicateSession = errors.New("session already registered for username")

	// ErrGroupExists is returned by CreateGroup for a name already in use.
	ErrGroupExists = errors.New("group already exists")

	// ErrGroupNotFound is returned when a group name is unknown.
	ErrGroupNotFound = errors.New("group not found")

	// ErrShuttingDown is returned for registrations that arrive after
	// graceful shutdown has begun.
	ErrShuttingDown = errors.New("server is shutting down")
)
