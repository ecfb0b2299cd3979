// Package server coordinates the relay's shared state through the Hub: it
// owns the session registry, membership directory, and message store,
// constructs the routing engine and command interpreter over them, and runs
// the registration and deregistration cascades. Connections hold only a
// reference to the hub; nothing here is a package-level singleton.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub is the server context built once at startup and passed to every
// connection handler.
type Hub struct {
	sessions    *SessionRegistry
	membership  *MembershipDirectory
	store       *MessageStore
	router      *Router
	interpreter *Interpreter

	mu      sync.Mutex
	clients map[*Client]struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub with fresh stores and the given command table.
func NewHub(table *CommandTable) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	sessions := NewSessionRegistry()
	membership := NewMembershipDirectory()
	store := NewMessageStore()
	router := NewRouter(sessions, membership, store)

	h := &Hub{
		sessions:    sessions,
		membership:  membership,
		store:       store,
		router:      router,
		interpreter: NewInterpreter(table, store, router),
		clients:     make(map[*Client]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	router.interpreter = h.interpreter
	router.dropPeer = h.disconnectUser
	return h
}

// RegisterClient binds a username to its connection: it records the session,
// joins the implicit "Geral" group, and starts tracking the client for
// shutdown. A username already online is rejected with ErrDuplicateSession
// and the existing session stays untouched.
func (h *Hub) RegisterClient(username string, client *Client) (*Session, error) {
	if h.ctx.Err() != nil {
		return nil, ErrShuttingDown
	}

	session, err := h.sessions.Register(username, client)
	if err != nil {
		return nil, err
	}

	client.username = username
	h.membership.Join(GeneralGroup, username)

	h.mu.Lock()
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	log.Printf("[session %s] %s registered from %s. Total clients: %d",
		session.ID, username, client.addr, clientCount)
	return session, nil
}

// SnapshotFor assembles the registration-time history payload for a user,
// covering their individual conversations and current group memberships.
func (h *Hub) SnapshotFor(username string) *HistorySnapshot {
	return h.store.SnapshotFor(username, h.membership.GroupsOf(username))
}

// StartPumps launches the read and write goroutines for a registered client.
func (h *Hub) StartPumps(client *Client) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// BroadcastPresence pushes a presence update to every online user.
func (h *Hub) BroadcastPresence() {
	h.router.BroadcastPresence()
}

// DisconnectClient tears down one connection. For registered clients this is
// the full deregistration cascade; for clients that never completed the
// handshake it just closes the transport.
func (h *Hub) DisconnectClient(client *Client) {
	if client.username != "" {
		h.disconnectUser(client.username)
		return
	}
	h.dropTransport(client)
}

// disconnectUser runs the deregistration cascade: remove the session, strip
// the user from every group, close the transport, and push a presence
// update. Idempotent, so delivery failures during the resulting broadcast
// cannot cascade forever.
func (h *Hub) disconnectUser(username string) {
	session := h.sessions.Deregister(username)
	if session == nil {
		return
	}

	h.membership.RemoveFromAll(username)
	h.dropTransport(session.Client)

	log.Printf("[session %s] %s disconnected", session.ID, username)
	h.router.BroadcastPresence()
}

func (h *Hub) dropTransport(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	client.markClosed()
	client.closeConnection()
}

// CreateGroup creates a group on demand with the creator as first member.
// Creating an existing group only (re-)joins the creator; the name stays
// unique and the group is never deleted.
func (h *Hub) CreateGroup(creator, name string) {
	if name == "" {
		log.Printf("Ignoring create_group with empty name from %s", creator)
		return
	}

	err := h.membership.CreateGroup(name)
	joined := h.membership.Join(name, creator)
	if err == nil {
		h.store.EnsureGroup(name)
		log.Printf("Group %q created by %s", name, creator)
	}
	if err == nil || joined {
		h.router.BroadcastPresence()
	}
}

// InviteToGroup joins an online contact to a group, creating the group on
// demand, and notifies the invitee. Re-inviting an existing member is a
// no-op.
func (h *Hub) InviteToGroup(inviter, group, contact string) {
	if group == "" || contact == "" {
		log.Printf("Ignoring invite_to_group with missing fields from %s", inviter)
		return
	}

	client, online := h.sessions.Lookup(contact)
	if !online {
		log.Printf("Ignoring invite for offline contact %s from %s", contact, inviter)
		return
	}

	if !h.membership.Join(group, contact) {
		return
	}
	h.store.EnsureGroup(group)
	log.Printf("%s joined group %q, invited by %s", contact, group, inviter)
	h.router.BroadcastPresence()

	payload, err := json.Marshal(GroupInvite{
		Type:      TypeGroupInvite,
		GroupName: group,
		InvitedBy: inviter,
	})
	if err != nil {
		log.Printf("Could not encode invite for %s: %v", contact, err)
		return
	}
	if !client.trySend(payload) {
		h.disconnectUser(contact)
	}
}

// Shutdown closes every live transport, stops accepting registrations, and
// waits for the connection goroutines to finish or for the timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Shutting down all client connections...")
	h.cancel()

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.markClosed()
		client.closeConnection()
	}
	log.Printf("Closed %d client connections", len(clients))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
