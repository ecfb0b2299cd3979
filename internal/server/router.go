// Package server routes outbound records: it decides recipients from the
// membership directory and session registry, writes through the message
// store, and fans out to each live transport. A failed delivery means the
// peer is gone; it is resolved by deregistering that peer, never retried,
// and never stalls delivery to other recipients.
package server

import (
	"encoding/json"
	"log"
	"sort"
	"time"
)

// Router is the routing/broadcast engine. It holds references to the three
// shared stores; the deregistration cascade is injected by the hub so a dead
// peer is cleaned out of every store at once.
type Router struct {
	sessions    *SessionRegistry
	membership  *MembershipDirectory
	store       *MessageStore
	interpreter *Interpreter
	dropPeer    func(username string)
}

// NewRouter wires a router over the shared stores. The interpreter and the
// drop callback are attached afterwards by the hub, which owns both.
func NewRouter(sessions *SessionRegistry, membership *MembershipDirectory, store *MessageStore) *Router {
	return &Router{
		sessions:   sessions,
		membership: membership,
		store:      store,
		dropPeer:   func(string) {},
	}
}

// RouteGroup stores and fans out a group-addressed message. Content starting
// with "/" is handed to the command interpreter instead; slash commands are
// only ever recognized on this path, never for private messages.
func (rt *Router) RouteGroup(group, sender, content string, now time.Time) {
	if len(content) > 0 && content[0] == '/' {
		rt.interpreter.Execute(group, sender, content)
		return
	}

	stored := rt.store.AppendGroup(group, ChatMessage{
		Type:      TypeGroupMessage,
		Sender:    sender,
		Message:   content,
		Timestamp: now.Format(TimestampLayout),
		Group:     group,
	})
	rt.DeliverToGroup(group, stored)
}

// RouteIndividual stores a message in the pair conversation and delivers it
// to the recipient when online. The sender never receives a server-side echo
// here; the one exception is the synthetic "Server" sender, whose notices
// flow back to the invoking user through the recipient field.
func (rt *Router) RouteIndividual(msgType, sender, recipient, content string, now time.Time) {
	stored := rt.store.AppendIndividual(NewPairKey(sender, recipient), ChatMessage{
		Type:      msgType,
		Sender:    sender,
		Recipient: recipient,
		Message:   content,
		Timestamp: now.Format(TimestampLayout),
	})

	client, online := rt.sessions.Lookup(recipient)
	if !online {
		return
	}
	if !rt.deliver(client, stored) {
		rt.dropPeer(recipient)
	}
}

// DeliverToGroup sends an already-stored record to every group member with a
// live session. Also used to re-deliver messages updated by edit/delete so
// clients can replace them in place.
func (rt *Router) DeliverToGroup(group string, msg ChatMessage) {
	members, err := rt.membership.MembersOf(group)
	if err != nil {
		log.Printf("No such group %q; dropping delivery of message %d", group, msg.ID)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Could not encode message %d for group %q: %v", msg.ID, group, err)
		return
	}

	var unreachable []string
	for _, member := range members {
		client, online := rt.sessions.Lookup(member)
		if !online {
			continue
		}
		if !client.trySend(payload) {
			unreachable = append(unreachable, member)
		}
	}
	for _, member := range unreachable {
		rt.dropPeer(member)
	}
}

// SendServerNotice delivers a system notice from the synthetic "Server"
// identity to one user, through the same individual path as ordinary
// private messages.
func (rt *Router) SendServerNotice(recipient, text string) {
	rt.RouteIndividual(TypeSystem, ServerSender, recipient, text, time.Now())
}

// BroadcastPresence pushes an update record to every online user: the online
// user list minus themselves, their current group memberships, and every
// group in existence. Invoked after each registration, deregistration, group
// creation, and group join.
func (rt *Router) BroadcastPresence() {
	online := rt.sessions.ListOnline()
	sort.Strings(online)

	allGroups := rt.membership.AllGroups()
	sort.Strings(allGroups)

	var unreachable []string
	for _, username := range online {
		contacts := make([]string, 0, len(online)-1)
		for _, other := range online {
			if other != username {
				contacts = append(contacts, other)
			}
		}
		groups := rt.membership.GroupsOf(username)
		sort.Strings(groups)

		payload, err := json.Marshal(UpdateRecord{
			Type:      TypeUpdate,
			Contacts:  contacts,
			Groups:    groups,
			AllGroups: allGroups,
		})
		if err != nil {
			log.Printf("Could not encode presence update for %s: %v", username, err)
			continue
		}

		client, ok := rt.sessions.Lookup(username)
		if !ok {
			continue
		}
		if !client.trySend(payload) {
			unreachable = append(unreachable, username)
		}
	}
	for _, username := range unreachable {
		rt.dropPeer(username)
	}
}

func (rt *Router) deliver(client *Client, msg ChatMessage) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Could not encode message %d for %s: %v", msg.ID, msg.Recipient, err)
		return true
	}
	return client.trySend(payload)
}
