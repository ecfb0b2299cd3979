// Package server defines the JSON records exchanged with clients and shared
// helpers reused across the connection and routing logic.
package server

import "strings"

// Record type tags used on the wire.
const (
	TypeConnectionAck  = "connection_ack"
	TypeUpdate         = "update"
	TypeGroupMessage   = "group_message"
	TypePrivateMessage = "private_message"
	TypeCreateGroup    = "create_group"
	TypeInviteToGroup  = "invite_to_group"
	TypeGroupInvite    = "group_invite"
	TypeSystem         = "system"
)

// ServerSender is the synthetic sender identity used for server-generated
// notices, such as command interpreter replies.
const ServerSender = "Server"

// TimestampLayout is the wall-clock format stamped on every stored message.
const TimestampLayout = "2006-01-02 15:04:05"

// ChatMessage is the stored form of a chat message and the shape in which it
// is delivered to clients. IDs are unique within one conversation only.
type ChatMessage struct {
	Type      string `json:"type"`
	ID        int    `json:"id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Group     string `json:"group,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Edited    bool   `json:"edited,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// InboundRecord is the envelope decoded from every post-handshake client
// frame. Only the fields relevant to the declared Type are populated.
type InboundRecord struct {
	Type        string `json:"type"`
	Group       string `json:"group,omitempty"`
	Message     string `json:"message,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	GroupName   string `json:"group_name,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
}

// HistorySnapshot is the registration-time view of every conversation a user
// participates in. Individual conversations are keyed by the two usernames
// sorted and joined with ":".
type HistorySnapshot struct {
	Individual map[string][]ChatMessage `json:"individual"`
	Group      map[string][]ChatMessage `json:"group"`
}

// ConnectionAck answers the username handshake.
type ConnectionAck struct {
	Type     string           `json:"type"`
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	YourName string           `json:"your_name,omitempty"`
	History  *HistorySnapshot `json:"history,omitempty"`
}

// UpdateRecord is the presence snapshot pushed to every online user after any
// registration, deregistration, or group change. Contacts never includes the
// receiving user.
type UpdateRecord struct {
	Type      string   `json:"type"`
	Contacts  []string `json:"contacts"`
	Groups    []string `json:"groups"`
	AllGroups []string `json:"all_groups"`
}

// GroupInvite notifies a user that another user added them to a group.
type GroupInvite struct {
	Type      string `json:"type"`
	GroupName string `json:"group_name"`
	InvitedBy string `json:"invited_by"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
