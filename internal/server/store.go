// Package server owns the per-conversation message logs. A conversation is
// either a group or an unordered pair of usernames; each keeps its own
// sequential ID space starting at 0, assigned as the current log length.
// Deleted messages stay in the log so IDs remain contiguous and history
// stays auditable.
package server

import "sync"

// PairKey identifies an individual conversation. The two usernames are kept
// sorted so the key is symmetric regardless of sender/recipient order.
type PairKey struct {
	First  string
	Second string
}

// NewPairKey builds the symmetric key for two usernames.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{First: a, Second: b}
}

// String renders the key in its wire form, used in history snapshots.
func (k PairKey) String() string {
	return k.First + ":" + k.Second
}

// Contains reports whether username participates in the conversation.
func (k PairKey) Contains(username string) bool {
	return k.First == username || k.Second == username
}

// MessageStore holds every conversation log. Conversations are created
// lazily on first append and never destroyed. All operations are safe for
// concurrent use; returned messages are copies, so callers can only mutate
// the store through its own methods.
type MessageStore struct {
	mu         sync.Mutex
	individual map[PairKey][]ChatMessage
	group      map[string][]ChatMessage
}

// NewMessageStore returns a store with an empty log for the "Geral" group.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		individual: make(map[PairKey][]ChatMessage),
		group: map[string][]ChatMessage{
			GeneralGroup: {},
		},
	}
}

// AppendGroup appends msg to the group's conversation, assigning the next
// sequential ID, and returns the stored message.
func (s *MessageStore) AppendGroup(group string, msg ChatMessage) ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = len(s.group[group])
	s.group[group] = append(s.group[group], msg)
	return msg
}

// AppendIndividual appends msg to the pair conversation, assigning the next
// sequential ID, and returns the stored message.
func (s *MessageStore) AppendIndividual(key PairKey, msg ChatMessage) ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = len(s.individual[key])
	s.individual[key] = append(s.individual[key], msg)
	return msg
}

// EnsureGroup creates an empty log for the group if none exists, so brand-new
// groups show up in history snapshots before their first message.
func (s *MessageStore) EnsureGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.group[group]; !exists {
		s.group[group] = []ChatMessage{}
	}
}

// Get returns the message with the given ID in the group's conversation.
func (s *MessageStore) Get(group string, id int) (ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.group[group]
	if id < 0 || id >= len(messages) {
		return ChatMessage{}, false
	}
	return messages[id], true
}

// FindOwned returns the message with the given ID only when its sender
// matches the requester. Used by the edit/delete ownership checks.
func (s *MessageStore) FindOwned(group string, id int, sender string) (ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findOwnedLocked(group, id, sender)
}

func (s *MessageStore) findOwnedLocked(group string, id int, sender string) (ChatMessage, bool) {
	messages := s.group[group]
	if id < 0 || id >= len(messages) {
		return ChatMessage{}, false
	}
	if messages[id].Sender != sender {
		return ChatMessage{}, false
	}
	return messages[id], true
}

// MarkDeleted flags the message as deleted when it exists and belongs to
// sender, returning the updated message. The entry keeps its ID and position
// in the log. Unknown or unowned IDs leave the store unchanged.
func (s *MessageStore) MarkDeleted(group string, id int, sender string) (ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.findOwnedLocked(group, id, sender); !ok {
		return ChatMessage{}, false
	}
	s.group[group][id].Deleted = true
	return s.group[group][id], true
}

// Edit replaces the content of the message when it exists and belongs to
// sender, flags it as edited, and returns the updated message. Unknown or
// unowned IDs leave the store unchanged.
func (s *MessageStore) Edit(group string, id int, sender, content string) (ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.findOwnedLocked(group, id, sender); !ok {
		return ChatMessage{}, false
	}
	s.group[group][id].Message = content
	s.group[group][id].Edited = true
	return s.group[group][id], true
}

// GroupHistory returns the ordered log of the group's conversation.
func (s *MessageStore) GroupHistory(group string) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]ChatMessage(nil), s.group[group]...)
}

// IndividualHistory returns the ordered log of a pair conversation.
func (s *MessageStore) IndividualHistory(key PairKey) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]ChatMessage(nil), s.individual[key]...)
}

// OwnHistory returns, in order, every non-deleted message sender authored in
// the group's conversation.
func (s *MessageStore) OwnHistory(group, sender string) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var own []ChatMessage
	for _, msg := range s.group[group] {
		if msg.Sender == sender && !msg.Deleted {
			own = append(own, msg)
		}
	}
	return own
}

// SnapshotFor assembles the registration-time history payload: every
// individual conversation username participates in, plus the logs of the
// given groups (the caller passes the user's current memberships).
func (s *MessageStore) SnapshotFor(username string, groups []string) *HistorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := &HistorySnapshot{
		Individual: make(map[string][]ChatMessage),
		Group:      make(map[string][]ChatMessage),
	}
	for key, messages := range s.individual {
		if key.Contains(username) {
			snapshot.Individual[key.String()] = copyMessages(messages)
		}
	}
	for _, group := range groups {
		if messages, exists := s.group[group]; exists {
			snapshot.Group[group] = copyMessages(messages)
		}
	}
	return snapshot
}

// copyMessages clones a log slice. Empty logs stay non-nil so they marshal
// as [] rather than null in the ack payload.
func copyMessages(messages []ChatMessage) []ChatMessage {
	copied := make([]ChatMessage, len(messages))
	copy(copied, messages)
	return copied
}
