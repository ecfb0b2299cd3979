package server

import (
	"testing"
	"time"
)

func groupMessage(sender, content string) ChatMessage {
	return ChatMessage{
		Type:      TypeGroupMessage,
		Sender:    sender,
		Message:   content,
		Timestamp: time.Now().Format(TimestampLayout),
		Group:     GeneralGroup,
	}
}

func TestAppendAssignsContiguousIDs(t *testing.T) {
	store := NewMessageStore()

	for i := 0; i < 5; i++ {
		stored := store.AppendGroup(GeneralGroup, groupMessage("alice", "hello"))
		if stored.ID != i {
			t.Errorf("Expected ID %d, got %d", i, stored.ID)
		}
	}

	// IDs are per conversation: a different group starts over at 0.
	stored := store.AppendGroup("time", groupMessage("alice", "hello"))
	if stored.ID != 0 {
		t.Errorf("Expected fresh conversation to start at ID 0, got %d", stored.ID)
	}
}

func TestDeletionPreservesIDs(t *testing.T) {
	store := NewMessageStore()
	store.AppendGroup(GeneralGroup, groupMessage("alice", "first"))
	store.AppendGroup(GeneralGroup, groupMessage("alice", "second"))

	if _, ok := store.MarkDeleted(GeneralGroup, 0, "alice"); !ok {
		t.Fatal("MarkDeleted failed for an owned message")
	}

	// The deleted entry keeps its slot and the next append keeps counting.
	history := store.GroupHistory(GeneralGroup)
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries after deletion, got %d", len(history))
	}
	if !history[0].Deleted || history[0].ID != 0 {
		t.Errorf("Deleted message lost its slot: %+v", history[0])
	}
	if history[1].Deleted {
		t.Errorf("Deletion leaked onto message 1: %+v", history[1])
	}

	stored := store.AppendGroup(GeneralGroup, groupMessage("alice", "third"))
	if stored.ID != 2 {
		t.Errorf("Expected next ID 2 after deletion, got %d", stored.ID)
	}
}

func TestAppendRoundTrip(t *testing.T) {
	store := NewMessageStore()
	msg := groupMessage("alice", "round trip")
	store.AppendGroup(GeneralGroup, msg)

	history := store.GroupHistory(GeneralGroup)
	last := history[len(history)-1]
	if last.Sender != msg.Sender || last.Message != msg.Message || last.Timestamp != msg.Timestamp {
		t.Errorf("Round trip mismatch: sent %+v, got %+v", msg, last)
	}
	if last.Edited || last.Deleted {
		t.Errorf("Fresh message carries stale flags: %+v", last)
	}
}

func TestFindOwnedRequiresMatchingSender(t *testing.T) {
	store := NewMessageStore()
	store.AppendGroup(GeneralGroup, groupMessage("alice", "mine"))

	if _, ok := store.FindOwned(GeneralGroup, 0, "alice"); !ok {
		t.Error("Owner lookup failed")
	}
	if _, ok := store.FindOwned(GeneralGroup, 0, "bob"); ok {
		t.Error("Non-owner lookup succeeded")
	}
	if _, ok := store.FindOwned(GeneralGroup, 7, "alice"); ok {
		t.Error("Lookup of unknown ID succeeded")
	}
}

func TestEditOnlyByOwner(t *testing.T) {
	store := NewMessageStore()
	store.AppendGroup(GeneralGroup, groupMessage("bob", "original"))

	if _, ok := store.Edit(GeneralGroup, 0, "alice", "hijacked"); ok {
		t.Fatal("Edit by non-owner succeeded")
	}
	history := store.GroupHistory(GeneralGroup)
	if history[0].Message != "original" || history[0].Edited {
		t.Errorf("Store mutated by failed edit: %+v", history[0])
	}

	updated, ok := store.Edit(GeneralGroup, 0, "bob", "fixed")
	if !ok {
		t.Fatal("Edit by owner failed")
	}
	if updated.Message != "fixed" || !updated.Edited || updated.ID != 0 {
		t.Errorf("Unexpected edited message: %+v", updated)
	}
}

func TestOwnHistorySkipsDeletedAndForeign(t *testing.T) {
	store := NewMessageStore()
	store.AppendGroup(GeneralGroup, groupMessage("alice", "keep"))
	store.AppendGroup(GeneralGroup, groupMessage("bob", "foreign"))
	store.AppendGroup(GeneralGroup, groupMessage("alice", "drop"))
	store.MarkDeleted(GeneralGroup, 2, "alice")

	own := store.OwnHistory(GeneralGroup, "alice")
	if len(own) != 1 || own[0].Message != "keep" {
		t.Errorf("Expected only the kept message, got %v", own)
	}
}

func TestPairKeyIsSymmetric(t *testing.T) {
	if NewPairKey("alice", "bob") != NewPairKey("bob", "alice") {
		t.Error("Pair keys differ depending on argument order")
	}
	if NewPairKey("alice", "bob").String() != "alice:bob" {
		t.Errorf("Unexpected wire form: %s", NewPairKey("alice", "bob").String())
	}
}

func TestIndividualConversationIDs(t *testing.T) {
	store := NewMessageStore()
	key := NewPairKey("alice", "bob")

	first := store.AppendIndividual(key, ChatMessage{Type: TypePrivateMessage, Sender: "alice", Recipient: "bob", Message: "hi"})
	second := store.AppendIndividual(NewPairKey("bob", "alice"), ChatMessage{Type: TypePrivateMessage, Sender: "bob", Recipient: "alice", Message: "hey"})

	if first.ID != 0 || second.ID != 1 {
		t.Errorf("Expected IDs 0 and 1 in the shared pair conversation, got %d and %d", first.ID, second.ID)
	}
}

func TestSnapshotForFiltersConversations(t *testing.T) {
	store := NewMessageStore()
	store.AppendIndividual(NewPairKey("alice", "bob"), ChatMessage{Type: TypePrivateMessage, Sender: "alice", Recipient: "bob", Message: "for bob"})
	store.AppendIndividual(NewPairKey("carol", "dave"), ChatMessage{Type: TypePrivateMessage, Sender: "carol", Recipient: "dave", Message: "private"})
	store.AppendGroup(GeneralGroup, groupMessage("alice", "hello all"))
	store.EnsureGroup("time")

	snapshot := store.SnapshotFor("alice", []string{GeneralGroup, "time"})

	if _, ok := snapshot.Individual["alice:bob"]; !ok {
		t.Error("Snapshot missing alice:bob conversation")
	}
	if _, ok := snapshot.Individual["carol:dave"]; ok {
		t.Error("Snapshot leaked a conversation alice is not part of")
	}
	if len(snapshot.Group[GeneralGroup]) != 1 {
		t.Errorf("Expected 1 Geral message, got %d", len(snapshot.Group[GeneralGroup]))
	}
	if messages, ok := snapshot.Group["time"]; !ok || messages == nil {
		t.Error("Empty group missing from snapshot or serialized as nil")
	}
}
