package server

import (
	"testing"
	"time"
)

func TestGroupMessageReachesAllMembers(t *testing.T) {
	hub := newTestHub()
	alice := registerTestUser(t, hub, "alice")
	bob := registerTestUser(t, hub, "bob")

	hub.router.RouteGroup(GeneralGroup, "alice", "hi", time.Now())

	for name, member := range map[string]*Client{"alice": alice, "bob": bob} {
		record := nextRecordOfType(t, member, TypeGroupMessage)
		if record["sender"] != "alice" || record["message"] != "hi" || record["id"] != float64(0) {
			t.Errorf("%s got unexpected record: %v", name, record)
		}
		if record["group"] != GeneralGroup {
			t.Errorf("%s got record for group %v", name, record["group"])
		}
	}
}

func TestGroupMessageSkipsNonMembers(t *testing.T) {
	hub := newTestHub()
	alice := registerTestUser(t, hub, "alice")
	bob := registerTestUser(t, hub, "bob")
	hub.CreateGroup("alice", "time")
	drainQueue(alice)
	drainQueue(bob)

	hub.router.RouteGroup("time", "alice", "members only", time.Now())

	nextRecordOfType(t, alice, TypeGroupMessage)
	expectNoRecordOfType(t, bob, TypeGroupMessage)
}

func TestGroupMessageToUnknownGroupIsStoredNotDelivered(t *testing.T) {
	hub := newTestHub()
	alice := registerTestUser(t, hub, "alice")
	drainQueue(alice)

	hub.router.RouteGroup("nowhere", "alice", "shout", time.Now())

	expectNoRecordOfType(t, alice, TypeGroupMessage)
	if history := hub.store.GroupHistory("nowhere"); len(history) != 1 {
		t.Errorf("Expected the message in the lazy conversation, got %v", history)
	}
}

func TestPrivateMessageHasNoSenderEcho(t *testing.T) {
	hub := newTestHub()
	alice := registerTestUser(t, hub, "alice")
	bob := registerTestUser(t, hub, "bob")
	drainQueue(alice)

	hub.router.RouteIndividual(TypePrivateMessage, "alice", "bob", "secret", time.Now())

	record := nextRecordOfType(t, bob, TypePrivateMessage)
	if record["sender"] != "alice" || record["recipient"] != "bob" || record["message"] != "secret" {
		t.Errorf("Unexpected private record: %v", record)
	}
	expectNoRecordOfType(t, alice, TypePrivateMessage)
}

func TestPrivateMessageToOfflineUserIsStored(t *testing.T) {
	hub := newTestHub()
	registerTestUser(t, hub, "alice")

	hub.router.RouteIndividual(TypePrivateMessage, "alice", "ghost", "anyone there?", time.Now())

	history := hub.store.IndividualHistory(NewPairKey("ghost", "alice"))
	if len(history) != 1 || history[0].Message != "anyone there?" {
		t.Errorf("Offline private message not stored: %v", history)
	}
}

func TestServerNoticeReachesInvoker(t *testing.T) {
	hub := newTestHub()
	alice := registerTestUser(t, hub, "alice")
	drainQueue(alice)

	hub.router.SendServerNotice("alice", "the server speaks")

	record := nextRecordOfType(t, alice, TypeSystem)
	if record["sender"] != ServerSender || record["message"] != "the server speaks" {
		t.Errorf("Unexpected notice: %v", record)
	}
}

func TestBroadcastPresenceExcludesSelf(t *testing.T) {
	hub := newTestHub()
	alice := registerTestUser(t, hub, "alice")
	bob := registerTestUser(t, hub, "bob")
	hub.CreateGroup("alice", "time")
	drainQueue(alice)
	drainQueue(bob)

	hub.BroadcastPresence()

	aliceUpdate := nextRecordOfType(t, alice, TypeUpdate)
	contacts, _ := aliceUpdate["contacts"].([]any)
	if len(contacts) != 1 || contacts[0] != "bob" {
		t.Errorf("alice's contacts should be [bob], got %v", contacts)
	}
	groups, _ := aliceUpdate["groups"].([]any)
	if len(groups) != 2 {
		t.Errorf("alice should be in Geral and time, got %v", groups)
	}

	bobUpdate := nextRecordOfType(t, bob, TypeUpdate)
	contacts, _ = bobUpdate["contacts"].([]any)
	if len(contacts) != 1 || contacts[0] != "alice" {
		t.Errorf("bob's contacts should be [alice], got %v", contacts)
	}
	allGroups, _ := bobUpdate["all_groups"].([]any)
	if len(allGroups) != 2 {
		t.Errorf("all_groups should list every group, got %v", allGroups)
	}
}

func TestDeliveryFailureTriggersDeregistration(t *testing.T) {
	hub := newTestHub()
	registerTestUser(t, hub, "alice")
	bob := registerTestUser(t, hub, "bob")

	// Simulate a dead peer: its queue refuses writes.
	bob.markClosed()

	hub.router.RouteGroup(GeneralGroup, "alice", "hi", time.Now())

	if _, online := hub.sessions.Lookup("bob"); online {
		t.Error("Unreachable peer still has a session")
	}
	if groups := hub.membership.GroupsOf("bob"); len(groups) != 0 {
		t.Errorf("Unreachable peer still in groups %v", groups)
	}
	if _, online := hub.sessions.Lookup("alice"); !online {
		t.Error("Healthy peer was deregistered alongside the dead one")
	}
}

func TestDeliveryFailureDoesNotStallOtherRecipients(t *testing.T) {
	hub := newTestHub()
	registerTestUser(t, hub, "alice")
	bob := registerTestUser(t, hub, "bob")
	carol := registerTestUser(t, hub, "carol")
	bob.markClosed()

	hub.router.RouteGroup(GeneralGroup, "alice", "hi", time.Now())

	record := nextRecordOfType(t, carol, TypeGroupMessage)
	if record["message"] != "hi" {
		t.Errorf("Healthy recipient missed the message: %v", record)
	}
}
