package main

import (
	"testing"

	"github.com/Seednode/casebox/pkg/wire"
)

func testSession(id string) *relaySession {
	return &relaySession{
		id:   id,
		send: make(chan wire.Envelope, 8),
	}
}

func drain(s *relaySession) []wire.Envelope {
	var out []wire.Envelope
	for {
		select {
		case env := <-s.send:
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestFirstJoinerFixesTheCase(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	if got := rm.join(cfg, a, "r1", "c2"); got != "c2" {
		t.Fatalf("expected first joiner's case to win, got %q", got)
	}

	// Later requests, known or not, are ignored.
	b := testSession("b")
	if got := rm.join(cfg, b, "r1", "c3"); got != "c2" {
		t.Fatalf("expected later join to get the room's case, got %q", got)
	}
}

func TestJoinWithoutCaseUsesDefault(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	if got := rm.join(cfg, a, "r1", ""); got != "c1" {
		t.Fatalf("expected default case, got %q", got)
	}
}

func TestJoinBroadcastsThenAcks(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	rm.join(cfg, a, "r1", "")

	got := drain(a)
	if len(got) != 2 || got[0].Type != wire.EventPlayerJoined || got[1].Type != wire.EventRoomInfo {
		t.Fatalf("expected join notice then room info for the joiner, got %v", got)
	}

	b := testSession("b")
	rm.join(cfg, b, "r1", "")

	if got := drain(a); len(got) != 1 || got[0].Type != wire.EventPlayerJoined {
		t.Fatalf("expected existing member to see the new join, got %v", got)
	}
}

func TestDuplicateJoinReAcksOnly(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	rm.join(cfg, a, "r1", "c2")
	drain(a)

	if got := rm.join(cfg, a, "r1", "c3"); got != "c2" {
		t.Fatalf("expected re-ack with the existing case, got %q", got)
	}

	got := drain(a)
	if len(got) != 1 || got[0].Type != wire.EventRoomInfo {
		t.Fatalf("expected only a room-info re-ack on duplicate join, got %v", got)
	}
}

func TestLastDeparturePrunesRoom(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	b := testSession("b")
	rm.join(cfg, a, "r1", "")
	rm.join(cfg, b, "r1", "")

	rm.disconnect(cfg, a)
	if rm.count() != 1 {
		t.Fatalf("expected room to survive with one member left")
	}

	rm.disconnect(cfg, b)
	if rm.count() != 0 {
		t.Fatalf("expected empty room to be pruned")
	}
}

func TestPrunedRoomForgetsItsCase(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	rm.join(cfg, a, "r1", "c2")
	rm.disconnect(cfg, a)

	// Re-creating the room starts fresh; nothing persisted.
	b := testSession("b")
	if got := rm.join(cfg, b, "r1", "c3"); got != "c3" {
		t.Fatalf("expected recreated room to honor the new case, got %q", got)
	}
}

func TestRelaySkipsSender(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	b := testSession("b")
	rm.join(cfg, a, "r1", "")
	rm.join(cfg, b, "r1", "")
	drain(a)
	drain(b)

	env, _ := wire.NewEnvelope(wire.EventStateUpdate, wire.Fragment{FoundClues: []string{"cl1"}})
	rm.relay(cfg, a, env)

	if got := drain(a); len(got) != 0 {
		t.Fatalf("expected sender to receive nothing, got %v", got)
	}
	if got := drain(b); len(got) != 1 || got[0].Type != wire.EventStateUpdate {
		t.Fatalf("expected partner to receive the update, got %v", got)
	}
}

func TestSwitchingRoomsLeavesTheOld(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	rm.join(cfg, a, "r1", "")
	rm.join(cfg, a, "r2", "")

	if rm.count() != 1 {
		t.Fatalf("expected old empty room to be pruned on switch, rooms=%d", rm.count())
	}
	if a.roomID != "r2" {
		t.Fatalf("expected membership in r2, got %q", a.roomID)
	}
}

func TestSlowMemberIsDropped(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	b := testSession("b")
	rm.join(cfg, a, "r1", "")
	rm.join(cfg, b, "r1", "")
	drain(a)

	// Fill b's buffer so the next delivery cannot be enqueued.
	env, _ := wire.NewEnvelope(wire.EventChatMessage, wire.ChatMessage{Sender: "player1", Text: "hi"})
	for {
		select {
		case b.send <- env:
			continue
		default:
		}
		break
	}

	rm.relay(cfg, a, env)

	rm.mu.Lock()
	r := rm.rooms["r1"]
	_, present := r.members["b"]
	rm.mu.Unlock()

	if present {
		t.Fatalf("expected slow member to be dropped from the room")
	}

	// Its send channel is closed so the write pump unwinds.
	for range b.send {
	}
}

func TestReAckOnFullBufferDropsSession(t *testing.T) {
	cfg := &Config{}
	rm := newRoomManager("c1")

	a := testSession("a")
	b := testSession("b")
	rm.join(cfg, a, "r1", "")
	rm.join(cfg, b, "r1", "")
	drain(a)

	// Fill b's buffer, then re-join: the re-ack cannot be enqueued, so b
	// must leave the room entirely rather than linger with a dead channel.
	env, _ := wire.NewEnvelope(wire.EventChatMessage, wire.ChatMessage{Sender: "player1", Text: "hi"})
	for {
		select {
		case b.send <- env:
			continue
		default:
		}
		break
	}

	rm.join(cfg, b, "r1", "")

	rm.mu.Lock()
	_, present := rm.rooms["r1"].members["b"]
	rm.mu.Unlock()

	if present {
		t.Fatalf("expected un-ackable session to be dropped from the room")
	}

	// The room keeps working for the remaining member.
	rm.relay(cfg, a, env)
	if got := drain(a); len(got) != 0 {
		t.Fatalf("expected sender to receive nothing, got %v", got)
	}

	// The dead session can no longer join anything, and leaves no ghost
	// rooms behind while its read pump winds down.
	if got := rm.join(cfg, b, "r2", ""); got != "" {
		t.Fatalf("expected closed session join to be refused, got %q", got)
	}
	if rm.count() != 1 {
		t.Fatalf("expected no ghost rooms, rooms=%d", rm.count())
	}
}

func TestNewRoomIDShape(t *testing.T) {
	rm := newRoomManager("c1")

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		id := rm.newRoomID()

		if len(id) != 8 {
			t.Fatalf("expected 8-character room id, got %q", id)
		}
		for _, r := range id {
			switch {
			case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			default:
				t.Fatalf("unexpected character %q in room id %q", r, id)
			}
		}

		if seen[id] {
			t.Fatalf("duplicate room id %q", id)
		}
		seen[id] = true
	}
}
