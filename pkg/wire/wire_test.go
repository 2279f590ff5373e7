package wire

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventJoinRoom, JoinRoom{RoomID: "r1", CaseID: "c2"})
	if err != nil {
		t.Fatalf("NewEnvelope returned error: %v", err)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if decoded.Type != EventJoinRoom {
		t.Fatalf("expected type %q, got %q", EventJoinRoom, decoded.Type)
	}

	var join JoinRoom
	if err := decoded.Decode(&join); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if join.RoomID != "r1" || join.CaseID != "c2" {
		t.Fatalf("unexpected payload: %+v", join)
	}
}

func TestDecodeToleratesAbsentPayload(t *testing.T) {
	env := Envelope{Type: EventSyncState}

	var sync SyncState
	if err := env.Decode(&sync); err != nil {
		t.Fatalf("expected absent payload to decode cleanly: %v", err)
	}
	if !sync.State.IsEmpty() {
		t.Fatalf("expected zero-value state from absent payload")
	}
}

func TestDecodeToleratesUnknownFields(t *testing.T) {
	env := Envelope{
		Type: EventStateUpdate,
		Data: json.RawMessage(`{"foundClues":["cl1"],"someFutureField":true}`),
	}

	var f Fragment
	if err := env.Decode(&f); err != nil {
		t.Fatalf("expected unknown fields to be ignored: %v", err)
	}
	if len(f.FoundClues) != 1 || f.FoundClues[0] != "cl1" {
		t.Fatalf("unexpected fragment: %+v", f)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	env := Envelope{Type: EventAccuse, Data: json.RawMessage(`{"suspectId":`)}

	var a Accuse
	if err := env.Decode(&a); err == nil {
		t.Fatalf("expected malformed payload to fail decoding")
	}
}

func TestFragmentIsEmpty(t *testing.T) {
	if !(Fragment{}).IsEmpty() {
		t.Fatalf("expected zero fragment to be empty")
	}
	if (Fragment{UnlockedSuspects: []string{"s1"}}).IsEmpty() {
		t.Fatalf("expected populated fragment to be non-empty")
	}
	if (Fragment{BoardConnections: []Connection{{Source: "a", Target: "b"}}}).IsEmpty() {
		t.Fatalf("expected fragment with connections to be non-empty")
	}
}
