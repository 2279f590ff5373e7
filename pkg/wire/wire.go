// Package wire defines the event envelope exchanged between a casebox
// client and the relay. Every message is a tagged variant: a type string
// plus a typed payload, so malformed traffic fails at the boundary instead
// of silently defaulting fields deep inside the game state.
package wire

import (
	"encoding/json"
)

// Event types carried in an Envelope.
const (
	EventJoinRoom     = "join-room"     // client → relay
	EventRoomInfo     = "room-info"     // relay → joining client only
	EventPlayerJoined = "player-joined" // relay → room
	EventSyncState    = "sync-state"    // client → relay
	EventStateUpdate  = "state-update"  // relay → other room members
	EventAccuse       = "accuse"        // client → relay
	EventAccused      = "accused"       // relay → other room members
	EventChatMessage  = "chat-message"  // bidirectional
)

// Envelope wraps every relayed event.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinRoom subscribes the session to a room. CaseID is only honored when
// the room does not exist yet; late joiners get whatever was chosen first.
type JoinRoom struct {
	RoomID string `json:"roomId"`
	CaseID string `json:"caseId,omitempty"`
}

// RoomInfo is the private reply to a join, carrying the room's resolved case.
type RoomInfo struct {
	RoomID string `json:"roomId"`
	CaseID string `json:"caseId"`
}

// PlayerJoined is an informational broadcast; the merge logic never reads it.
type PlayerJoined struct {
	SessionID string `json:"sessionId"`
}

// SyncState pushes a progress fragment to the rest of the room.
type SyncState struct {
	RoomID string   `json:"roomId"`
	State  Fragment `json:"state"`
}

// Accuse commits a single suspect pick to the partner.
type Accuse struct {
	RoomID    string `json:"roomId"`
	SuspectID string `json:"suspectId"`
}

// Accused delivers the partner's committed pick.
type Accused struct {
	SuspectID string `json:"suspectId"`
}

// ChatMessage is a single chat line, tagged with the sender's role.
type ChatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ChatRelay is the client → relay form of a chat message.
type ChatRelay struct {
	RoomID string      `json:"roomId"`
	Msg    ChatMessage `json:"msg"`
}

// Connection is one undirected edge between two clues on the evidence
// board. Orientation on the wire is not significant; recipients
// canonicalize before storing.
type Connection struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Fragment is a partial shared-progress snapshot. Every field is optional;
// a missing field means "nothing new here", never "delete yours". Merging
// a Fragment must be purely additive.
type Fragment struct {
	FoundClues       []string     `json:"foundClues,omitempty"`
	UnlockedSuspects []string     `json:"unlockedSuspects,omitempty"`
	BoardConnections []Connection `json:"boardConnections,omitempty"`
}

// IsEmpty reports whether the fragment carries no progress at all.
func (f Fragment) IsEmpty() bool {
	return len(f.FoundClues) == 0 && len(f.UnlockedSuspects) == 0 && len(f.BoardConnections) == 0
}

// NewEnvelope marshals payload into a tagged envelope.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: eventType}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{Type: eventType, Data: data}, nil
}

// Decode unmarshals the envelope payload into dst. An absent payload is
// not an error; dst keeps its zero value, which for Fragment means every
// set is empty. Only genuinely malformed JSON fails.
func (e Envelope) Decode(dst any) error {
	if len(e.Data) == 0 {
		return nil
	}

	return json.Unmarshal(e.Data, dst)
}
