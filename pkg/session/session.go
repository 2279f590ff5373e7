// Package session is the client side of the relay connection: joining a
// room, relaying progress fragments and accusation picks, and the chat
// channel. All inbound traffic is funneled onto a single events channel so
// the owner can consume it from one loop, matching the single-threaded
// cooperative model the merge engine expects.
package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Seednode/casebox/pkg/wire"
)

// Role is the logical player slot, chosen client-side. The relay does not
// arbitrate roles; two sessions claiming the same slot is representable and
// surfaces only as confusing gameplay.
type Role string

const (
	RolePlayer1 Role = "player1"
	RolePlayer2 Role = "player2"
)

// Partner returns the opposite role.
func (r Role) Partner() Role {
	if r == RolePlayer1 {
		return RolePlayer2
	}
	return RolePlayer1
}

// Label returns the in-game name for a role.
func (r Role) Label() string {
	if r == RolePlayer1 {
		return "Detective A"
	}
	return "Detective B"
}

// Event is one inbound relay event, pre-decoded for the owner's loop.
type Event struct {
	Type      string
	Fragment  wire.Fragment    // state-update
	SuspectID string           // accused
	Chat      wire.ChatMessage // chat-message
	SessionID string           // player-joined
	Err       error            // disconnect
}

// EventDisconnect is delivered once when the relay connection drops, after
// which the events channel is closed. Sync silently stops; local progress
// is unaffected.
const EventDisconnect = "disconnect"

const handshakeTimeout = 10 * time.Second

// Session is a live connection to one room. Senders may be called from any
// goroutine; events must be consumed promptly by a single owner.
type Session struct {
	conn   *websocket.Conn
	roomID string
	role   Role
	caseID string

	events  chan Event
	pending []Event

	writeMu sync.Mutex

	mu        sync.Mutex
	messages  []wire.ChatMessage
	connected bool
}

// Dial connects to the relay at serverURL (http or ws scheme), joins
// roomID, and blocks until the relay replies with the room's resolved case
// id. requestedCaseID is only honored when the room is new.
func Dial(ctx context.Context, serverURL, roomID string, role Role, requestedCaseID string) (*Session, error) {
	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	s := &Session{
		conn:      conn,
		roomID:    roomID,
		role:      role,
		events:    make(chan Event, 16),
		connected: true,
	}

	join, err := wire.NewEnvelope(wire.EventJoinRoom, wire.JoinRoom{
		RoomID: roomID,
		CaseID: requestedCaseID,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.write(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join room: %w", err)
	}

	if err := s.awaitRoomInfo(); err != nil {
		conn.Close()
		return nil, err
	}

	go s.readLoop()

	return s, nil
}

// awaitRoomInfo reads until the private room-info reply arrives. Broadcast
// events can land first (our own player-joined notice, or a partner's
// state-update racing the join); those are buffered and replayed onto the
// events channel once the read loop starts.
func (s *Session) awaitRoomInfo() error {
	deadline := time.Now().Add(handshakeTimeout)
	_ = s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		var env wire.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("waiting for room info: %w", err)
		}

		if env.Type == wire.EventRoomInfo {
			var info wire.RoomInfo
			if err := env.Decode(&info); err != nil {
				return fmt.Errorf("room info: %w", err)
			}
			s.caseID = info.CaseID
			return nil
		}

		if ev, ok := s.decode(env); ok {
			s.pending = append(s.pending, ev)
		}
	}
}

func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("relay url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("relay url: unsupported scheme %q", u.Scheme)
	}

	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}

	return u.String(), nil
}

// RoomID returns the joined room id.
func (s *Session) RoomID() string {
	return s.roomID
}

// Role returns the local player role.
func (s *Session) Role() Role {
	return s.role
}

// CaseID returns the room's resolved case id, fixed at room creation.
func (s *Session) CaseID() string {
	return s.caseID
}

// Events returns the inbound event channel. It is closed after an
// EventDisconnect event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Connected reports whether the relay link is still up. When false, play
// degrades to local-only state with no loss of local progress.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SyncState pushes the local snapshot to the rest of the room. An empty
// snapshot is never broadcast: a just-joined client holds nothing worth
// sending, and the guard keeps any non-additive receiver bug from wiping a
// partner's in-progress session.
func (s *Session) SyncState(f wire.Fragment) error {
	if f.IsEmpty() {
		return nil
	}

	env, err := wire.NewEnvelope(wire.EventSyncState, wire.SyncState{
		RoomID: s.roomID,
		State:  f,
	})
	if err != nil {
		return err
	}

	return s.write(env)
}

// EmitAccuse commits a suspect pick to the partner. One-shot; picks travel
// outside the continuous sync channel and are never part of the snapshot.
func (s *Session) EmitAccuse(suspectID string) error {
	env, err := wire.NewEnvelope(wire.EventAccuse, wire.Accuse{
		RoomID:    s.roomID,
		SuspectID: suspectID,
	})
	if err != nil {
		return err
	}

	return s.write(env)
}

// SendChat relays a chat line tagged with the local role and appends it to
// local history.
func (s *Session) SendChat(text string) (wire.ChatMessage, error) {
	msg := wire.ChatMessage{
		Sender: string(s.role),
		Text:   text,
	}

	env, err := wire.NewEnvelope(wire.EventChatMessage, wire.ChatRelay{
		RoomID: s.roomID,
		Msg:    msg,
	})
	if err != nil {
		return msg, err
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	return msg, s.write(env)
}

// Messages returns a copy of the chat history in arrival order.
func (s *Session) Messages() []wire.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]wire.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Close tears down the relay connection.
func (s *Session) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	return s.conn.Close()
}

func (s *Session) write(env wire.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(env)
}

func (s *Session) readLoop() {
	defer close(s.events)

	for _, ev := range s.pending {
		s.events <- ev
	}
	s.pending = nil

	for {
		var env wire.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			s.mu.Lock()
			s.connected = false
			s.mu.Unlock()

			s.events <- Event{Type: EventDisconnect, Err: err}
			return
		}

		if ev, ok := s.decode(env); ok {
			s.events <- ev
		}
	}
}

// decode maps a wire envelope to an Event. Unknown event types and
// malformed payloads are dropped; a partial fragment merges as empty sets,
// never as an error.
func (s *Session) decode(env wire.Envelope) (Event, bool) {
	switch env.Type {
	case wire.EventStateUpdate:
		var f wire.Fragment
		if err := env.Decode(&f); err != nil {
			return Event{}, false
		}
		return Event{Type: env.Type, Fragment: f}, true

	case wire.EventAccused:
		var a wire.Accused
		if err := env.Decode(&a); err != nil || a.SuspectID == "" {
			return Event{}, false
		}
		return Event{Type: env.Type, SuspectID: a.SuspectID}, true

	case wire.EventChatMessage:
		var msg wire.ChatMessage
		if err := env.Decode(&msg); err != nil {
			return Event{}, false
		}

		s.mu.Lock()
		s.messages = append(s.messages, msg)
		s.mu.Unlock()

		return Event{Type: env.Type, Chat: msg}, true

	case wire.EventPlayerJoined:
		var pj wire.PlayerJoined
		if err := env.Decode(&pj); err != nil {
			return Event{}, false
		}
		return Event{Type: env.Type, SessionID: pj.SessionID}, true

	default:
		return Event{}, false
	}
}
