package main

import (
	"sync"
	"time"

	"github.com/Seednode/casebox/pkg/wire"
)

// room is one active investigation: a case id fixed at creation plus the
// sessions currently subscribed. Rooms are forgotten as soon as the last
// member leaves; nothing outlives the process.
type room struct {
	id         string
	caseID     string
	members    map[string]*relaySession
	lastActive time.Time
}

// roomManager is the relay's only shared mutable state. Every membership
// update and every prune check runs under one lock, so a prune always
// observes post-departure membership, never a stale snapshot.
type roomManager struct {
	mu          sync.Mutex
	rooms       map[string]*room
	defaultCase string
}

func newRoomManager(defaultCase string) *roomManager {
	return &roomManager{
		rooms:       make(map[string]*room),
		defaultCase: defaultCase,
	}
}

// join subscribes the session to roomID, creating the room if needed, and
// acks the joiner with the room's resolved case id. The first joiner's
// requested case sticks for the room's lifetime; later requests are
// ignored. Room and case ids are opaque strings, never validated here.
// Re-joining the current room is a no-op beyond re-acking. Returns the
// room's resolved case id.
func (rm *roomManager) join(cfg *Config, s *relaySession, roomID, requestedCaseID string) string {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	// A session already torn down (reaped, or dropped as slow) may still
	// have a live read pump for a moment; it gets nothing.
	if s.closed {
		return ""
	}

	if s.roomID == roomID {
		if r, ok := rm.rooms[roomID]; ok {
			r.lastActive = time.Now()
			rm.ackLocked(cfg, s, r)
			return r.caseID
		}
	}

	if s.roomID != "" && s.roomID != roomID {
		rm.removeLocked(cfg, s)
	}

	r, ok := rm.rooms[roomID]
	if !ok {
		caseID := requestedCaseID
		if caseID == "" {
			caseID = rm.defaultCase
		}

		r = &room{
			id:      roomID,
			caseID:  caseID,
			members: make(map[string]*relaySession),
		}
		rm.rooms[roomID] = r

		logf(cfg, "ROOMS: Created room %q (case %q)", roomID, caseID)
	}

	r.members[s.id] = s
	r.lastActive = time.Now()
	s.roomID = roomID

	logf(cfg, "ROOMS: Session %s joined room %q (case %q)", s.id, roomID, r.caseID)

	// Informational notice to the whole room, joiner included; the merge
	// logic never consumes it.
	if env, err := wire.NewEnvelope(wire.EventPlayerJoined, wire.PlayerJoined{SessionID: s.id}); err == nil {
		r.deliver(cfg, env, "")
	}

	rm.ackLocked(cfg, s, r)

	return r.caseID
}

// ackLocked sends the private room-info reply to a joiner. A joiner whose
// buffer cannot even take the ack is dropped on the spot, never left in the
// room with a dead channel.
func (rm *roomManager) ackLocked(cfg *Config, s *relaySession, r *room) {
	info, err := wire.NewEnvelope(wire.EventRoomInfo, wire.RoomInfo{
		RoomID: r.id,
		CaseID: r.caseID,
	})
	if err != nil {
		return
	}

	if !s.enqueueLocked(info) {
		rm.removeLocked(cfg, s)
		logf(cfg, "ROOMS: Dropped slow session %s joining room %q", s.id, r.id)
	}
}

// disconnect ends a session: removes it from its room, prunes the room if
// now empty, and closes the send channel so the write pump unwinds. Safe to
// call for sessions that never joined anywhere.
func (rm *roomManager) disconnect(cfg *Config, s *relaySession) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.removeLocked(cfg, s)
	s.closeLocked()
}

func (rm *roomManager) removeLocked(cfg *Config, s *relaySession) {
	r, ok := rm.rooms[s.roomID]
	s.roomID = ""
	if !ok {
		return
	}

	delete(r.members, s.id)

	// Membership already excludes the departing session here, so an empty
	// check is authoritative.
	if len(r.members) == 0 {
		delete(rm.rooms, r.id)
		logf(cfg, "ROOMS: Pruned empty room %q", r.id)
	}
}

// relay broadcasts an event to every other member of the sender's room.
// Delivery is at-most-once, unacknowledged, and never retried; cumulative
// union snapshots make a dropped update self-healing.
func (rm *roomManager) relay(cfg *Config, s *relaySession, env wire.Envelope) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, ok := rm.rooms[s.roomID]
	if !ok {
		return
	}

	r.lastActive = time.Now()

	r.deliver(cfg, env, s.id)
}

// deliver fans an event out to the room's members, skipping the session id
// given (empty means everyone). A member whose buffer is full is dropped on
// the spot. Callers must hold the manager lock.
func (r *room) deliver(cfg *Config, env wire.Envelope, skip string) {
	for id, m := range r.members {
		if id == skip {
			continue
		}
		if !m.enqueueLocked(env) {
			delete(r.members, id)
			m.roomID = ""
			logf(cfg, "ROOMS: Dropped slow session %s from room %q", id, r.id)
		}
	}
}

// count returns the number of active rooms.
func (rm *roomManager) count() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	return len(rm.rooms)
}

// reaperLoop drops rooms whose members have gone idle longer than
// idleTimeout. Empty rooms never get this far; they are pruned on the last
// departure.
func (rm *roomManager) reaperLoop(cfg *Config, idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-idleTimeout)

		rm.mu.Lock()
		for id, r := range rm.rooms {
			if r.lastActive.After(cutoff) {
				continue
			}

			for _, m := range r.members {
				m.closeLocked()
				m.roomID = ""
			}
			delete(rm.rooms, id)

			logf(cfg, "ROOMS: Reaped idle room %q", id)
		}
		rm.mu.Unlock()
	}
}
