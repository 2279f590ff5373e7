/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/casebox/pkg/casefile"
	"github.com/Seednode/casebox/pkg/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// relaySession is one websocket connection. The relay holds no game state
// for it beyond room membership; everything else lives in the clients.
type relaySession struct {
	id   string
	conn *websocket.Conn
	send chan wire.Envelope

	// Guarded by the manager lock. Once closed is set the send channel is
	// closed and the session must never be enqueued to again.
	roomID string
	closed bool
}

// enqueueLocked attempts a non-blocking delivery. A full buffer means the
// client has stopped draining; it gets disconnected rather than stalling
// the room. Callers must hold the manager lock and must drop the session
// from membership when this returns false.
func (s *relaySession) enqueueLocked(env wire.Envelope) bool {
	if s.closed {
		return false
	}

	select {
	case s.send <- env:
		return true
	default:
		s.closeLocked()
		return false
	}
}

// closeLocked marks the session dead and closes its send channel, unwinding
// the write pump. Callers must hold the manager lock; enqueueLocked checks
// closed under the same lock, so a closed channel is never sent on, even if
// the connection lingers and tries to re-join.
func (s *relaySession) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *relaySession) writePump() {
	defer s.conn.Close()

	for env := range s.send {
		if err := s.conn.WriteJSON(env); err != nil {
			return
		}
	}
}

// readPump decodes inbound envelopes and dispatches by type. The relay
// never inspects payload meaning beyond the routing fields; malformed or
// unknown events are dropped without closing the connection.
func (s *relaySession) readPump(cfg *Config, rm *roomManager) {
	defer func() {
		rm.disconnect(cfg, s)
		_ = s.conn.Close()
	}()

	for {
		var env wire.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Type {
		case wire.EventJoinRoom:
			var join wire.JoinRoom
			if err := env.Decode(&join); err != nil || join.RoomID == "" {
				continue
			}

			rm.join(cfg, s, join.RoomID, join.CaseID)

		case wire.EventSyncState:
			var state wire.SyncState
			if err := env.Decode(&state); err != nil {
				continue
			}

			update, err := wire.NewEnvelope(wire.EventStateUpdate, state.State)
			if err != nil {
				continue
			}
			rm.relay(cfg, s, update)

		case wire.EventAccuse:
			var accuse wire.Accuse
			if err := env.Decode(&accuse); err != nil || accuse.SuspectID == "" {
				continue
			}

			accused, err := wire.NewEnvelope(wire.EventAccused, wire.Accused{
				SuspectID: accuse.SuspectID,
			})
			if err != nil {
				continue
			}
			rm.relay(cfg, s, accused)

		case wire.EventChatMessage:
			var chat wire.ChatRelay
			if err := env.Decode(&chat); err != nil {
				continue
			}

			relayed, err := wire.NewEnvelope(wire.EventChatMessage, chat.Msg)
			if err != nil {
				continue
			}
			rm.relay(cfg, s, relayed)

		default:
			logf(cfg, "RELAY: Ignoring unknown event %q from session %s", env.Type, s.id)
		}
	}
}

// serveRelay upgrades the connection and runs the pumps. Room selection
// happens over the socket via join-room, not in the URL.
func serveRelay(cfg *Config, rm *roomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		s := &relaySession{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan wire.Envelope, 8),
		}

		logf(cfg, "RELAY: Session %s connected from %s", s.id, realIP(r))

		go s.writePump()
		s.readPump(cfg, rm)
	}
}

// newRoomID generates a crypto-random room ID and ensures it doesn't
// collide with an active room. Bytes of 248 and above are rejected so every
// letter is equally likely (248 is the largest multiple of 62 below 256).
func (rm *roomManager) newRoomID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		out := make([]byte, 0, 8)
		for len(out) < 8 {
			buf := make([]byte, 16)
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			for _, b := range buf {
				if int(b) >= 4*len(letters) {
					continue
				}
				out = append(out, letters[int(b)%len(letters)])
				if len(out) == 8 {
					break
				}
			}
		}
		id := string(out)

		rm.mu.Lock()
		_, exists := rm.rooms[id]
		rm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// redirectNewRoom handles GET /room by generating a fresh random room ID
// and redirecting to /room/:roomid.
func redirectNewRoom(cfg *Config, path string, rm *roomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := rm.newRoomID()
		logf(cfg, "ROOMS: Issued room id %s", roomID)
		http.Redirect(w, r, path+"/"+roomID, http.StatusTemporaryRedirect)
	}
}

// roomPageHandler serves a small landing page for a room: the id to share,
// and how to connect with the terminal client.
func roomPageHandler(cfg *Config, catalog *casefile.Catalog) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		// Room ids are opaque caller-supplied strings; never interpolate
		// them into markup raw.
		escaped := html.EscapeString(roomID)

		var body strings.Builder
		body.WriteString(fmt.Sprintf("<h1>Room %s</h1>", escaped))
		body.WriteString(fmt.Sprintf("<p><img src=\"/room/%s/qr\" alt=\"share\" width=\"320\" height=\"320\"></p>", escaped))
		body.WriteString("<p>Join from a terminal:</p>")
		body.WriteString(fmt.Sprintf("<pre>casebox client --server http://%s --room %s --role player1</pre>", html.EscapeString(r.Host), escaped))
		body.WriteString("<p>Available cases:</p><ul>")
		for _, id := range catalog.IDs() {
			c := catalog.ByID(id)
			body.WriteString(fmt.Sprintf("<li><code>%s</code>: %s</li>", id, c.Title))
		}
		body.WriteString("</ul>")

		securityHeaders(cfg, w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(newPage("Casebox: "+escaped, body.String())))
	}
}

// QR handler: generates a PNG QR code for the room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("roomid")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /room/:roomid/qr; strip trailing "/qr" for the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerRelay sets up routes so that:
//   - /ws                → WebSocket relay (room chosen via join-room)
//   - $path              → redirects to a fresh random room (8-char ID)
//   - $path/:roomid      → room landing page
//   - $path/:roomid/qr   → PNG QR code for that room URL
func registerRelay(cfg *Config, path string, catalog *casefile.Catalog, mux *httprouter.Router) *roomManager {
	rm := newRoomManager(cfg.defaultCase)

	if cfg.sessionTimeout > 0 {
		go rm.reaperLoop(cfg, cfg.sessionTimeout)
	}

	mux.GET(cfg.prefix+"/ws", serveRelay(cfg, rm))

	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, cfg.prefix+path, rm))
	mux.GET(cfg.prefix+path+"/:roomid", roomPageHandler(cfg, catalog))
	mux.GET(cfg.prefix+path+"/:roomid/qr", qrHandler)

	return rm
}
