package relay

import (
	"errors"
	"log"
	"sync"

	"github.com/wricardo/capy-arena/game/room"
)

// Conn is a live client connection as seen by the relay.
type Conn interface {
	ID() string
	// Send queues a frame for delivery. It must not block.
	Send(data []byte) error
}

// Binding associates a connection with its room and player.
type Binding struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
}

type session struct {
	conn Conn
	Binding
}

// Handler runs the relay protocol for every connection.
type Handler struct {
	rooms    *room.Registry
	sessions map[string]*session
	mu       sync.RWMutex
	debug    bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithDebug enables logging of dropped and ignored frames.
func WithDebug(debug bool) Option {
	return func(h *Handler) { h.debug = debug }
}

// NewHandler creates a handler backed by the given registry.
func NewHandler(rooms *room.Registry, opts ...Option) *Handler {
	h := &Handler{
		rooms:    rooms,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle decodes one frame from conn and dispatches it.
func (h *Handler) Handle(conn Conn, frame []byte) {
	event, payload, err := DecodeEnvelope(frame)
	if err != nil {
		h.debugf("Dropping frame from %s: %v", conn.ID(), err)
		return
	}

	switch event {
	case EventJoinRoom:
		code, playerData := decodeJoin(payload)
		h.Join(conn, code, playerData)
	case EventPlayerUpdate:
		h.StateUpdate(conn, payload)
	case EventCheeseThrow:
		h.Action(conn, payload)
	case EventPlayerMove:
		h.Move(conn, payload)
	case EventPlayerThrow:
		h.Throw(conn, payload)
	case EventPlayerHit:
		h.Hit(conn, payload)
	case EventGameOver:
		h.GameOver(conn, payload)
	case EventPing:
		h.Ping(conn, payload)
	default:
		h.debugf("Ignoring unknown event %q from %s", event, conn.ID())
	}
}

// Join binds conn to the room for roomCode, or answers room_full when the
// room is at capacity.
func (h *Handler) Join(conn Conn, roomCode string, playerData []byte) {
	code := room.NormalizeCode(roomCode)
	if code == "" {
		h.debugf("Ignoring join without room code from %s", conn.ID())
		return
	}
	if b, bound := h.Binding(conn.ID()); bound {
		h.debugf("Ignoring join to %s from %s, already in room %s", code, conn.ID(), b.RoomCode)
		return
	}

	snapshot := room.NewSnapshot(conn.ID(), playerData)

	h.rooms.WithRoom(code, func(r *room.Room) {
		if err := r.Add(snapshot); err != nil {
			if errors.Is(err, room.ErrRoomFull) {
				log.Printf("Room %s is full, rejected connection %s", code, conn.ID())
				h.send(conn, EventRoomFull, nil)
			}
			return
		}

		h.bind(conn, Binding{RoomCode: code, PlayerID: snapshot.PlayerID})
		log.Printf("Player %s joined room %s (players: %d/%d)", snapshot.PlayerID, code, r.Len(), r.Capacity())

		h.broadcast(h.conns(r.PeerIDs(conn.ID())), EventPlayerJoined, PlayerJoined{
			PlayerID: snapshot.PlayerID,
			Player:   snapshot,
		})
		h.send(conn, EventRoomJoined, RoomJoined{
			RoomCode: code,
			Players:  r.Roster(),
		})

		if r.Len() == r.Capacity() && !r.Started() {
			r.SetStarted(true)
			h.broadcast(h.conns(r.PeerIDs("")), EventGameStart, GameStart{Players: r.Roster()})
			log.Printf("Room %s started", code)
		}
	})
}

// StateUpdate records payload as the sender's latest state and relays it
// unchanged to the other occupants.
func (h *Handler) StateUpdate(conn Conn, payload []byte) {
	h.withBoundRoom(conn, EventPlayerUpdate, func(r *room.Room, _ Binding) {
		if s, ok := r.Lookup(conn.ID()); ok {
			if err := s.Apply(payload); err != nil {
				h.debugf("Keeping previous state of %s: %v", conn.ID(), err)
			}
		}
		h.broadcastRaw(h.conns(r.PeerIDs(conn.ID())), EventPlayerUpdate, payload)
	})
}

// Action relays a game action such as a cheese throw unchanged to the other
// occupants.
func (h *Handler) Action(conn Conn, payload []byte) {
	h.withBoundRoom(conn, EventCheeseThrow, func(r *room.Room, _ Binding) {
		h.broadcastRaw(h.conns(r.PeerIDs(conn.ID())), EventCheeseThrow, payload)
	})
}

// Move relays a movement to the other occupants as player_moved, tagged with
// the sender's player id.
func (h *Handler) Move(conn Conn, payload []byte) {
	h.withBoundRoom(conn, EventPlayerMove, func(r *room.Room, b Binding) {
		h.broadcastTagged(h.conns(r.PeerIDs(conn.ID())), EventPlayerMoved, b.PlayerID, payload)
	})
}

// Throw relays a throw to the other occupants as player_threw, tagged with
// the sender's player id.
func (h *Handler) Throw(conn Conn, payload []byte) {
	h.withBoundRoom(conn, EventPlayerThrow, func(r *room.Room, b Binding) {
		h.broadcastTagged(h.conns(r.PeerIDs(conn.ID())), EventPlayerThrew, b.PlayerID, payload)
	})
}

// Hit tells the other occupants that the sender hit targetId.
func (h *Handler) Hit(conn Conn, payload []byte) {
	hit := decodeHit(payload)
	h.withBoundRoom(conn, EventPlayerHit, func(r *room.Room, b Binding) {
		h.broadcast(h.conns(r.PeerIDs(conn.ID())), EventPlayerWasHit, PlayerWasHit{
			PlayerID:   hit.TargetID,
			Damage:     hit.Damage,
			AttackerID: b.PlayerID,
		})
	})
}

// GameOver relays the end of a round to every occupant, sender included.
func (h *Handler) GameOver(conn Conn, payload []byte) {
	h.withBoundRoom(conn, EventGameOver, func(r *room.Room, _ Binding) {
		h.broadcastRaw(h.conns(r.PeerIDs("")), EventGameEnded, payload)
	})
}

// Ping echoes payload back to the sender as pong.
func (h *Handler) Ping(conn Conn, payload []byte) {
	h.sendRaw(conn, EventPong, payload)
}

// Disconnect tears down the binding of conn, tells the remaining occupants
// and resets the room so the next join triggers a fresh start.
func (h *Handler) Disconnect(conn Conn) {
	b, bound := h.unbind(conn.ID())
	if !bound {
		return
	}

	h.rooms.WithExistingRoom(b.RoomCode, func(r *room.Room) {
		if _, removed := r.Remove(conn.ID()); !removed {
			return
		}
		r.SetStarted(false)
		log.Printf("Player %s left room %s (players: %d/%d)", b.PlayerID, b.RoomCode, r.Len(), r.Capacity())

		h.broadcast(h.conns(r.PeerIDs("")), EventPlayerLeft, PlayerLeft{PlayerID: b.PlayerID})
	})
}

// Binding returns the binding of a connection, if it has joined a room.
func (h *Handler) Binding(connectionID string) (Binding, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[connectionID]
	if !ok {
		return Binding{}, false
	}
	return s.Binding, true
}

// withBoundRoom runs fn inside the sender's room. Frames from unbound
// connections, or whose room no longer lists them, are dropped.
func (h *Handler) withBoundRoom(conn Conn, event string, fn func(*room.Room, Binding)) {
	b, bound := h.Binding(conn.ID())
	if !bound {
		h.debugf("Dropping %s from unbound connection %s", event, conn.ID())
		return
	}

	ran := h.rooms.WithExistingRoom(b.RoomCode, func(r *room.Room) {
		if _, ok := r.Lookup(conn.ID()); !ok {
			h.debugf("Dropping %s from %s, not an occupant of %s", event, conn.ID(), b.RoomCode)
			return
		}
		fn(r, b)
	})
	if !ran {
		h.debugf("Dropping %s from %s, room %s is gone", event, conn.ID(), b.RoomCode)
	}
}

func (h *Handler) bind(conn Conn, b Binding) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[conn.ID()] = &session{conn: conn, Binding: b}
}

func (h *Handler) unbind(connectionID string) (Binding, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connectionID]
	if !ok {
		return Binding{}, false
	}
	delete(h.sessions, connectionID)
	return s.Binding, true
}

// conns resolves connection ids to bound connections. Ids without a binding
// are skipped; they belong to connections that are disconnecting.
func (h *Handler) conns(ids []string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]Conn, 0, len(ids))
	for _, id := range ids {
		if s, ok := h.sessions[id]; ok {
			conns = append(conns, s.conn)
		}
	}
	return conns
}

func (h *Handler) send(conn Conn, event string, payload interface{}) {
	h.broadcast([]Conn{conn}, event, payload)
}

func (h *Handler) sendRaw(conn Conn, event string, payload []byte) {
	h.broadcastRaw([]Conn{conn}, event, payload)
}

func (h *Handler) broadcast(conns []Conn, event string, payload interface{}) {
	frame, err := Encode(event, payload)
	if err != nil {
		log.Printf("Failed to encode %s: %v", event, err)
		return
	}
	h.deliver(conns, event, frame)
}

func (h *Handler) broadcastRaw(conns []Conn, event string, payload []byte) {
	frame, err := EncodeRaw(event, payload)
	if err != nil {
		h.debugf("Dropping %s with malformed payload: %v", event, err)
		return
	}
	h.deliver(conns, event, frame)
}

func (h *Handler) broadcastTagged(conns []Conn, event, playerID string, payload []byte) {
	data, err := TagPlayer(playerID, payload)
	if err != nil {
		log.Printf("Failed to tag %s: %v", event, err)
		return
	}
	h.broadcastRaw(conns, event, data)
}

func (h *Handler) deliver(conns []Conn, event string, frame []byte) {
	for _, c := range conns {
		if err := c.Send(frame); err != nil {
			h.debugf("Failed to deliver %s to %s: %v", event, c.ID(), err)
		}
	}
}

func (h *Handler) debugf(format string, args ...interface{}) {
	if h.debug {
		log.Printf("[debug] "+format, args...)
	}
}
