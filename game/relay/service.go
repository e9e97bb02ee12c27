package relay

import (
	"errors"

	"github.com/wricardo/capy-arena/game/room"
)

var ErrRoomNotFound = errors.New("room not found")

// Stats summarizes the relay.
type Stats struct {
	Rooms    int `json:"rooms"`
	Players  int `json:"players"`
	Sessions int `json:"sessions"`
	Capacity int `json:"capacity"`
}

// Rooms returns every live room.
func (h *Handler) Rooms() []room.Info {
	return h.rooms.List()
}

// Room returns the live room for code.
func (h *Handler) Room(code string) (room.Info, error) {
	info, ok := h.rooms.Lookup(code)
	if !ok {
		return room.Info{}, ErrRoomNotFound
	}
	return info, nil
}

// NewRoomCode returns a fresh code that no live room uses. The room itself is
// only created when the first player joins with it.
func (h *Handler) NewRoomCode() string {
	return h.rooms.NewCode()
}

// Stats returns room, player and bound session counts.
func (h *Handler) Stats() Stats {
	h.mu.RLock()
	sessions := len(h.sessions)
	h.mu.RUnlock()

	return Stats{
		Rooms:    h.rooms.Count(),
		Players:  h.rooms.Players(),
		Sessions: sessions,
		Capacity: h.rooms.Capacity(),
	}
}
