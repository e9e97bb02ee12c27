package room

import (
	"errors"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultCapacity is the number of players a room holds.
const DefaultCapacity = 2

var (
	ErrRoomFull        = errors.New("room is full")
	ErrAlreadyOccupant = errors.New("connection already occupies room")
)

// Room is the state of one room code.
//
// Apart from Code and Capacity, Room methods must only be called from inside
// a Registry.WithRoom or Registry.WithExistingRoom callback.
type Room struct {
	code      string
	capacity  int
	createdAt time.Time

	mu        sync.Mutex
	occupants *orderedmap.OrderedMap[string, *Snapshot]
	started   bool
	closed    bool
}

// Info is a point-in-time copy of a room for introspection.
type Info struct {
	Code        string     `json:"code"`
	Capacity    int        `json:"capacity"`
	PlayerCount int        `json:"player_count"`
	Started     bool       `json:"started"`
	Players     []Snapshot `json:"players"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newRoom(code string, capacity int) *Room {
	return &Room{
		code:      code,
		capacity:  capacity,
		createdAt: time.Now(),
		occupants: orderedmap.New[string, *Snapshot](),
	}
}

// Code returns the normalized room code.
func (r *Room) Code() string { return r.code }

// Capacity returns the maximum number of occupants.
func (r *Room) Capacity() int { return r.capacity }

// Len returns the number of occupants.
func (r *Room) Len() int { return r.occupants.Len() }

// Full reports whether the room has reached capacity.
func (r *Room) Full() bool { return r.occupants.Len() >= r.capacity }

// Started reports whether the start handshake has been sent for the current roster.
func (r *Room) Started() bool { return r.started }

// SetStarted sets the started flag.
func (r *Room) SetStarted(started bool) { r.started = started }

// Add inserts an occupant at the end of the join order.
func (r *Room) Add(s Snapshot) error {
	if r.Full() {
		return ErrRoomFull
	}
	if _, exists := r.occupants.Get(s.ConnectionID); exists {
		return ErrAlreadyOccupant
	}
	r.occupants.Set(s.ConnectionID, &s)
	return nil
}

// Remove deletes the occupant bound to connectionID.
func (r *Room) Remove(connectionID string) (Snapshot, bool) {
	s, ok := r.occupants.Delete(connectionID)
	if !ok {
		return Snapshot{}, false
	}
	return *s, true
}

// Lookup returns the live snapshot of an occupant so it can be updated in place.
func (r *Room) Lookup(connectionID string) (*Snapshot, bool) {
	return r.occupants.Get(connectionID)
}

// Roster returns copies of all occupant snapshots in join order.
func (r *Room) Roster() []Snapshot {
	roster := make([]Snapshot, 0, r.occupants.Len())
	for pair := r.occupants.Oldest(); pair != nil; pair = pair.Next() {
		roster = append(roster, *pair.Value)
	}
	return roster
}

// PeerIDs returns the connection ids of all occupants except the given one,
// in join order. Pass an empty string to get every occupant.
func (r *Room) PeerIDs(except string) []string {
	ids := make([]string, 0, r.occupants.Len())
	for pair := r.occupants.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == except {
			continue
		}
		ids = append(ids, pair.Key)
	}
	return ids
}

// Info returns a copy of the room for introspection.
func (r *Room) Info() Info {
	return Info{
		Code:        r.code,
		Capacity:    r.capacity,
		PlayerCount: r.occupants.Len(),
		Started:     r.started,
		Players:     r.Roster(),
		CreatedAt:   r.createdAt,
	}
}
