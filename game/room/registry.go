package room

import (
	"crypto/rand"
	"sort"
	"strings"
	"sync"
)

const (
	// CodeLength is the length of generated room codes.
	CodeLength = 6

	// codeAlphabet leaves out characters that are easy to misread (0/O, 1/I).
	// Its length divides 256 so byte-to-index mapping stays uniform.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 16
)

// Registry is the authoritative store of rooms, keyed by normalized code.
type Registry struct {
	capacity int
	rooms    map[string]*Room
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry whose rooms hold capacity occupants.
// A capacity below one falls back to DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		rooms:    make(map[string]*Room),
	}
}

// NormalizeCode trims and upper-cases a room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Capacity returns the capacity of rooms created by this registry.
func (r *Registry) Capacity() int {
	return r.capacity
}

// GetOrCreate returns the room for code, creating an empty one if needed.
func (r *Registry) GetOrCreate(code string) *Room {
	code = NormalizeCode(code)

	r.mu.RLock()
	rm, exists := r.rooms[code]
	r.mu.RUnlock()
	if exists {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if rm, exists := r.rooms[code]; exists {
		return rm
	}

	rm = newRoom(code, r.capacity)
	r.rooms[code] = rm
	return rm
}

// Get returns the room for code if it exists.
func (r *Registry) Get(code string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, exists := r.rooms[NormalizeCode(code)]
	return rm, exists
}

// Remove deletes the room for code. It is a no-op if the room does not exist.
func (r *Registry) Remove(code string) {
	rm, exists := r.Get(code)
	if !exists {
		return
	}

	rm.mu.Lock()
	r.retire(rm)
	rm.mu.Unlock()
}

// WithRoom runs fn with exclusive access to the room for code, creating the
// room first if necessary. If the room has no occupants once fn returns, it is
// removed from the registry.
func (r *Registry) WithRoom(code string, fn func(*Room)) {
	for {
		if r.run(r.GetOrCreate(code), fn) {
			return
		}
	}
}

// WithExistingRoom is like WithRoom but never creates a room. It reports
// whether fn was run.
func (r *Registry) WithExistingRoom(code string, fn func(*Room)) bool {
	for {
		rm, exists := r.Get(code)
		if !exists {
			return false
		}
		if r.run(rm, fn) {
			return true
		}
	}
}

// run executes fn under the room lock. It returns false without calling fn
// when the room was closed while the caller waited for the lock.
func (r *Registry) run(rm *Room, fn func(*Room)) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return false
	}

	fn(rm)

	if rm.occupants.Len() == 0 {
		r.retire(rm)
	}
	return true
}

// retire closes rm and drops it from the map. The caller holds rm.mu.
func (r *Registry) retire(rm *Room) {
	rm.closed = true

	r.mu.Lock()
	if r.rooms[rm.code] == rm {
		delete(r.rooms, rm.code)
	}
	r.mu.Unlock()
}

// Lookup returns a copy of the room for code.
func (r *Registry) Lookup(code string) (Info, bool) {
	var info Info
	found := r.WithExistingRoom(code, func(rm *Room) {
		info = rm.Info()
	})
	return info, found
}

// List returns a copy of every room, sorted by code.
func (r *Registry) List() []Info {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	result := make([]Info, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.Lock()
		if !rm.closed {
			result = append(result, rm.Info())
		}
		rm.mu.Unlock()
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})
	return result
}

// Count returns the number of rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Players returns the number of occupants across all rooms.
func (r *Registry) Players() int {
	total := 0
	for _, info := range r.List() {
		total += info.PlayerCount
	}
	return total
}

// NewCode returns a generated code that no current room uses.
func (r *Registry) NewCode() string {
	code := GenerateCode()
	for i := 1; i < maxCodeAttempts; i++ {
		if _, exists := r.Get(code); !exists {
			break
		}
		code = GenerateCode()
	}
	return code
}

// GenerateCode returns a random CodeLength-character room code.
func GenerateCode() string {
	buf := make([]byte, CodeLength)
	rand.Read(buf)

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
