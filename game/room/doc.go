// Package room provides the in-memory room registry for the capy arena relay.
//
// The room package implements:
//   - Case-normalized room codes
//   - Lazy room creation on first join
//   - Capacity-bounded, join-ordered occupant tables
//   - Automatic removal of rooms that become empty
//   - Random room code generation for the "create room" control
//
// Core Types:
//
// Registry is the process-wide store of rooms, keyed by normalized code. It is
// created once at startup and handed to the relay handler and the HTTP API.
// Room holds the occupants of one code together with its started flag.
// Snapshot is the last known state of one occupant; its payload is an opaque
// JSON object that the relay never interprets beyond the player id.
//
// Concurrency:
//
// Every room has its own mutex. WithRoom and WithExistingRoom run a function
// with exclusive access to one room, so a capacity check, an insert and the
// broadcast decision that follows happen as a single step. When the function
// leaves the room empty the room is closed and dropped from the registry; a
// caller that was waiting on a closed room retries against a fresh one.
//
// Lock order is always room, then registry. The registry lock is never held
// while a room lock is being acquired.
//
// Usage:
//
//	registry := room.NewRegistry(room.DefaultCapacity)
//
//	registry.WithRoom("abc123", func(r *room.Room) {
//		if err := r.Add(snapshot); err != nil {
//			// room is full
//		}
//	})
//
//	info, ok := registry.Lookup("ABC123")
package room
