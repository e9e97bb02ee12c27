package room

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(connID, playerID string) Snapshot {
	return NewSnapshot(connID, []byte(fmt.Sprintf(`{"id":%q,"x":100,"y":100}`, playerID)))
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"abc123", "ABC123"},
		{"  TeSt01 ", "TEST01"},
		{"ROOM", "ROOM"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCode(tt.input), "NormalizeCode(%q)", tt.input)
	}
}

func TestRegistry_GetOrCreate(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)

	first := reg.GetOrCreate("abc123")
	second := reg.GetOrCreate("ABC123")

	assert.Same(t, first, second, "codes should be case-insensitive")
	assert.Equal(t, "ABC123", first.Code())
	assert.Equal(t, 1, reg.Count())

	got, ok := reg.Get("Abc123")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistry_GetMissing(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)

	_, ok := reg.Get("NOPE")
	assert.False(t, ok)
}

func TestRegistry_Remove(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)
	reg.GetOrCreate("ROOM01")

	reg.Remove("room01")
	_, ok := reg.Get("ROOM01")
	assert.False(t, ok)

	// Removing again is a no-op
	reg.Remove("ROOM01")
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_RemoveClosesRoom(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)
	reg.WithRoom("ROOM01", func(r *Room) {
		require.NoError(t, r.Add(testSnapshot("c1", "p1")))
	})

	reg.Remove("ROOM01")

	ran := reg.WithExistingRoom("ROOM01", func(*Room) {})
	assert.False(t, ran)
}

func TestNewRegistry_CapacityFallback(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewRegistry(0).Capacity())
	assert.Equal(t, 4, NewRegistry(4).Capacity())
}

func TestRegistry_WithRoomCapacity(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)

	for i := 1; i <= 5; i++ {
		var err error
		reg.WithRoom("FULL01", func(r *Room) {
			err = r.Add(testSnapshot(fmt.Sprintf("c%d", i), fmt.Sprintf("p%d", i)))
		})
		if i <= DefaultCapacity {
			assert.NoError(t, err, "join %d", i)
		} else {
			assert.ErrorIs(t, err, ErrRoomFull, "join %d", i)
		}
	}

	info, ok := reg.Lookup("FULL01")
	require.True(t, ok)
	assert.Equal(t, DefaultCapacity, info.PlayerCount)
	assert.Equal(t, "c1", info.Players[0].ConnectionID)
	assert.Equal(t, "c2", info.Players[1].ConnectionID)
}

func TestRegistry_WithRoomRemovesEmptyRoom(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)

	// A callback that adds nobody must not leave an orphan room behind
	reg.WithRoom("EMPTY1", func(*Room) {})
	assert.Equal(t, 0, reg.Count())

	reg.WithRoom("ROOM02", func(r *Room) {
		require.NoError(t, r.Add(testSnapshot("c1", "p1")))
		require.NoError(t, r.Add(testSnapshot("c2", "p2")))
	})
	assert.Equal(t, 1, reg.Count())

	for _, conn := range []string{"c2", "c1"} {
		ran := reg.WithExistingRoom("room02", func(r *Room) {
			_, removed := r.Remove(conn)
			assert.True(t, removed)
		})
		assert.True(t, ran)
	}

	_, ok := reg.Get("ROOM02")
	assert.False(t, ok, "room should be removed once every occupant left")
}

func TestRegistry_WithExistingRoomMissing(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)

	called := false
	ran := reg.WithExistingRoom("GHOST1", func(*Room) { called = true })

	assert.False(t, ran)
	assert.False(t, called)
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_ConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)

	const joiners = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)

	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.WithRoom("RACE01", func(r *Room) {
				err := r.Add(testSnapshot(fmt.Sprintf("c%d", i), fmt.Sprintf("p%d", i)))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					rejected++
				} else {
					admitted++
				}
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, DefaultCapacity, admitted)
	assert.Equal(t, joiners-DefaultCapacity, rejected)

	info, ok := reg.Lookup("RACE01")
	require.True(t, ok)
	assert.Equal(t, DefaultCapacity, info.PlayerCount)
}

func TestRegistry_ConcurrentJoinAndLeave(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			joined := false
			reg.WithRoom("CHURN1", func(r *Room) {
				joined = r.Add(testSnapshot(conn, conn)) == nil
				assert.LessOrEqual(t, r.Len(), DefaultCapacity)
			})
			if joined {
				reg.WithExistingRoom("CHURN1", func(r *Room) {
					r.Remove(conn)
				})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Count(), "every occupant left, no room should remain")
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)

	for _, code := range []string{"ZZZ999", "AAA111", "MMM555"} {
		reg.WithRoom(code, func(r *Room) {
			require.NoError(t, r.Add(testSnapshot("conn-"+code, "player-"+code)))
		})
	}

	rooms := reg.List()
	require.Len(t, rooms, 3)
	assert.Equal(t, "AAA111", rooms[0].Code)
	assert.Equal(t, "MMM555", rooms[1].Code)
	assert.Equal(t, "ZZZ999", rooms[2].Code)
	assert.Equal(t, 3, reg.Players())
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateCode()
		require.Len(t, code, CodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q in %s", c, code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 90, "codes should rarely collide")
}

func TestRegistry_NewCodeIsUnused(t *testing.T) {
	reg := NewRegistry(DefaultCapacity)
	code := reg.NewCode()

	_, exists := reg.Get(code)
	assert.False(t, exists)
	assert.Equal(t, NormalizeCode(code), code)
}
