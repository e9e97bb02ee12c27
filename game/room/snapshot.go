package room

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrNotObject is returned for payloads that are not a JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

// Snapshot is the last known state of one occupant.
type Snapshot struct {
	PlayerID     string
	ConnectionID string
	State        json.RawMessage
}

// NewSnapshot builds a snapshot from the playerData object a client sent on
// join. The player id is read from the "id" field and the connection id is
// written into the object. Anything that is not a JSON object is replaced by
// an empty one.
func NewSnapshot(connectionID string, playerData []byte) Snapshot {
	fields, err := DecodeObject(playerData)
	if err != nil {
		fields = orderedmap.New[string, json.RawMessage]()
	}
	fields.Set("connectionId", mustQuote(connectionID))

	state, err := json.Marshal(fields)
	if err != nil {
		state = []byte(`{"connectionId":` + string(mustQuote(connectionID)) + `}`)
	}

	return Snapshot{
		PlayerID:     playerID(state),
		ConnectionID: connectionID,
		State:        state,
	}
}

// Apply merges the top-level fields of update into the snapshot state.
// Later values win. The connectionId field is owned by the relay and is never
// taken from update. Updates that are not JSON objects, or that cannot be
// merged, leave the state untouched.
func (s *Snapshot) Apply(update []byte) error {
	changes, err := DecodeObject(update)
	if err != nil {
		return err
	}

	fields, err := DecodeObject(s.State)
	if err != nil {
		fields = orderedmap.New[string, json.RawMessage]()
	}
	for pair := changes.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "connectionId" {
			continue
		}
		fields.Set(pair.Key, pair.Value)
	}

	state, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode merged state: %w", err)
	}
	s.State = state
	return nil
}

// DecodeObject decodes a JSON object into its top-level fields, keeping
// their order.
func DecodeObject(data []byte) (*orderedmap.OrderedMap[string, json.RawMessage], error) {
	data = bytes.TrimSpace(data)
	if !isObject(data) {
		return nil, ErrNotObject
	}

	fields := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotObject, err)
	}
	return fields, nil
}

// MarshalJSON encodes the snapshot as its state object.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if len(s.State) == 0 {
		return []byte("{}"), nil
	}
	return s.State, nil
}

// UnmarshalJSON reads a snapshot back from its state object.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if !isObject(data) {
		return fmt.Errorf("snapshot must be a JSON object, got %.20q", data)
	}

	state := objectOrEmpty(data)
	connectionID, _ := jsonparser.GetString(state, "connectionId")

	s.PlayerID = playerID(state)
	s.ConnectionID = connectionID
	s.State = state
	return nil
}

func objectOrEmpty(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if !isObject(data) {
		return []byte("{}")
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

func isObject(data []byte) bool {
	return len(data) > 1 && data[0] == '{' && json.Valid(data)
}

// playerID accepts both string and numeric ids.
func playerID(state []byte) string {
	value, dataType, _, err := jsonparser.Get(state, "id")
	if err != nil {
		return ""
	}
	switch dataType {
	case jsonparser.String:
		id, err := jsonparser.ParseString(value)
		if err != nil {
			return string(value)
		}
		return id
	case jsonparser.Number:
		return string(value)
	default:
		return ""
	}
}

func mustQuote(v string) json.RawMessage {
	out, _ := json.Marshal(v)
	return out
}
