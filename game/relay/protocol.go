package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/wricardo/capy-arena/game/room"
)

// Client to server events.
const (
	EventJoinRoom     = "join_room"
	EventPlayerUpdate = "player_update"
	EventCheeseThrow  = "cheese_throw"
	EventPlayerMove   = "player_move"
	EventPlayerThrow  = "player_throw"
	EventPlayerHit    = "player_hit"
	EventGameOver     = "game_over"
	EventPing         = "ping"
)

// Server to client events. player_update and cheese_throw keep their names
// when relayed.
const (
	EventRoomJoined   = "room_joined"
	EventPlayerJoined = "player_joined"
	EventRoomFull     = "room_full"
	EventGameStart    = "game_start"
	EventPlayerLeft   = "player_left"
	EventPlayerMoved  = "player_moved"
	EventPlayerThrew  = "player_threw"
	EventPlayerWasHit = "player_was_hit"
	EventGameEnded    = "game_ended"
	EventPong         = "pong"
)

var ErrMissingEvent = errors.New("frame has no event name")

// Envelope is the JSON frame exchanged over the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest is the payload of join_room. RoomID is accepted as an alias
// for RoomCode.
type JoinRequest struct {
	RoomCode   string          `json:"roomCode"`
	RoomID     string          `json:"roomId,omitempty"`
	PlayerData json.RawMessage `json:"playerData"`
}

// RoomJoined is sent to the joiner only.
type RoomJoined struct {
	RoomCode string          `json:"roomCode"`
	Players  []room.Snapshot `json:"players"`
}

// PlayerJoined is sent to the occupants that were already in the room.
type PlayerJoined struct {
	PlayerID string        `json:"playerId"`
	Player   room.Snapshot `json:"player"`
}

// GameStart is sent to every occupant when the room fills.
type GameStart struct {
	Players []room.Snapshot `json:"players"`
}

// PlayerLeft is sent to the remaining occupants on disconnect.
type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

// HitRequest is the payload of player_hit.
type HitRequest struct {
	TargetID string          `json:"targetId"`
	Damage   json.RawMessage `json:"damage,omitempty"`
}

// PlayerWasHit is sent to the other occupants for a player_hit.
type PlayerWasHit struct {
	PlayerID   string          `json:"playerId"`
	Damage     json.RawMessage `json:"damage,omitempty"`
	AttackerID string          `json:"attackerId"`
}

// Encode builds a frame for event with payload marshaled as its data.
// A nil payload produces a frame without data.
func Encode(event string, payload interface{}) ([]byte, error) {
	if payload == nil {
		return json.Marshal(Envelope{Event: event})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return EncodeRaw(event, data)
}

// EncodeRaw builds a frame for event around an already encoded payload.
func EncodeRaw(event string, data []byte) ([]byte, error) {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s frame: %w", event, err)
	}
	return frame, nil
}

// DecodeEnvelope extracts the event name and the raw data of a frame without
// decoding the payload itself.
func DecodeEnvelope(frame []byte) (string, []byte, error) {
	event, err := jsonparser.GetString(frame, "event")
	if err != nil {
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return "", nil, ErrMissingEvent
		}
		return "", nil, fmt.Errorf("failed to read event: %w", err)
	}
	if event == "" {
		return "", nil, ErrMissingEvent
	}

	return event, field(frame, "data"), nil
}

// TagPlayer returns payload with playerId set to the sender's id. Fields
// present in payload win, including its own playerId. Payloads that are not
// objects are replaced by {"playerId": ...}.
func TagPlayer(playerID string, payload []byte) ([]byte, error) {
	id, err := json.Marshal(playerID)
	if err != nil {
		return nil, err
	}

	tagged := orderedmap.New[string, json.RawMessage]()
	tagged.Set("playerId", id)

	if fields, err := room.DecodeObject(payload); err == nil {
		for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
			tagged.Set(pair.Key, pair.Value)
		}
	}
	return json.Marshal(tagged)
}

func decodeJoin(payload []byte) (string, []byte) {
	code := stringField(payload, "roomCode")
	if code == "" {
		code = stringField(payload, "roomId")
	}
	return code, field(payload, "playerData")
}

func decodeHit(payload []byte) HitRequest {
	return HitRequest{
		TargetID: stringField(payload, "targetId"),
		Damage:   field(payload, "damage"),
	}
}

// field returns the raw JSON of key, or nil if it is absent.
func field(data []byte, key string) []byte {
	value, dataType, _, err := jsonparser.Get(data, key)
	if err != nil {
		return nil
	}
	if dataType == jsonparser.String {
		quoted := make([]byte, 0, len(value)+2)
		quoted = append(quoted, '"')
		quoted = append(quoted, value...)
		return append(quoted, '"')
	}
	return value
}

// stringField reads key as a string, accepting numbers too.
func stringField(data []byte, key string) string {
	value, dataType, _, err := jsonparser.Get(data, key)
	if err != nil {
		return ""
	}
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return string(value)
		}
		return s
	case jsonparser.Number:
		return string(value)
	default:
		return ""
	}
}
