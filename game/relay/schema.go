package relay

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/wricardo/capy-arena/game/room"
)

var (
	snapshotType   = reflect.TypeOf(room.Snapshot{})
	rawMessageType = reflect.TypeOf(json.RawMessage{})
)

// EventSchema documents one event of the wire protocol.
type EventSchema struct {
	Event     string             `json:"event"`
	Direction string             `json:"direction"`
	Audience  string             `json:"audience,omitempty"`
	Payload   *jsonschema.Schema `json:"payload,omitempty"`
}

// Schemas describes every event the relay accepts or emits.
func Schemas() []EventSchema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
		Mapper:         mapType,
	}

	opaque := func(description string) *jsonschema.Schema {
		return &jsonschema.Schema{Description: description}
	}

	tagged := func(description string) *jsonschema.Schema {
		props := jsonschema.NewProperties()
		props.Set("playerId", &jsonschema.Schema{Type: "string", Description: "Sender's player id unless the payload carries one"})
		return &jsonschema.Schema{Type: "object", Description: description, Properties: props}
	}

	return []EventSchema{
		{Event: EventJoinRoom, Direction: "client", Payload: r.Reflect(&JoinRequest{})},
		{Event: EventPlayerUpdate, Direction: "client", Payload: opaque("Player state, relayed verbatim")},
		{Event: EventCheeseThrow, Direction: "client", Payload: opaque("Game action, relayed verbatim")},
		{Event: EventPlayerMove, Direction: "client", Payload: opaque("Movement, relayed with the sender's playerId")},
		{Event: EventPlayerThrow, Direction: "client", Payload: opaque("Throw, relayed with the sender's playerId")},
		{Event: EventPlayerHit, Direction: "client", Payload: r.Reflect(&HitRequest{})},
		{Event: EventGameOver, Direction: "client", Payload: opaque("Round result, relayed verbatim")},
		{Event: EventPing, Direction: "client", Payload: opaque("Echoed back as pong")},
		{Event: EventRoomJoined, Direction: "server", Audience: "joiner", Payload: r.Reflect(&RoomJoined{})},
		{Event: EventPlayerJoined, Direction: "server", Audience: "others", Payload: r.Reflect(&PlayerJoined{})},
		{Event: EventRoomFull, Direction: "server", Audience: "joiner"},
		{Event: EventGameStart, Direction: "server", Audience: "all", Payload: r.Reflect(&GameStart{})},
		{Event: EventPlayerUpdate, Direction: "server", Audience: "others", Payload: opaque("Sender's player_update payload")},
		{Event: EventCheeseThrow, Direction: "server", Audience: "others", Payload: opaque("Sender's cheese_throw payload")},
		{Event: EventPlayerMoved, Direction: "server", Audience: "others", Payload: tagged("Sender's player_move payload")},
		{Event: EventPlayerThrew, Direction: "server", Audience: "others", Payload: tagged("Sender's player_throw payload")},
		{Event: EventPlayerWasHit, Direction: "server", Audience: "others", Payload: r.Reflect(&PlayerWasHit{})},
		{Event: EventGameEnded, Direction: "server", Audience: "all", Payload: opaque("Sender's game_over payload")},
		{Event: EventPong, Direction: "server", Audience: "sender", Payload: opaque("Sender's ping payload")},
		{Event: EventPlayerLeft, Direction: "server", Audience: "others", Payload: r.Reflect(&PlayerLeft{})},
	}
}

func mapType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case snapshotType:
		return &jsonschema.Schema{
			Type:        "object",
			Description: "Player snapshot: the client's playerData object plus connectionId",
		}
	case rawMessageType:
		return &jsonschema.Schema{Description: "Opaque JSON value"}
	}
	return nil
}
