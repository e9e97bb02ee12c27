// Package relay implements the room relay protocol for the capy arena game.
//
// A connection starts Unbound. A successful join_room binds it to exactly
// one room and player id until the connection goes away; there is no way to
// leave a room or switch rooms without disconnecting.
//
// Handler decodes JSON frames of the form {"event": ..., "data": ...} and
// applies them to the room registry:
//
//   - join_room admits the player, or answers room_full when the room is at
//     capacity. The joiner gets room_joined with the full roster, the others
//     get player_joined, and everyone gets game_start when the room fills.
//   - player_update and cheese_throw are relayed verbatim to the other
//     occupants. player_update is also merged into the sender's snapshot.
//   - player_hit becomes player_was_hit for the other occupants.
//   - game_over becomes game_ended for every occupant, sender included.
//   - ping is answered with pong.
//
// Events from unbound connections are dropped silently, and malformed frames
// never close a connection. The relay trusts clients: payloads are neither
// validated nor rate limited.
//
// All decisions for one room happen inside that room's critical section and
// sends are non-blocking, so every peer observes a room's events in the order
// the room decided them.
package relay
