// Package websocket provides the WebSocket transport for the capy arena relay.
//
// The websocket package implements:
//   - Connection upgrade with an Origin allow-list
//   - A read pump feeding text frames to a MessageHandler
//   - A write pump sending one frame per WebSocket message
//   - Keepalive pings and read deadlines
//   - Slow-consumer eviction when a send buffer fills
//
// Architecture:
//
// A central Hub tracks every live Client through register and unregister
// channels served by Run. Each client has a read goroutine and a write
// goroutine. The read goroutine hands frames to the relay handler and calls
// Disconnect exactly once when the connection ends, whatever the cause.
//
// Client.Send never blocks. Frames are queued on a buffered channel; when the
// buffer is full the client is closed and Send returns ErrSendBufferFull.
//
// Usage:
//
//	handler := relay.NewHandler(room.NewRegistry(2))
//	hub := websocket.NewHub(handler, websocket.Options{SendBuffer: 256})
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", hub.ServeWS)
package websocket
