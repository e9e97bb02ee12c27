// Package api provides the HTTP surface of the capy arena relay.
//
// The api package implements:
//   - The WebSocket endpoint, at the configured path and at /api/socket
//   - Read-only REST introspection of live rooms
//   - Protocol schemas for client authors
//   - Optional MCP and static file mounts
//
// Endpoints:
//
// Rooms:
//   - GET /api/rooms - List live rooms (?started=true|false, ?limit=N)
//   - GET /api/rooms/{code} - Get one room with its roster
//   - POST /api/rooms - Return a fresh unused room code (the room is created on first join)
//
// Relay:
//   - GET /api/stats - Room, player, session and connection counts
//   - GET /api/protocol - JSON Schemas of every event payload
//   - GET /health - Liveness
//
// Every response carries Access-Control-Allow-Origin: * and OPTIONS
// preflight requests are answered directly.
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{"error": "room not found"}
//
// Usage:
//
//	server := api.NewServer(handler, hub, api.Options{SocketPath: "/ws"})
//	http.ListenAndServe(":8080", server)
package api
