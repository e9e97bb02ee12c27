// Package mcp exposes the relay's REST API as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes an HTTP request against
// a running relay, so the same tools work whether the MCP server runs inside
// the relay process (POST /mcp) or as a separate stdio process pointed at it.
//
// MCP Tools:
//   - list_rooms: List live rooms, filtered by started and limited in count
//   - get_room: Get one room with its roster
//   - relay_stats: Room, player, session and connection counts
//   - new_room_code: Generate an unused room code
//
// Usage:
//
//	// HTTP mode, mounted by the api package
//	client := mcp.NewClient("http://localhost:8080", version)
//	router.Handle("/mcp", client.HTTPHandler())
//
//	// Stdio mode
//	server.ServeStdio(client.GetMCPServer())
package mcp
