package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"
	"github.com/wricardo/capy-arena/game/relay"
	"github.com/wricardo/capy-arena/game/room"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string, version string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer(version)
	return c
}

func (c *Client) initMCPServer(version string) {
	c.mcpServer = server.NewMCPServer(
		"Capy Arena Relay",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Capy Arena Relay - MCP Interface

This is a read-mostly view of a live two-player room relay. It proxies every
request to the relay's REST API.

ROOMS:
Players join a room by sending join_room with a room code over the WebSocket.
A room holds at most its capacity (2 by default). When it fills, both players
receive game_start. Rooms disappear when their last player leaves.

AVAILABLE TOOLS:
- list_rooms: List live rooms, optionally only started or only waiting ones
- get_room: Show one room with its players
- relay_stats: Room, player and connection counts
- new_room_code: Get a fresh room code to hand to two players`),
	)

	c.registerTools()
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List live rooms on the relay",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"started": map[string]interface{}{
					"type":        "boolean",
					"description": "Only rooms whose game has (true) or has not (false) started",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of rooms to return",
				},
			},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get a live room and its players",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{
					"type":        "string",
					"description": "Room code (case-insensitive)",
				},
			},
			Required: []string{"code"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "relay_stats",
		Description: "Get room, player, session and connection counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRelayStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "new_room_code",
		Description: "Generate a room code no live room is using",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleNewRoomCode)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler serves single JSON-RPC messages posted to it.
func (c *Client) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := c.mcpServer.HandleMessage(r.Context(), body)
		if response == nil {
			// notifications get no reply
			w.WriteHeader(http.StatusAccepted)
			return
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := url.Values{}
	if v, ok := args["started"]; ok && v != nil {
		started, err := cast.ToBoolE(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("started must be a boolean: %v", err)), nil
		}
		query.Set("started", strconv.FormatBool(started))
	}
	if v, ok := args["limit"]; ok && v != nil {
		limit, err := cast.ToIntE(v)
		if err != nil || limit < 1 {
			return mcp.NewToolResultError("limit must be a positive integer"), nil
		}
		query.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/rooms"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count int         `json:"count"`
		Total int         `json:"total"`
		Rooms []room.Info `json:"rooms"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomList(response.Count, response.Total, response.Rooms)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := strings.TrimSpace(cast.ToString(arguments(request)["code"]))
	if code == "" {
		return mcp.NewToolResultError("code is required"), nil
	}

	var info room.Info
	if err := c.apiCall(ctx, "GET", "/api/rooms/"+url.PathEscape(code), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomInfo(info)), nil
}

func (c *Client) handleRelayStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats struct {
		relay.Stats
		Connections int `json:"connections"`
	}
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Relay Stats:\n  Rooms: %d\n  Players: %d\n  Bound sessions: %d\n  Connections: %d\n  Room capacity: %d\n",
		stats.Rooms, stats.Players, stats.Sessions, stats.Connections, stats.Capacity)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleNewRoomCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Code string `json:"code"`
	}
	if err := c.apiCall(ctx, "POST", "/api/rooms", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	log.Printf("[MCP] issued room code %s", response.Code)
	result := fmt.Sprintf("Room code: %s\nShare it with both players; the room is created when the first one joins.\n", response.Code)
	return mcp.NewToolResultText(result), nil
}

func formatRoomList(count, total int, rooms []room.Info) string {
	if total == 0 {
		return "No live rooms.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Live Rooms (%d of %d):\n\n", count, total)
	for _, info := range rooms {
		fmt.Fprintf(&b, "- %s %d/%d %s (created %s)\n",
			info.Code, info.PlayerCount, info.Capacity, roomStatus(info), info.CreatedAt.Format("15:04:05"))
	}
	return b.String()
}

func formatRoomInfo(info room.Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s\n", info.Code)
	fmt.Fprintf(&b, "  Status: %s\n", roomStatus(info))
	fmt.Fprintf(&b, "  Players: %d/%d\n", info.PlayerCount, info.Capacity)
	fmt.Fprintf(&b, "  Created: %s\n", info.CreatedAt.Format(time.RFC3339))

	for i, p := range info.Players {
		id := p.PlayerID
		if id == "" {
			id = "(no id)"
		}
		fmt.Fprintf(&b, "  %d. %s [connection %s]\n", i+1, id, p.ConnectionID)
		if len(p.State) > 0 {
			fmt.Fprintf(&b, "     state: %s\n", p.State)
		}
	}
	return b.String()
}

func roomStatus(info room.Info) string {
	switch {
	case info.Started:
		return "in progress"
	case info.PlayerCount >= info.Capacity:
		return "full"
	default:
		return "waiting for players"
	}
}
