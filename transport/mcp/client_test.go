package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/wricardo/capy-arena/game/relay"
	"github.com/wricardo/capy-arena/game/room"
)

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected result content, got none")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func sampleRoom(code string) room.Info {
	return room.Info{
		Code:        code,
		Capacity:    2,
		PlayerCount: 2,
		Started:     true,
		Players: []room.Snapshot{
			room.NewSnapshot("conn-a", []byte(`{"id":"alice","x":1}`)),
			room.NewSnapshot("conn-b", []byte(`{"id":"bob","x":2}`)),
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/", "test")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"code": "ABC234"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test")

	var response map[string]string
	if err := client.apiCall(context.Background(), "POST", "/api/rooms", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["code"] != "ABC234" {
		t.Errorf("Expected code ABC234, got %v", response["code"])
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999", "test")

	if err := client.apiCall(context.Background(), "GET", "/api/rooms", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "room not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test")

	err := client.apiCall(context.Background(), "GET", "/api/rooms/NOPE", nil, nil)
	if err == nil || err.Error() != "room not found" {
		t.Errorf("Expected API error message, got %v", err)
	}
}

func TestClient_handleListRooms(t *testing.T) {
	tests := []struct {
		name          string
		args          map[string]interface{}
		expectedQuery string
		expectError   bool
	}{
		{"No filters", map[string]interface{}{}, "", false},
		{"Started filter", map[string]interface{}{"started": true}, "started=true", false},
		{"String arguments are coerced", map[string]interface{}{"started": "false", "limit": "5"}, "limit=5&started=false", false},
		{"Float limit", map[string]interface{}{"limit": float64(3)}, "limit=3", false},
		{"Bad limit", map[string]interface{}{"limit": -1}, "", true},
		{"Bad started", map[string]interface{}{"started": "sometimes"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				json.NewEncoder(w).Encode(map[string]interface{}{
					"count": 1,
					"total": 1,
					"rooms": []room.Info{sampleRoom("TEST01")},
				})
			}))
			defer server.Close()

			client := NewClient(server.URL, "test")
			result, err := client.handleListRooms(context.Background(), callRequest("list_rooms", tt.args))
			if err != nil {
				t.Fatalf("handleListRooms failed: %v", err)
			}

			if tt.expectError {
				if !result.IsError {
					t.Error("Expected tool error result")
				}
				return
			}

			if gotQuery != tt.expectedQuery {
				t.Errorf("Expected query %q, got %q", tt.expectedQuery, gotQuery)
			}
			text := resultText(t, result)
			if !strings.Contains(text, "TEST01 2/2 in progress") {
				t.Errorf("Expected room line in result, got: %s", text)
			}
		})
	}
}

func TestClient_handleListRooms_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"count": 0, "total": 0, "rooms": []room.Info{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test")
	result, err := client.handleListRooms(context.Background(), callRequest("list_rooms", nil))
	if err != nil {
		t.Fatalf("handleListRooms failed: %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "No live rooms") {
		t.Errorf("Expected empty message, got: %s", text)
	}
}

func TestClient_handleGetRoom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms/test01" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "room not found"})
			return
		}
		json.NewEncoder(w).Encode(sampleRoom("TEST01"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test")

	result, err := client.handleGetRoom(context.Background(), callRequest("get_room", map[string]interface{}{"code": " test01 "}))
	if err != nil {
		t.Fatalf("handleGetRoom failed: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{"Room TEST01", "in progress", "1. alice [connection conn-a]", "2. bob [connection conn-b]"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}

	result, _ = client.handleGetRoom(context.Background(), callRequest("get_room", map[string]interface{}{"code": "GONE"}))
	if !result.IsError {
		t.Error("Expected tool error for unknown room")
	}

	result, _ = client.handleGetRoom(context.Background(), callRequest("get_room", map[string]interface{}{}))
	if !result.IsError {
		t.Error("Expected tool error when code is missing")
	}
}

func TestClient_handleRelayStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{
			"rooms": 4, "players": 7, "sessions": 7, "capacity": 2, "connections": 9,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test")
	result, err := client.handleRelayStats(context.Background(), callRequest("relay_stats", nil))
	if err != nil {
		t.Fatalf("handleRelayStats failed: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"Rooms: 4", "Players: 7", "Connections: 9", "Room capacity: 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}
}

func TestClient_handleNewRoomCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/rooms" {
			t.Errorf("Expected POST /api/rooms, got %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"code": "QWE456"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test")
	result, err := client.handleNewRoomCode(context.Background(), callRequest("new_room_code", nil))
	if err != nil {
		t.Fatalf("handleNewRoomCode failed: %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "QWE456") {
		t.Errorf("Expected code in result, got: %s", text)
	}
}

func TestRoomStatus(t *testing.T) {
	tests := []struct {
		info room.Info
		want string
	}{
		{room.Info{Capacity: 2, PlayerCount: 1}, "waiting for players"},
		{room.Info{Capacity: 2, PlayerCount: 2}, "full"},
		{room.Info{Capacity: 2, PlayerCount: 2, Started: true}, "in progress"},
	}

	for _, tt := range tests {
		if got := roomStatus(tt.info); got != tt.want {
			t.Errorf("roomStatus(%+v) = %q, want %q", tt.info, got, tt.want)
		}
	}
}

func TestHTTPHandler(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(relay.Stats{Rooms: 1, Players: 2, Capacity: 2})
	}))
	defer api.Close()

	handler := NewClient(api.URL, "test").HTTPHandler()

	t.Run("Rejects GET", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
		}
	})

	t.Run("Lists tools", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", bytes.NewBufferString(body)))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
		}
		for _, tool := range []string{"list_rooms", "get_room", "relay_stats", "new_room_code"} {
			if !strings.Contains(w.Body.String(), tool) {
				t.Errorf("Expected tool %s in tools/list response", tool)
			}
		}
	})

	t.Run("Calls a tool", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"relay_stats","arguments":{}}}`
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", bytes.NewBufferString(body)))

		if !strings.Contains(w.Body.String(), "Players: 2") {
			t.Errorf("Expected stats text in response, got: %s", w.Body.String())
		}
	})
}
