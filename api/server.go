package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/wricardo/capy-arena/game/relay"
	"github.com/wricardo/capy-arena/game/room"
)

// SocketPath is always mounted in addition to the configured socket path.
const SocketPath = "/api/socket"

// RelayService is the read side of the relay exposed over REST.
type RelayService interface {
	Rooms() []room.Info
	Room(code string) (room.Info, error)
	Stats() relay.Stats
	NewRoomCode() string
}

// SocketHandler upgrades connections to the relay protocol.
type SocketHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	Count() int
}

// Options controls the optional mounts.
type Options struct {
	// SocketPath is where the WebSocket endpoint is served. Defaults to /ws.
	SocketPath string
	// StaticDir, when set, is served at the root.
	StaticDir string
	// MCP, when set, is served at POST /mcp.
	MCP http.Handler
}

// Server represents the REST API server
type Server struct {
	service RelayService
	socket  SocketHandler
	opts    Options
	router  *mux.Router
}

// NewServer creates a new API server
func NewServer(svc RelayService, socket SocketHandler, opts Options) *Server {
	if opts.SocketPath == "" {
		opts.SocketPath = "/ws"
	}

	s := &Server{
		service: svc,
		socket:  socket,
		opts:    opts,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Rooms
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms", s.handleNewRoomCode).Methods("POST")
	api.HandleFunc("/rooms/{code}", s.handleGetRoom).Methods("GET")

	// Relay
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/protocol", s.handleProtocol).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	if s.socket != nil {
		s.router.HandleFunc(SocketPath, s.socket.ServeWS)
		if s.opts.SocketPath != SocketPath {
			s.router.HandleFunc(s.opts.SocketPath, s.socket.ServeWS)
		}
	}

	if s.opts.MCP != nil {
		s.router.Handle("/mcp", s.opts.MCP).Methods("POST")
	}

	if s.opts.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.opts.StaticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.service.Rooms()
	total := len(rooms)

	query := r.URL.Query()
	if started := query.Get("started"); started != "" {
		want, err := strconv.ParseBool(started)
		if err != nil {
			respondError(w, http.StatusBadRequest, "started must be true or false")
			return
		}
		filtered := make([]room.Info, 0, len(rooms))
		for _, info := range rooms {
			if info.Started == want {
				filtered = append(filtered, info)
			}
		}
		rooms = filtered
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(rooms) {
			rooms = rooms[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"total": total,
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	info, err := s.service.Room(code)
	if err != nil {
		if errors.Is(err, relay.ErrRoomNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleNewRoomCode(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusCreated, map[string]string{
		"code": s.service.NewRoomCode(),
	})
}

// Relay Handlers

type statsResponse struct {
	relay.Stats
	Connections int `json:"connections"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Stats: s.service.Stats()}
	if s.socket != nil {
		resp.Connections = s.socket.Count()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProtocol(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"socket_paths": s.socketPaths(),
		"events":       relay.Schemas(),
	})
}

func (s *Server) socketPaths() []string {
	if s.opts.SocketPath == SocketPath {
		return []string{SocketPath}
	}
	return []string{s.opts.SocketPath, SocketPath}
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
