package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"cipherparty/internal/lobby"
	"cipherparty/internal/orchestrator"
	"cipherparty/internal/session"
)

// Inbound frame budget per connection.
const (
	DefaultRateLimit = rate.Limit(10)
	DefaultRateBurst = 20
)

// Server is the HTTP server.
type Server struct {
	mux     *http.ServeMux
	orch    *orchestrator.Orchestrator
	rooms   *session.Manager
	lobby   *lobby.Broadcaster
	log     zerolog.Logger
	origins []string
	limit   rate.Limit
	burst   int
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins restricts websocket origins to the given host patterns.
// Without it any origin is accepted.
func WithAllowedOrigins(patterns []string) Option {
	return func(s *Server) { s.origins = patterns }
}

// WithRateLimit sets the per-connection inbound frame budget.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) { s.limit, s.burst = limit, burst }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l.With().Str("component", "server").Logger() }
}

// New creates a server with all routes.
func New(orch *orchestrator.Orchestrator, rooms *session.Manager, lb *lobby.Broadcaster, opts ...Option) *Server {
	s := &Server{
		mux:   http.NewServeMux(),
		orch:  orch,
		rooms: rooms,
		lobby: lb,
		log:   zerolog.Nop(),
		limit: DefaultRateLimit,
		burst: DefaultRateBurst,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	s.mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	s.mux.HandleFunc("GET /api/rooms/{id}", s.handleGetRoom)
	s.mux.HandleFunc("GET /api/rooms/{id}/ws", s.handleRoomSocket)
	s.mux.HandleFunc("GET /api/lobby/ws", s.handleLobbySocket)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.ListRooms())
}

type createRoomResponse struct {
	ID string `json:"id"`
}

// handleCreateRoom hands out a fresh room id. The room itself is created by
// the first join.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, createRoomResponse{ID: s.rooms.NewRoomID()})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !session.ValidRoomID(id) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": session.ErrInvalidRoomID.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.orch.CheckAvailability(id))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
