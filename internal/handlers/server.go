// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/auth"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/game"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/match"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/middleware"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/presence"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/room"
)

// Server binds the HTTP API and the websocket endpoint over the engine's
// components.
type Server struct {
	log      *logrus.Logger
	hub      *events.Hub
	rooms    *room.Registry
	queue    *match.Queue
	engine   *game.Engine
	presence *presence.Tracker
	verifier *auth.Verifier
}

// NewServer wires the handler set.
func NewServer(logger *logrus.Logger, hub *events.Hub, rooms *room.Registry, queue *match.Queue, engine *game.Engine, tracker *presence.Tracker, verifier *auth.Verifier) *Server {
	return &Server{
		log:      logger,
		hub:      hub,
		rooms:    rooms,
		queue:    queue,
		engine:   engine,
		presence: tracker,
		verifier: verifier,
	}
}

// Handler returns the full route table with logging and auth applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authed := http.NewServeMux()
	authed.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	authed.HandleFunc("GET /api/rooms/{roomID}", s.handleGetRoom)
	authed.HandleFunc("POST /api/rooms/join", s.handleJoinRoom)
	authed.HandleFunc("GET /api/invites/{code}", s.handleValidateInvite)
	authed.HandleFunc("POST /api/rooms/{roomID}/leave", s.handleLeaveRoom)
	authed.HandleFunc("POST /api/rooms/{roomID}/start", s.handleStartRoom)
	authed.HandleFunc("POST /api/match", s.handleEnqueue)
	authed.HandleFunc("DELETE /api/match", s.handleCancelMatch)
	authed.HandleFunc("GET /ws/rooms/{roomID}", s.handleRoomSocket)

	withAuth := middleware.Auth(s.verifier)(authed)
	mux.Handle("/api/", withAuth)
	mux.Handle("/ws/", withAuth)

	return middleware.Logging(s.log)(mux)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
