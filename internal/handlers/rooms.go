// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/middleware"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/quiz"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/room"
)

type createRoomRequest struct {
	Category      string `json:"category"`
	QuestionCount int    `json:"questionCount"`
	MaxPlayers    int    `json:"maxPlayers"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.rooms.CreateRoom(quiz.Category(req.Category), req.QuestionCount, req.MaxPlayers)
	if err != nil {
		if errors.Is(err, room.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.WithError(err).Error("room creation failed")
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	// Creators with a live socket get the code pushed too.
	s.hub.Unicast(identity, events.Event{
		Type: events.EventRoomCreated,
		Payload: map[string]interface{}{
			"roomID":     created.ID,
			"inviteCode": created.InviteCode,
		},
	})
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	got, err := s.rooms.Get(r.PathValue("roomID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, got)
}

type joinRoomRequest struct {
	InviteCode string `json:"inviteCode"`
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InviteCode == "" {
		writeError(w, http.StatusBadRequest, "inviteCode is required")
		return
	}

	joined, err := s.rooms.Join(req.InviteCode, identity)
	if err != nil {
		writeError(w, joinStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, joined)
}

func joinStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrGameAlreadyStarted),
		errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrAlreadyJoined):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleValidateInvite(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rooms.ValidateInviteCode(r.PathValue("code")))
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())
	roomID := r.PathValue("roomID")

	if err := s.rooms.Leave(roomID, identity); err != nil {
		switch {
		case errors.Is(err, room.ErrNotFound):
			writeError(w, http.StatusNotFound, "room not found")
		case errors.Is(err, room.ErrNotMember):
			writeError(w, http.StatusForbidden, "not a member of this room")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())
	roomID := r.PathValue("roomID")

	if err := s.rooms.Start(roomID, identity); err != nil {
		switch {
		case errors.Is(err, room.ErrNotFound):
			writeError(w, http.StatusNotFound, "room not found")
		case errors.Is(err, room.ErrNotHost):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, room.ErrGameAlreadyStarted), errors.Is(err, room.ErrCannotStart):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "starting"})
}
