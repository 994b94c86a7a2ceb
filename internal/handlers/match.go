// internal/handlers/match.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/match"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/middleware"
)

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())

	if err := s.queue.Enqueue(identity); err != nil {
		if errors.Is(err, match.ErrAlreadyQueued) {
			writeError(w, http.StatusConflict, "already in queue")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleCancelMatch(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())
	s.queue.Cancel(identity)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
