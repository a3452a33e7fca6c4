package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/storage"
)

// handleSessionList serves GET /v1/sessions with an optional workspace
// filter.
func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	ws := core.NormalizeWorkspace(r.URL.Query().Get("workspace"))

	sessions, err := s.sessions.ListSessions(r.Context(), ws, 200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionInfo{
			ID:               sess.ID,
			Workspace:        sess.Workspace,
			Model:            sess.Model,
			TurnCount:        sess.TurnCount,
			LastPromotedTurn: sess.LastPromotedTurn,
			CreatedAt:        sess.CreatedAt.Format(time.RFC3339),
			UpdatedAt:        sess.UpdatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// handleSessionInfo serves GET /v1/sessions/{id}.
func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SessionInfo{
		ID:               sess.ID,
		Workspace:        sess.Workspace,
		Model:            sess.Model,
		TurnCount:        sess.TurnCount,
		LastPromotedTurn: sess.LastPromotedTurn,
		CreatedAt:        sess.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        sess.UpdatedAt.Format(time.RFC3339),
	})
}
