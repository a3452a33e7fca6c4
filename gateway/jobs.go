package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/storage"
)

// handleJobStatus serves GET /v1/jobs/{id}.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := s.queue.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobToResponse(job))
}

// handleJobList serves GET /v1/jobs with optional workspace and status
// filters.
func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	q := storage.JobQuery{
		Workspace: core.NormalizeWorkspace(r.URL.Query().Get("workspace")),
		Status:    core.JobStatus(r.URL.Query().Get("status")),
		Limit:     50,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit > 200 {
			limit = 200
		}
		q.Limit = limit
	}

	jobs, err := s.queue.List(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]JobStatusResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobToResponse(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  out,
		"count": len(out),
	})
}
