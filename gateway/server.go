// Copyright 2025 Strata Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/strataml/strata/memory"
	"github.com/strataml/strata/queue"
	"github.com/strataml/strata/router"
	"github.com/strataml/strata/storage"
)

// Server is the chat gateway: the single HTTP surface for completions,
// ingestion uploads, job polling and session inspection.
type Server struct {
	manager  *memory.Manager
	router   *router.Router
	queue    *queue.Client
	sessions storage.SessionRepository
	docs     storage.DocumentRepository

	backendHTTP *http.Client

	// docCache holds decompressed document payloads for the download
	// endpoint, costed by byte size.
	docCache *ristretto.Cache[string, []byte]

	logger *slog.Logger
}

// NewServer creates the gateway over its collaborators.
func NewServer(
	manager *memory.Manager,
	modelRouter *router.Router,
	queueClient *queue.Client,
	sessions storage.SessionRepository,
	docs storage.DocumentRepository,
) (*Server, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e4,
		MaxCost:     64 << 20, // 64 MiB of decompressed payloads
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		manager:     manager,
		router:      modelRouter,
		queue:       queueClient,
		sessions:    sessions,
		docs:        docs,
		backendHTTP: &http.Client{Timeout: 5 * time.Minute},
		docCache:    cache,
		logger:      slog.Default().With("component", "gateway"),
	}, nil
}

// Routes returns the gateway's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleChat)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("POST /v1/documents/ingest", s.handleIngestDocument)
	mux.HandleFunc("POST /v1/codebase/ingest", s.handleIngestCodebase)
	mux.HandleFunc("GET /v1/documents/{id}/download", s.handleDownload)
	mux.HandleFunc("GET /v1/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /v1/jobs", s.handleJobList)
	mux.HandleFunc("GET /v1/sessions", s.handleSessionList)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleSessionInfo)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Close releases gateway resources.
func (s *Server) Close() error {
	s.docCache.Close()
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	names := s.router.Models()
	infos := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, ModelInfo{ID: name, Object: "model", OwnedBy: "local"})
	}
	writeJSON(w, http.StatusOK, ModelListResponse{Object: "list", Data: infos})
}

// detachedContext is used for work that outlives the client request, like
// recording the assistant turn after the response was sent.
func (s *Server) detachedContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": msg},
	})
}
