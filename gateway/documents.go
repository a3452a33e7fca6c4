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
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/queue"
	"github.com/strataml/strata/storage"
)

// maxUploadBytes bounds one ingestion upload (pre-compression).
const maxUploadBytes = 256 << 20

// handleIngestDocument serves POST /v1/documents/ingest.
// Accepts one multipart file, stores it, queues a document job, and
// returns immediately; callers poll the job endpoint for progress.
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	s.handleIngest(w, r, core.JobKindDocument)
}

// handleIngestCodebase serves POST /v1/codebase/ingest.
// Same contract with a zip or tar archive payload.
func (s *Server) handleIngestCodebase(w http.ResponseWriter, r *http.Request) {
	s.handleIngest(w, r, core.JobKindCodebase)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, kind core.JobKind) {
	ws := core.NormalizeWorkspace(r.Header.Get("X-Workspace"))
	if ws == "" {
		ws = DefaultWorkspace
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("missing file field: %v", err))
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	job, err := s.queue.Submit(r.Context(), queue.Submission{
		Workspace:   ws,
		Kind:        kind,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Payload:     payload,
	})
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrPublishFailed):
			// The job row exists; the caller may retry or wait for the
			// reconciliation sweep.
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, queue.ErrEmptyPayload):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	doc, err := s.docs.GetDocument(r.Context(), job.DocID)
	compressedSize := 0
	if err == nil {
		compressedSize = len(doc.Compressed)
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{
		DocID:          job.DocID,
		JobID:          job.ID,
		FileName:       header.Filename,
		Workspace:      ws,
		OriginalSize:   int64(len(payload)),
		CompressedSize: compressedSize,
		Status:         string(job.Status),
	})
}

// handleDownload serves GET /v1/documents/{id}/download, returning the
// original uncompressed payload. Decompressed payloads are cached.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	payload, found := s.docCache.Get(docID)
	var fileName, contentType string

	doc, err := s.docs.GetDocument(r.Context(), docID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", docID))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	fileName = doc.FileName
	contentType = doc.ContentType

	if !found {
		payload, err = queue.Decompress(doc.Compressed)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to decompress document: %v", err))
			return
		}
		s.docCache.Set(docID, payload, int64(len(payload)))
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
	w.Write(payload)
}
