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
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/memory"
	"github.com/strataml/strata/router"
)

// handleChat serves POST /v1/chat/completions.
//
// Order of operations: resolve the route (fail fast on unknown models,
// before any tier is touched), derive the workspace, append the user turn,
// retrieve merged context, call the backend, send the response, append the
// assistant turn, then kick promotion off the request path.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	route, err := s.router.Resolve(req.Model)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	ws := DeriveWorkspace(&req, r.Header.Get("X-Workspace"))

	// A missing session ID means a fresh ephemeral session: it still gets
	// working-tier continuity under a generated ID, and the caller learns
	// the ID from the X-Session-Id header.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	userQuery := lastUserContent(req.Messages)
	if userQuery != "" {
		if _, err := s.manager.AppendTurn(r.Context(), ws, sessionID, req.Model, core.RoleUser, userQuery); err != nil {
			s.chatError(w, err)
			return
		}
	}

	memCtx, err := s.manager.RetrieveContext(r.Context(), ws, sessionID, userQuery)
	if err != nil {
		s.chatError(w, err)
		return
	}

	augmented := buildAugmentedMessages(&req, memCtx, userQuery != "")

	w.Header().Set("X-Session-Id", sessionID)
	if len(memCtx.Degraded) > 0 {
		w.Header().Set("X-Context-Degraded", strings.Join(memCtx.Degraded, ","))
	}

	if req.Stream {
		s.streamChat(w, r, route, augmented, &req, ws, sessionID)
		return
	}

	resp, err := s.complete(r.Context(), route, augmented, &req)
	if err != nil {
		s.logger.Error("backend completion failed", "model", req.Model, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.recordAssistantReply(ws, sessionID, req.Model, resp.Choices[0].Message.Content)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, route router.Route, augmented []ChatMessage, req *ChatCompletionRequest, ws, sessionID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fullText, err := s.streamComplete(r.Context(), w, route, augmented, req)
	if err != nil {
		// Headers are gone; all we can do is log and cut the stream.
		s.logger.Error("stream aborted", "model", req.Model, "err", err)
	}
	if fullText != "" {
		s.recordAssistantReply(ws, sessionID, req.Model, fullText)
	}
}

// recordAssistantReply appends the assistant turn and schedules promotion.
// Runs after the client response; failures are logged, never surfaced.
func (s *Server) recordAssistantReply(ws, sessionID, model, content string) {
	ctx, cancel := s.detachedContext()
	defer cancel()
	if _, err := s.manager.AppendTurn(ctx, ws, sessionID, model, core.RoleAssistant, content); err != nil {
		s.logger.Error("failed to append assistant turn", "session", sessionID, "err", err)
		return
	}
	s.manager.PromoteAsync(ws, sessionID)
}

func (s *Server) chatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrWorkingUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, core.ErrMissingWorkspace), errors.Is(err, core.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// lastUserContent returns the content of the most recent user message.
func lastUserContent(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == core.RoleUser && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}

// buildAugmentedMessages merges retrieved memory into the outgoing message
// list. Precedence: recent turns first (as conversation history), then
// recall summaries, then archival records, each in its own delimited block
// inside the system message. userAppended reports whether the current user
// message was appended to the session before retrieval.
func buildAugmentedMessages(req *ChatCompletionRequest, memCtx *memory.Context, userAppended bool) []ChatMessage {
	var systemMsg *ChatMessage
	var nonSystem []ChatMessage
	for i := range req.Messages {
		if req.Messages[i].Role == core.RoleSystem {
			systemMsg = &req.Messages[i]
		} else {
			nonSystem = append(nonSystem, req.Messages[i])
		}
	}

	memoryBlock := formatMemoryBlock(memCtx)

	var augmented []ChatMessage
	switch {
	case memoryBlock != "" && systemMsg != nil:
		augmented = append(augmented, ChatMessage{
			Role:    core.RoleSystem,
			Content: systemMsg.Content + "\n\n--- Relevant Memory ---\n" + memoryBlock,
		})
	case memoryBlock != "":
		augmented = append(augmented, ChatMessage{
			Role:    core.RoleSystem,
			Content: "--- Relevant Memory ---\n" + memoryBlock,
		})
	case systemMsg != nil:
		augmented = append(augmented, *systemMsg)
	}

	// Prior turns give the backend full conversation history. When the
	// current user message was appended before retrieval, it is the last
	// retrieved turn and already present in the request body, so it is
	// dropped from the history.
	history := memCtx.RecentTurns
	if userAppended && len(history) > 0 {
		history = history[:len(history)-1]
	}
	for _, turn := range history {
		augmented = append(augmented, ChatMessage{Role: turn.Role, Content: turn.Content})
	}

	return append(augmented, nonSystem...)
}

// formatMemoryBlock renders recall summaries and archival records as
// delimited sections.
func formatMemoryBlock(memCtx *memory.Context) string {
	var parts []string

	if len(memCtx.Summaries) > 0 {
		var b strings.Builder
		b.WriteString("<recall_memory>\n")
		for i, s := range memCtx.Summaries {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "[Past conversation (relevance: %.2f)]\n%s", s.Score, s.Summary.Content)
		}
		b.WriteString("\n</recall_memory>")
		parts = append(parts, b.String())
	}

	if len(memCtx.Archival) > 0 {
		var b strings.Builder
		b.WriteString("<archival_memory>\n")
		for i, rec := range memCtx.Archival {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(rec.Content)
		}
		b.WriteString("\n</archival_memory>")
		parts = append(parts, b.String())
	}

	return strings.Join(parts, "\n\n")
}
