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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/router"
)

// backendRequest is the Ollama /api/chat body the backend pools expect.
type backendRequest struct {
	Model    string           `json:"model"`
	Messages []backendMessage `json:"messages"`
	Stream   bool             `json:"stream"`
	Options  map[string]any   `json:"options,omitempty"`
}

type backendMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// backendResponse is one Ollama /api/chat reply (a full reply when not
// streaming, one NDJSON line when streaming).
type backendResponse struct {
	Message         backendMessage `json:"message"`
	Done            bool           `json:"done"`
	PromptEvalCount int            `json:"prompt_eval_count"`
	EvalCount       int            `json:"eval_count"`
}

func toBackendRequest(route router.Route, messages []ChatMessage, req *ChatCompletionRequest, stream bool) backendRequest {
	body := backendRequest{
		Model:  route.Model,
		Stream: stream,
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, backendMessage{Role: string(m.Role), Content: m.Content})
	}

	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		options["top_p"] = *req.TopP
	}
	if req.MaxTokens != nil {
		options["num_predict"] = *req.MaxTokens
	}
	if len(options) > 0 {
		body.Options = options
	}
	return body
}

// complete performs a non-streaming backend call.
func (s *Server) complete(ctx context.Context, route router.Route, messages []ChatMessage, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	payload, err := json.Marshal(toBackendRequest(route, messages, req, false))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, route.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.backendHTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var br backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("undecodable backend response: %w", err)
	}

	return &ChatCompletionResponse{
		ID:      newCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{{
			Message:      ChatMessage{Role: core.RoleAssistant, Content: br.Message.Content},
			FinishReason: "stop",
		}},
		Usage: Usage{
			PromptTokens:     br.PromptEvalCount,
			CompletionTokens: br.EvalCount,
			TotalTokens:      br.PromptEvalCount + br.EvalCount,
		},
	}, nil
}

// streamComplete proxies a streaming backend call as OpenAI-style
// server-sent events, flushing each chunk as it arrives. Returns the full
// assistant text collected from the stream so the caller can append it to
// the session after the response is sent.
func (s *Server) streamComplete(ctx context.Context, w http.ResponseWriter, route router.Route, messages []ChatMessage, req *ChatCompletionRequest) (string, error) {
	payload, err := json.Marshal(toBackendRequest(route, messages, req, true))
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, route.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.backendHTTP.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	flusher, _ := w.(http.Flusher)
	chunkID := newCompletionID()
	created := time.Now().Unix()

	writeChunk := func(chunk ChatCompletionChunk) {
		data, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	// Opening chunk announces the assistant role.
	writeChunk(ChatCompletionChunk{
		ID: chunkID, Object: "chat.completion.chunk", Created: created, Model: req.Model,
		Choices: []StreamChoice{{Delta: DeltaMessage{Role: "assistant"}}},
	})

	var collected bytes.Buffer
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var br backendResponse
		if err := json.Unmarshal(line, &br); err != nil {
			s.logger.Warn("skipping undecodable stream line", "err", err)
			continue
		}

		if br.Message.Content != "" {
			collected.WriteString(br.Message.Content)
			writeChunk(ChatCompletionChunk{
				ID: chunkID, Object: "chat.completion.chunk", Created: created, Model: req.Model,
				Choices: []StreamChoice{{Delta: DeltaMessage{Content: br.Message.Content}}},
			})
		}

		if br.Done {
			stop := "stop"
			writeChunk(ChatCompletionChunk{
				ID: chunkID, Object: "chat.completion.chunk", Created: created, Model: req.Model,
				Choices: []StreamChoice{{Delta: DeltaMessage{}, FinishReason: &stop}},
			})
			fmt.Fprint(w, "data: [DONE]\n\n")
			if flusher != nil {
				flusher.Flush()
			}
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return collected.String(), fmt.Errorf("backend stream broke: %w", err)
	}
	return collected.String(), nil
}
