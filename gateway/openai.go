package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/strataml/strata/core"
)

// OpenAI-compatible wire types. The gateway speaks this dialect on the
// outside regardless of what the backend pools speak.

// ChatMessage is one message in a completion request or response.
type ChatMessage struct {
	Role    core.Role `json:"role"`
	Content string    `json:"content"`
	Name    string    `json:"name,omitempty"`
}

// ChatCompletionRequest is the body of POST /v1/chat/completions.
// SessionID and Workspace are extensions: they bind the request to the
// memory tiers. A missing SessionID means an ephemeral session.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
	Workspace   string        `json:"workspace,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage reports token accounting from the backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the non-streaming response body.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// DeltaMessage is the incremental payload of one stream chunk.
type DeltaMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamChoice is one choice within a stream chunk.
type StreamChoice struct {
	Index        int          `json:"index"`
	Delta        DeltaMessage `json:"delta"`
	FinishReason *string      `json:"finish_reason"`
}

// ChatCompletionChunk is one server-sent event in a streamed response.
type ChatCompletionChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// ModelInfo describes one routable model.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelListResponse is the body of GET /v1/models.
type ModelListResponse struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// IngestResponse acknowledges an accepted ingestion upload. Processing is
// asynchronous; callers poll the job endpoint.
type IngestResponse struct {
	DocID          string `json:"doc_id"`
	JobID          string `json:"job_id"`
	FileName       string `json:"file_name"`
	Workspace      string `json:"workspace"`
	OriginalSize   int64  `json:"original_size"`
	CompressedSize int    `json:"compressed_size"`
	Status         string `json:"status"`
}

// JobStatusResponse is the body of GET /v1/jobs/{id}.
type JobStatusResponse struct {
	JobID       string         `json:"job_id"`
	DocID       string         `json:"doc_id"`
	Workspace   string         `json:"workspace"`
	Kind        core.JobKind   `json:"kind"`
	Status      core.JobStatus `json:"status"`
	CreatedAt   string         `json:"created_at"`
	StartedAt   *string        `json:"started_at,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Attempts    int            `json:"attempts"`
}

// SessionInfo is one row of GET /v1/sessions.
type SessionInfo struct {
	ID               string `json:"id"`
	Workspace        string `json:"workspace"`
	Model            string `json:"model"`
	TurnCount        int    `json:"turn_count"`
	LastPromotedTurn int    `json:"last_promoted_turn"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func jobToResponse(job *core.IngestJob) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:     job.ID,
		DocID:     job.DocID,
		Workspace: job.Workspace,
		Kind:      job.Kind,
		Status:    job.Status,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		Error:     job.Error,
		Result:    job.Result,
		Attempts:  job.Attempts,
	}
	if job.StartedAt != nil {
		s := job.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if job.CompletedAt != nil {
		s := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// newCompletionID generates an OpenAI-style completion identifier.
func newCompletionID() string {
	buf := make([]byte, 6)
	rand.Read(buf)
	return "chatcmpl-" + hex.EncodeToString(buf)
}
