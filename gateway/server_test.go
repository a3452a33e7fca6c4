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
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataml/strata/ai/mock"
	"github.com/strataml/strata/config"
	"github.com/strataml/strata/core"
	"github.com/strataml/strata/memory"
	"github.com/strataml/strata/memory/archival"
	"github.com/strataml/strata/memory/recall"
	"github.com/strataml/strata/memory/working"
	"github.com/strataml/strata/queue"
	"github.com/strataml/strata/router"
	storagebadger "github.com/strataml/strata/storage/badger"
)

// nopArchival satisfies the archival client with empty results, keeping
// gateway tests independent of any indexing service.
type nopArchival struct{}

func (nopArchival) Query(context.Context, string, string) (*archival.GraphData, error) {
	return &archival.GraphData{}, nil
}

func (nopArchival) IngestText(context.Context, string, string) error { return nil }

// fakeBackend imitates an Ollama /api/chat endpoint. Non-streaming calls
// get a single reply; streaming calls get NDJSON chunks.
func fakeBackend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if !req.Stream {
			json.NewEncoder(w).Encode(map[string]any{
				"message":           map[string]string{"role": "assistant", "content": reply},
				"done":              true,
				"prompt_eval_count": 10,
				"eval_count":        5,
			})
			return
		}

		enc := json.NewEncoder(w)
		for _, piece := range strings.SplitAfter(reply, " ") {
			enc.Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": piece},
				"done":    false,
			})
		}
		enc.Encode(map[string]any{
			"message":    map[string]string{"role": "assistant", "content": ""},
			"done":       true,
			"eval_count": 5,
		})
	}))
}

type gatewayEnv struct {
	server  *Server
	ts      *httptest.Server
	manager *memory.Manager
}

func newTestGateway(t *testing.T, backendURL string) *gatewayEnv {
	t.Helper()

	sessions, jobs, docs, backend, err := storagebadger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	recallStore, err := recall.NewChromemStore()
	require.NoError(t, err)

	mgr, err := memory.NewManager(
		sessions,
		working.NewMemoryStore(time.Hour),
		recallStore,
		nopArchival{},
		mock.NewMockProvider(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	modelRouter := router.New(map[string]config.ModelRoute{
		"test-model": {BaseURL: backendURL, Model: "test-model-raw"},
	})

	queueClient := queue.NewClient(jobs, docs, queue.NewInMemory(), 2*time.Second)

	srv, err := NewServer(mgr, modelRouter, queueClient, sessions, docs)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &gatewayEnv{server: srv, ts: ts, manager: mgr}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestHandleModels(t *testing.T) {
	env := newTestGateway(t, "http://unused.invalid")

	resp, err := http.Get(env.ts.URL + "/v1/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list ModelListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "test-model", list.Data[0].ID)
}

func TestChatUnknownModel(t *testing.T) {
	env := newTestGateway(t, "http://unused.invalid")

	resp := postJSON(t, env.ts.URL+"/v1/chat/completions", ChatCompletionRequest{
		Model: "no-such-model",
		Messages: []ChatMessage{
			{Role: core.RoleUser, Content: "hello"},
		},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatCompletion(t *testing.T) {
	backend := fakeBackend(t, "hello from the backend")
	defer backend.Close()
	env := newTestGateway(t, backend.URL)

	resp := postJSON(t, env.ts.URL+"/v1/chat/completions", ChatCompletionRequest{
		Model:     "test-model",
		SessionID: "sess-chat",
		Workspace: "chat-ws",
		Messages: []ChatMessage{
			{Role: core.RoleSystem, Content: "be brief"},
			{Role: core.RoleUser, Content: "say hello"},
		},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sess-chat", resp.Header.Get("X-Session-Id"))

	var body ChatCompletionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Choices, 1)
	assert.Equal(t, "hello from the backend", body.Choices[0].Message.Content)
	assert.Equal(t, core.RoleAssistant, body.Choices[0].Message.Role)

	// Both the user turn and the assistant reply landed in the working tier.
	memCtx, err := env.manager.RetrieveContext(context.Background(), "chat-ws", "sess-chat", "")
	require.NoError(t, err)
	require.Len(t, memCtx.RecentTurns, 2)
	assert.Equal(t, core.RoleUser, memCtx.RecentTurns[0].Role)
	assert.Equal(t, core.RoleAssistant, memCtx.RecentTurns[1].Role)
	assert.Equal(t, "hello from the backend", memCtx.RecentTurns[1].Content)
}

func TestChatGeneratesSessionID(t *testing.T) {
	backend := fakeBackend(t, "ok")
	defer backend.Close()
	env := newTestGateway(t, backend.URL)

	resp := postJSON(t, env.ts.URL+"/v1/chat/completions", ChatCompletionRequest{
		Model: "test-model",
		Messages: []ChatMessage{
			{Role: core.RoleUser, Content: "hi"},
		},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Session-Id"))
}

func TestChatStreaming(t *testing.T) {
	backend := fakeBackend(t, "streamed reply here")
	defer backend.Close()
	env := newTestGateway(t, backend.URL)

	resp := postJSON(t, env.ts.URL+"/v1/chat/completions", ChatCompletionRequest{
		Model:     "test-model",
		SessionID: "sess-stream",
		Stream:    true,
		Messages: []ChatMessage{
			{Role: core.RoleUser, Content: "stream it"},
		},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var sawRole, sawDone bool
	var collected strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawDone = true
			break
		}
		var chunk ChatCompletionChunk
		require.NoError(t, json.Unmarshal([]byte(data), &chunk))
		require.Len(t, chunk.Choices, 1)
		if chunk.Choices[0].Delta.Role != "" {
			sawRole = true
		}
		collected.WriteString(chunk.Choices[0].Delta.Content)
	}

	assert.True(t, sawRole, "expected an opening role chunk")
	assert.True(t, sawDone, "expected the [DONE] sentinel")
	assert.Equal(t, "streamed reply here", collected.String())
}

func multipartUpload(t *testing.T, url, workspace, fileName string, payload []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if workspace != "" {
		req.Header.Set("X-Workspace", workspace)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestIngestDocumentAndLifecycle(t *testing.T) {
	env := newTestGateway(t, "http://unused.invalid")
	payload := []byte("design notes: the cache is costed by byte size")

	resp := multipartUpload(t, env.ts.URL+"/v1/documents/ingest", "ingest-ws", "notes.txt", payload)
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var ack IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.NotEmpty(t, ack.DocID)
	assert.NotEmpty(t, ack.JobID)
	assert.Equal(t, "notes.txt", ack.FileName)
	assert.Equal(t, "ingest-ws", ack.Workspace)
	assert.Equal(t, int64(len(payload)), ack.OriginalSize)
	assert.Greater(t, ack.CompressedSize, 0)
	assert.Equal(t, string(core.JobQueued), ack.Status)

	// The job is visible immediately.
	jobResp, err := http.Get(env.ts.URL + "/v1/jobs/" + ack.JobID)
	require.NoError(t, err)
	defer jobResp.Body.Close()
	require.Equal(t, http.StatusOK, jobResp.StatusCode)
	var job JobStatusResponse
	require.NoError(t, json.NewDecoder(jobResp.Body).Decode(&job))
	assert.Equal(t, core.JobQueued, job.Status)
	assert.Equal(t, core.JobKindDocument, job.Kind)

	// Listing by workspace finds it.
	listResp, err := http.Get(env.ts.URL + "/v1/jobs?workspace=ingest-ws")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var listing struct {
		Jobs  []JobStatusResponse `json:"jobs"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listing))
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, ack.JobID, listing.Jobs[0].JobID)

	// The download returns the original payload.
	dlResp, err := http.Get(env.ts.URL + "/v1/documents/" + ack.DocID + "/download")
	require.NoError(t, err)
	defer dlResp.Body.Close()
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	got, err := io.ReadAll(dlResp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Contains(t, dlResp.Header.Get("Content-Disposition"), "notes.txt")
}

func TestIngestCodebaseDefaultsWorkspace(t *testing.T) {
	env := newTestGateway(t, "http://unused.invalid")

	resp := multipartUpload(t, env.ts.URL+"/v1/codebase/ingest", "", "repo.zip", []byte("not a real zip"))
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var ack IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, DefaultWorkspace, ack.Workspace)
}

func TestIngestMissingFile(t *testing.T) {
	env := newTestGateway(t, "http://unused.invalid")

	resp, err := http.Post(env.ts.URL+"/v1/documents/ingest", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobStatusNotFound(t *testing.T) {
	env := newTestGateway(t, "http://unused.invalid")

	resp, err := http.Get(env.ts.URL + "/v1/jobs/missing-job")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadNotFound(t *testing.T) {
	env := newTestGateway(t, "http://unused.invalid")

	resp, err := http.Get(env.ts.URL + "/v1/documents/missing-doc/download")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionList(t *testing.T) {
	backend := fakeBackend(t, "noted")
	defer backend.Close()
	env := newTestGateway(t, backend.URL)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, env.ts.URL+"/v1/chat/completions", ChatCompletionRequest{
			Model:     "test-model",
			SessionID: fmt.Sprintf("sess-%d", i),
			Workspace: "list-ws",
			Messages: []ChatMessage{
				{Role: core.RoleUser, Content: "ping"},
			},
		})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(env.ts.URL + "/v1/sessions?workspace=list-ws")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.Len(t, listing.Sessions, 2)
	for _, sess := range listing.Sessions {
		assert.Equal(t, "list-ws", sess.Workspace)
		assert.Equal(t, 2, sess.TurnCount)
	}
}
