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


package archival

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/strataml/strata/core"
)

// workspaceHeader is the tenant scoping header understood by the
// graph-retrieval service.
const workspaceHeader = "LIGHTRAG-WORKSPACE"

// HTTPClient implements Client against a LightRAG-compatible HTTP service.
type HTTPClient struct {
	baseURL    string
	mode       string
	http       *http.Client
	ingestHTTP *http.Client
	logger     *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithQueryTimeout sets the timeout for query calls.
func WithQueryTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithIngestTimeout sets the timeout for ingestion calls. Indexing large
// texts can take minutes on the service side, so this is much longer than
// the query timeout.
func WithIngestTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.ingestHTTP.Timeout = d }
}

// WithQueryMode sets the retrieval mode (e.g. "hybrid", "mix", "local").
func WithQueryMode(mode string) HTTPOption {
	return func(c *HTTPClient) { c.mode = mode }
}

// NewHTTPClient creates an archival client for the service at baseURL.
//
// Returns Client interface to enforce abstraction.
func NewHTTPClient(baseURL string, opts ...HTTPOption) Client {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		mode:       "hybrid",
		http:       &http.Client{Timeout: 15 * time.Second},
		ingestHTTP: &http.Client{Timeout: 5 * time.Minute},
		logger:     slog.Default().With("component", "archival-http"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query retrieves structured graph data relevant to the text.
func (c *HTTPClient) Query(ctx context.Context, workspace, text string) (*GraphData, error) {
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}

	body, err := json.Marshal(map[string]string{
		"query": text,
		"mode":  c.mode,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query/data", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(workspaceHeader, workspace)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archival query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archival query returned status %d", resp.StatusCode)
	}

	// The service wraps results in a "data" envelope on newer versions and
	// returns them bare on older ones. Accept both.
	var envelope struct {
		Data *GraphData `json:"data"`
		GraphData
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode archival response: %w", err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return &envelope.GraphData, nil
}

// IngestText submits raw text for indexing.
func (c *HTTPClient) IngestText(ctx context.Context, workspace, text string) error {
	if workspace == "" {
		return core.ErrMissingWorkspace
	}
	if strings.TrimSpace(text) == "" {
		return core.ErrEmptyContent
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/text", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(workspaceHeader, workspace)

	resp, err := c.ingestHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("archival ingestion failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("archival ingestion returned status %d", resp.StatusCode)
	}

	c.logger.Debug("text submitted to archival tier", "workspace", workspace, "length", len(text))
	return nil
}
