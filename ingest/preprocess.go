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


package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/strataml/strata/core"
)

// PreprocessedDoc is one structured document produced by the preprocessing
// service, ready for archival-tier ingestion.
type PreprocessedDoc struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// PreprocessResult is the preprocessing service's response for one batch.
type PreprocessResult struct {
	Documents []PreprocessedDoc `json:"documents"`
	Errors    []string          `json:"errors"`
}

// Preprocessor calls the external preprocessing service that turns raw
// files into structured text for the archival tier.
//
// Failure classification: network errors and 5xx responses are transient
// (retried via queue redelivery); 4xx responses mean the content itself is
// unprocessable and the job fails terminally.
type Preprocessor struct {
	url  string
	http *http.Client
}

// NewPreprocessor creates a client for the service at baseURL.
func NewPreprocessor(baseURL string, timeout time.Duration) *Preprocessor {
	return &Preprocessor{
		url:  strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Ingest submits a batch of files for preprocessing.
func (p *Preprocessor) Ingest(ctx context.Context, workspace string, files []ArchiveFile) (*PreprocessResult, error) {
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Path)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/ingest", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Workspace", workspace)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("preprocessing request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, Transient(fmt.Errorf("preprocessing service returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("preprocessing rejected content: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result PreprocessResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("undecodable preprocessing response: %w", err)
	}
	return &result, nil
}
