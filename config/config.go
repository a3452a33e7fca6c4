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


// Package config holds the runtime settings for the orchestrator and the
// ingest worker. Every tunable the components consult lives here; nothing
// is hard-coded at the call sites.
package config

import "time"

// Settings is the full runtime configuration. Values are populated from
// CLI flags and environment variables in cmd/strata.
type Settings struct {
	// Listen address for the chat gateway.
	ListenAddr string

	// DBPath is the BadgerDB directory for sessions, jobs and documents.
	DBPath string

	// RedisAddr backs the working tier and the durable job queue.
	// Empty means in-process stores (single-node and test mode).
	RedisAddr string

	// RecallPath is the on-disk location for the recall tier's vector
	// store. Empty means in-memory only.
	RecallPath string

	// ArchivalURL is the base URL of the graph-retrieval service.
	ArchivalURL string

	// PreprocessorURL is the base URL of the preprocessing collaborator.
	PreprocessorURL string

	// EmbedHost / EmbedModel configure the embedding service
	// (OpenAI-compatible API).
	EmbedHost  string
	EmbedModel string

	// SummarizerHost / SummarizerModel configure the summarization service
	// (OpenAI-compatible API).
	SummarizerHost  string
	SummarizerModel string

	// Memory tier thresholds.
	PromoteAfterTurns  int           // working -> recall promotion threshold
	ArchivalAfterTurns int           // recall -> archival promotion threshold
	RecallTopK         int           // summaries fetched per recall query
	ArchivalTopK       int           // records fetched per archival query
	RecallMinScore     float32       // recall hits below this are dropped
	ArchivalThreshold  float32       // best recall score below this triggers archival fan-out
	RecentLimit        int           // working-tier turns included in retrieved context
	PromotionWorkers   int           // concurrent background promotions
	PromoteTimeout     time.Duration // budget for one background promotion
	SessionTTL         time.Duration // working tier expiry, refreshed on write

	// Ingestion pipeline bounds.
	MaxAttempts        int           // started-retries before terminal failure
	AckWait            time.Duration // redelivery lease on unacknowledged messages
	WorkerConcurrency  int           // concurrent jobs per worker process
	PreprocessBatch    int           // files per preprocessing request
	MaxArchiveFiles    int           // file-count ceiling per archive
	MaxArchiveFileSize int64         // byte-size ceiling per archive entry

	// External call timeouts. No call in the core blocks indefinitely.
	SummarizeTimeout     time.Duration
	EmbedTimeout         time.Duration
	ArchivalQueryTimeout time.Duration
	ArchivalWriteTimeout time.Duration
	PreprocessTimeout    time.Duration
	QueuePublishTimeout  time.Duration

	// ModelRoutes maps a requested model identifier to a backend pool.
	ModelRoutes map[string]ModelRoute
}

// ModelRoute names one backend pool entry.
type ModelRoute struct {
	BaseURL string // backend pool base URL
	Model   string // model identifier expected by the backend
}

// DefaultSettings returns the deployment defaults.
func DefaultSettings() *Settings {
	return &Settings{
		ListenAddr:      ":8080",
		DBPath:          "./strata-db",
		ArchivalURL:     "http://localhost:9621",
		PreprocessorURL: "http://localhost:8090",
		EmbedHost:       "http://localhost:11434/v1",
		EmbedModel:      "qwen3-embedding:0.6b",
		SummarizerHost:  "http://localhost:11434/v1",
		SummarizerModel: "qwen3:8b",

		PromoteAfterTurns:  10,
		ArchivalAfterTurns: 20,
		RecallTopK:         3,
		ArchivalTopK:       3,
		RecallMinScore:     0.3,
		ArchivalThreshold:  0.55,
		RecentLimit:        20,
		PromotionWorkers:   4,
		PromoteTimeout:     2 * time.Minute,
		SessionTTL:         2 * time.Hour,

		MaxAttempts:        3,
		AckWait:            10 * time.Minute,
		WorkerConcurrency:  4,
		PreprocessBatch:    20,
		MaxArchiveFiles:    2000,
		MaxArchiveFileSize: 1 << 20, // 1 MiB

		SummarizeTimeout:     120 * time.Second,
		EmbedTimeout:         60 * time.Second,
		ArchivalQueryTimeout: 15 * time.Second,
		ArchivalWriteTimeout: 300 * time.Second,
		PreprocessTimeout:    300 * time.Second,
		QueuePublishTimeout:  10 * time.Second,

		ModelRoutes: map[string]ModelRoute{
			"qwen3-coder":      {BaseURL: "http://localhost:8001", Model: "qwen3-coder-next:q4_K_M"},
			"qwen3-coder-next": {BaseURL: "http://localhost:8001", Model: "qwen3-coder-next:q4_K_M"},
			"deepseek-r1":      {BaseURL: "http://localhost:8002", Model: "deepseek-r1:32b"},
			"deepseek":         {BaseURL: "http://localhost:8002", Model: "deepseek-r1:32b"},
		},
	}
}
