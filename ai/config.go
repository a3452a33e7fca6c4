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


package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// SummarizerHost is the base URL for the summarization service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	SummarizerHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "qwen3-embedding:0.6b", "text-embedding-3-small"
	EmbeddingModel string

	// SummarizerModel is the model identifier to use for summarization.
	// Example: "qwen3:8b", "gpt-4o-mini"
	SummarizerModel string

	// MaxTranscriptChars caps the transcript length fed to the summarizer.
	// Longer transcripts are truncated with a marker. Default: 12000.
	MaxTranscriptChars int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithSummarizerHost sets the summarizer service host URL.
func WithSummarizerHost(host string) ConfigOption {
	return func(c *Config) {
		c.SummarizerHost = host
	}
}

// WithHost sets both embedding and summarizer hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.SummarizerHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithSummarizerModel sets the summarizer model identifier.
func WithSummarizerModel(model string) ConfigOption {
	return func(c *Config) {
		c.SummarizerModel = model
	}
}

// DefaultConfig returns a Config with sensible defaults for local
// OpenAI-compatible services. By default, both services use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:      defaultHost,
		SummarizerHost:     defaultHost,
		EmbeddingModel:     "qwen3-embedding:0.6b",
		SummarizerModel:    "qwen3:8b",
		MaxTranscriptChars: 12000,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434/v1"),
//	    ai.WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
	if c.SummarizerHost != "" && !strings.HasSuffix(c.SummarizerHost, "/v1") {
		c.SummarizerHost = strings.TrimSuffix(c.SummarizerHost, "/") + "/v1"
	}
	if c.MaxTranscriptChars <= 0 {
		c.MaxTranscriptChars = 12000
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.SummarizerHost == "" {
		return errors.New("ai config: SummarizerHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.SummarizerModel == "" {
		return errors.New("ai config: SummarizerModel is required")
	}
	return nil
}
