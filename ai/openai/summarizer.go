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


package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/strataml/strata/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Summarizer implements ai.Summarizer using OpenAI-compatible chat APIs.
type Summarizer struct {
	client             llms.Model
	maxTranscriptChars int
	logger             *slog.Logger
}

// newSummarizer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newSummarizer(config *ai.Config) (*Summarizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.SummarizerHost),
		openai.WithToken("none"),
		openai.WithModel(config.SummarizerModel),
	)
	if err != nil {
		return nil, err
	}

	return &Summarizer{
		client:             client,
		maxTranscriptChars: config.MaxTranscriptChars,
		logger:             slog.Default().With("component", "openai-summarizer"),
	}, nil
}

// NewSummarizer creates a new summarizer using the provided configuration.
//
// Returns ai.Summarizer interface to enforce abstraction.
func NewSummarizer(config *ai.Config) (ai.Summarizer, error) {
	return newSummarizer(config)
}

// Summarize produces a concise third-person summary of the transcript.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", nil
	}

	if len(transcript) > s.maxTranscriptChars {
		transcript = transcript[:s.maxTranscriptChars] + "\n... (truncated)"
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSummaryPrompt(transcript)),
			},
		},
	}

	response, err := s.client.GenerateContent(ctx, content,
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(1024),
	)
	if err != nil {
		s.logger.Error("failed to generate summary", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		s.logger.Debug("no choices returned from summarizer model")
		return "", nil
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
