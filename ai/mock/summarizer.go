package mock

import (
	"context"
	"fmt"
	"strings"
)

// MockSummarizer is a test double for ai.Summarizer.
// It allows custom behavior injection via function fields.
type MockSummarizer struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, uses default deterministic behavior.
	SummarizeFunc func(ctx context.Context, transcript string) (string, error)

	callCount int
}

// NewMockSummarizer creates a mock summarizer with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via GetMockSummarizer().
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize produces a deterministic summary derived from the transcript.
func (m *MockSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	m.callCount++

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, transcript)
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", nil
	}

	// Default: first line of the transcript prefixed so tests can
	// recognize mock output without parsing it.
	firstLine := transcript
	if idx := strings.IndexByte(transcript, '\n'); idx >= 0 {
		firstLine = transcript[:idx]
	}
	lines := strings.Count(transcript, "\n") + 1
	return fmt.Sprintf("Summary of %d lines: %s", lines, firstLine), nil
}

// CallCount returns the number of times Summarize was called.
func (m *MockSummarizer) CallCount() int {
	return m.callCount
}

// Reset clears the call count.
func (m *MockSummarizer) Reset() {
	m.callCount = 0
	m.SummarizeFunc = nil
}
