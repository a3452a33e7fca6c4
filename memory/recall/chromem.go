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


package recall

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/strataml/strata/core"
)

// ChromemStore implements Store on chromem-go, an embedded pure-Go vector
// database. Each workspace gets its own collection for namespace isolation.
//
// Alongside the vector index it keeps a per-session hot index of summaries
// so promotion can enumerate a session's summaries without a similarity
// query. Pruning removes entries from the hot index only.
type ChromemStore struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	bySession   map[string][]core.Summary
	mu          sync.RWMutex
	logger      *slog.Logger
}

// NewChromemStore creates an in-memory recall store.
func NewChromemStore() (*ChromemStore, error) {
	return newStore(chromem.NewDB()), nil
}

// NewPersistentChromemStore creates a recall store persisted under path.
// The per-session hot index is rebuilt lazily as sessions promote; after a
// restart only the vector index survives, which is acceptable because the
// archival tier is the durable record.
func NewPersistentChromemStore(path string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open recall store: %w", err)
	}
	return newStore(db), nil
}

func newStore(db *chromem.DB) *ChromemStore {
	return &ChromemStore{
		db:          db,
		collections: make(map[string]*chromem.Collection),
		bySession:   make(map[string][]core.Summary),
		logger:      slog.Default().With("component", "recall-chromem"),
	}
}

// getOrCreateCollection returns the workspace's collection.
func (s *ChromemStore) getOrCreateCollection(workspace string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[workspace]
	s.mu.RUnlock()

	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[workspace]; exists {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection("ws_"+workspace, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	s.collections[workspace] = col
	return col, nil
}

func sessionKey(workspace, sessionID string) string {
	return workspace + "/" + sessionID
}

// SaveSummary stores a summary in the workspace's collection and records it
// in the per-session hot index.
func (s *ChromemStore) SaveSummary(ctx context.Context, summary core.Summary) error {
	if summary.Workspace == "" {
		return core.ErrMissingWorkspace
	}
	if summary.Content == "" {
		return core.ErrEmptyContent
	}

	col, err := s.getOrCreateCollection(summary.Workspace)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        summary.ID,
		Content:   summary.Content,
		Embedding: summary.Embedding,
		Metadata: map[string]string{
			"session_id": summary.SessionID,
			"from_turn":  strconv.Itoa(summary.FromTurn),
			"to_turn":    strconv.Itoa(summary.ToTurn),
			"created_at": summary.CreatedAt.Format(time.RFC3339),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to add summary: %w", err)
	}

	s.mu.Lock()
	key := sessionKey(summary.Workspace, summary.SessionID)
	s.bySession[key] = append(s.bySession[key], summary)
	s.mu.Unlock()

	s.logger.Debug("summary saved",
		"workspace", summary.Workspace,
		"session", summary.SessionID,
		"from", summary.FromTurn,
		"to", summary.ToTurn)
	return nil
}

// Search returns the workspace's summaries most similar to the embedding.
func (s *ChromemStore) Search(ctx context.Context, workspace string, embedding []float32, topK int, minScore float32) ([]core.ScoredSummary, error) {
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}
	if topK <= 0 {
		return nil, nil
	}

	col, err := s.getOrCreateCollection(workspace)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= collection size
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}

	scored := make([]core.ScoredSummary, 0, len(results))
	for _, result := range results {
		if result.Similarity < minScore {
			continue
		}
		scored = append(scored, core.ScoredSummary{
			Summary: resultToSummary(workspace, result),
			Score:   result.Similarity,
		})
	}
	return scored, nil
}

// ForSession returns the session's hot-index summaries with FromTurn >= fromTurn.
func (s *ChromemStore) ForSession(ctx context.Context, workspace, sessionID string, fromTurn int) ([]core.Summary, error) {
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Summary
	for _, sum := range s.bySession[sessionKey(workspace, sessionID)] {
		if sum.FromTurn >= fromTurn {
			out = append(out, sum)
		}
	}
	return out, nil
}

// Prune drops summaries with ToTurn <= uptoTurn from the hot index.
func (s *ChromemStore) Prune(ctx context.Context, workspace, sessionID string, uptoTurn int) error {
	if workspace == "" {
		return core.ErrMissingWorkspace
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(workspace, sessionID)
	kept := s.bySession[key][:0]
	for _, sum := range s.bySession[key] {
		if sum.ToTurn > uptoTurn {
			kept = append(kept, sum)
		}
	}
	s.bySession[key] = kept
	return nil
}

// Close releases resources. chromem keeps everything in memory or flushed
// to disk already, nothing to release.
func (s *ChromemStore) Close() error {
	return nil
}

func resultToSummary(workspace string, result chromem.Result) *core.Summary {
	fromTurn, _ := strconv.Atoi(result.Metadata["from_turn"])
	toTurn, _ := strconv.Atoi(result.Metadata["to_turn"])
	createdAt, _ := time.Parse(time.RFC3339, result.Metadata["created_at"])

	return &core.Summary{
		ID:        result.ID,
		SessionID: result.Metadata["session_id"],
		Workspace: workspace,
		FromTurn:  fromTurn,
		ToTurn:    toTurn,
		Content:   result.Content,
		Embedding: result.Embedding,
		CreatedAt: createdAt,
	}
}
