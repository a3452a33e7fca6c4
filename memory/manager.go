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


package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/strataml/strata/ai"
	"github.com/strataml/strata/core"
	"github.com/strataml/strata/memory/archival"
	"github.com/strataml/strata/memory/recall"
	"github.com/strataml/strata/memory/working"
	"github.com/strataml/strata/storage"
)

// Context is the merged memory retrieved for one request.
type Context struct {
	// RecentTurns from the working tier, oldest first.
	RecentTurns []core.Turn

	// Summaries from the recall tier, best match first.
	Summaries []core.ScoredSummary

	// Archival records, present only when the fan-out policy fired.
	Archival []core.MemoryRecord

	// Degraded lists tiers that were consulted but unavailable. A
	// non-empty list means the response is partially contextualized.
	Degraded []string
}

// Manager coordinates the three memory tiers for all sessions.
//
// Working-tier failures are fatal for a request. Recall and archival
// failures degrade: the manager proceeds with whatever context it has and
// records the down tier in Context.Degraded. Promotion runs off the
// request path on a worker pool and is serialized per session.
type Manager struct {
	sessions storage.SessionRepository
	working  working.Store
	recall   recall.Store
	archival archival.Client
	provider ai.Provider
	policy   Policy

	promoteAfter   int
	archivalAfter  int
	recentLimit    int
	recallTopK     int
	recallMinScore float32
	archivalCaps   archival.Caps
	promoteTimeout time.Duration

	pool   *ants.Pool
	flight singleflight.Group
	logger *slog.Logger
	closed atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager) error

// WithPolicy sets the archival fan-out policy.
func WithPolicy(p Policy) Option {
	return func(m *Manager) error {
		m.policy = p
		return nil
	}
}

// WithPromoteAfterTurns sets the working-to-recall promotion threshold.
func WithPromoteAfterTurns(n int) Option {
	return func(m *Manager) error {
		if n < 1 {
			return fmt.Errorf("promote threshold must be positive, got %d", n)
		}
		m.promoteAfter = n
		return nil
	}
}

// WithArchivalAfterTurns sets the recall-to-archival promotion threshold.
func WithArchivalAfterTurns(n int) Option {
	return func(m *Manager) error {
		if n < 1 {
			return fmt.Errorf("archival threshold must be positive, got %d", n)
		}
		m.archivalAfter = n
		return nil
	}
}

// WithRecentLimit sets how many working-tier turns retrieval returns.
func WithRecentLimit(n int) Option {
	return func(m *Manager) error {
		m.recentLimit = n
		return nil
	}
}

// WithRecallTopK sets how many recall summaries retrieval requests.
func WithRecallTopK(n int) Option {
	return func(m *Manager) error {
		m.recallTopK = n
		return nil
	}
}

// WithRecallMinScore sets the similarity floor for recall hits.
func WithRecallMinScore(score float32) Option {
	return func(m *Manager) error {
		m.recallMinScore = score
		return nil
	}
}

// WithArchivalCaps bounds how much graph data becomes prompt context.
func WithArchivalCaps(caps archival.Caps) Option {
	return func(m *Manager) error {
		m.archivalCaps = caps
		return nil
	}
}

// WithPromotionWorkers sets the size of the background promotion pool.
func WithPromotionWorkers(n int) Option {
	return func(m *Manager) error {
		if n < 1 {
			return fmt.Errorf("promotion workers must be positive, got %d", n)
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		if m.pool != nil {
			m.pool.Release()
		}
		m.pool = pool
		return nil
	}
}

// WithPromoteTimeout bounds a single background promotion run.
func WithPromoteTimeout(d time.Duration) Option {
	return func(m *Manager) error {
		m.promoteTimeout = d
		return nil
	}
}

// NewManager creates a memory manager over the given tiers and AI provider.
func NewManager(
	sessions storage.SessionRepository,
	workingStore working.Store,
	recallStore recall.Store,
	archivalClient archival.Client,
	provider ai.Provider,
	opts ...Option,
) (*Manager, error) {
	m := &Manager{
		sessions:       sessions,
		working:        workingStore,
		recall:         recallStore,
		archival:       archivalClient,
		provider:       provider,
		policy:         DefaultPolicy(),
		promoteAfter:   10,
		archivalAfter:  20,
		recentLimit:    20,
		recallTopK:     3,
		recallMinScore: 0.3,
		archivalCaps:   archival.DefaultCaps(),
		promoteTimeout: 2 * time.Minute,
		logger:         slog.Default().With("component", "memory-manager"),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.pool == nil {
		pool, err := ants.NewPool(4)
		if err != nil {
			return nil, err
		}
		m.pool = pool
	}
	return m, nil
}

// AppendTurn records a turn in the session and the working tier. The turn
// receives the next sequence number from the session's gapless counter.
// Returns the updated session.
func (m *Manager) AppendTurn(ctx context.Context, workspace, sessionID, model string, role core.Role, content string) (*core.Session, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	if err := core.ValidateRole(role); err != nil {
		return nil, err
	}

	if _, err := m.sessions.EnsureSession(ctx, sessionID, workspace, model); err != nil {
		return nil, fmt.Errorf("failed to ensure session: %w", err)
	}
	sess, err := m.sessions.AdvanceTurns(ctx, sessionID, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to advance turn counter: %w", err)
	}

	turn := core.Turn{
		Seq:       sess.TurnCount,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := m.working.Append(ctx, workspace, sessionID, turn); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkingUnavailable, err)
	}
	return sess, nil
}

// RetrieveContext gathers memory for a query. The working tier is always
// read and its failure is fatal. The recall tier is searched by similarity;
// the archival tier is queried only when the policy fires. Recall and
// archival failures are recorded in Degraded, never returned as errors.
func (m *Manager) RetrieveContext(ctx context.Context, workspace, sessionID, query string) (*Context, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	recent, err := m.working.Recent(ctx, workspace, sessionID, m.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkingUnavailable, err)
	}

	memCtx := &Context{RecentTurns: recent}

	// When the query itself hints at long-term knowledge the archival
	// query runs in parallel with recall. Otherwise archival waits on
	// recall confidence.
	keywordHint := m.policy.KeywordHint(query)

	g := new(errgroup.Group)
	var summaries []core.ScoredSummary
	var recallErr error
	var hinted []core.MemoryRecord
	var hintedErr error

	g.Go(func() error {
		summaries, recallErr = m.searchRecall(ctx, workspace, query)
		return nil
	})
	if keywordHint {
		g.Go(func() error {
			hinted, hintedErr = m.queryArchival(ctx, workspace, query)
			return nil
		})
	}
	// Tier errors degrade, they never fail the group; Wait only joins.
	_ = g.Wait()

	if recallErr != nil {
		memCtx.Degraded = append(memCtx.Degraded, "recall")
	}
	memCtx.Summaries = summaries
	memCtx.Archival = hinted

	archivalQueried := keywordHint
	archivalErr := hintedErr

	best := float32(0)
	for _, s := range summaries {
		if s.Score > best {
			best = s.Score
		}
	}

	// Recall failure counts as no hit, which pushes the policy toward
	// consulting archival.
	if !keywordHint && m.policy.ShouldQueryArchival(best, len(summaries) > 0, query) {
		archivalQueried = true
		memCtx.Archival, archivalErr = m.queryArchival(ctx, workspace, query)
	}
	if archivalQueried && archivalErr != nil {
		memCtx.Degraded = append(memCtx.Degraded, "archival")
	}

	return memCtx, nil
}

// searchRecall embeds the query and searches the recall tier. The caller
// treats any error as tier degradation.
func (m *Manager) searchRecall(ctx context.Context, workspace, query string) ([]core.ScoredSummary, error) {
	vec, err := m.provider.Embedder().EmbedText(ctx, query)
	if err != nil {
		m.logger.Warn("recall tier degraded: embedding failed", "err", err)
		return nil, err
	}
	summaries, err := m.recall.Search(ctx, workspace, vec, m.recallTopK, m.recallMinScore)
	if err != nil {
		m.logger.Warn("recall tier degraded", "err", err)
		return nil, err
	}
	return summaries, nil
}

func (m *Manager) queryArchival(ctx context.Context, workspace, query string) ([]core.MemoryRecord, error) {
	data, err := m.archival.Query(ctx, workspace, query)
	if err != nil {
		m.logger.Warn("archival tier degraded", "err", err)
		return nil, err
	}
	return archival.Records(data, m.archivalCaps), nil
}

// MaybePromote checks the session's promotion thresholds and performs any
// due promotions. Safe to call repeatedly: promotion recomputes from the
// last-promoted marker forward, and concurrent calls for the same session
// collapse into one run.
func (m *Manager) MaybePromote(ctx context.Context, workspace, sessionID string) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	if workspace == "" {
		return core.ErrMissingWorkspace
	}
	if sessionID == "" {
		return ErrSessionRequired
	}

	_, err, _ := m.flight.Do(sessionID, func() (any, error) {
		return nil, m.promote(ctx, workspace, sessionID)
	})
	return err
}

// PromoteAsync schedules MaybePromote on the background pool. Failures are
// logged, not surfaced; the next turn's promotion check retries.
func (m *Manager) PromoteAsync(workspace, sessionID string) {
	if m.closed.Load() {
		return
	}
	err := m.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.promoteTimeout)
		defer cancel()
		if err := m.MaybePromote(ctx, workspace, sessionID); err != nil {
			m.logger.Error("background promotion failed",
				"workspace", workspace,
				"session", sessionID,
				"err", err)
		}
	})
	if err != nil {
		m.logger.Error("failed to schedule promotion", "session", sessionID, "err", err)
	}
}

func (m *Manager) promote(ctx context.Context, workspace, sessionID string) error {
	sess, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if sess.TurnCount-sess.LastPromotedTurn >= m.promoteAfter {
		if err := m.promoteToRecall(ctx, sess); err != nil {
			return err
		}
		// Reload markers advanced by the recall promotion.
		sess, err = m.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to reload session: %w", err)
		}
	}

	if sess.LastPromotedTurn-sess.LastArchivedTurn >= m.archivalAfter {
		if err := m.promoteToArchival(ctx, sess); err != nil {
			return err
		}
	}
	return nil
}

// promoteToRecall summarizes the unpromoted turn range and stores the
// summary with its embedding in the recall tier.
func (m *Manager) promoteToRecall(ctx context.Context, sess *core.Session) error {
	fromTurn := sess.LastPromotedTurn + 1
	turns, err := m.working.Since(ctx, sess.Workspace, sess.ID, fromTurn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWorkingUnavailable, err)
	}
	if len(turns) == 0 {
		// Turns expired from the working tier before promotion ran.
		// Advance the marker so the gap is not retried forever.
		m.logger.Warn("no turns retained for promotion, skipping range",
			"session", sess.ID,
			"from", fromTurn,
			"to", sess.TurnCount)
		return m.sessions.MarkPromoted(ctx, sess.ID, sess.TurnCount)
	}

	toTurn := turns[len(turns)-1].Seq

	summaryText, err := m.provider.Summarizer().Summarize(ctx, Transcript(turns))
	if err != nil {
		return fmt.Errorf("summarization failed: %w", err)
	}
	if summaryText == "" {
		return m.sessions.MarkPromoted(ctx, sess.ID, toTurn)
	}

	embedding, err := m.provider.Embedder().EmbedText(ctx, summaryText)
	if err != nil {
		return fmt.Errorf("summary embedding failed: %w", err)
	}

	summary := core.Summary{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Workspace: sess.Workspace,
		FromTurn:  turns[0].Seq,
		ToTurn:    toTurn,
		Content:   summaryText,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.recall.SaveSummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	if err := m.sessions.MarkPromoted(ctx, sess.ID, toTurn); err != nil {
		return fmt.Errorf("failed to advance promotion marker: %w", err)
	}

	m.logger.Info("promoted turns to recall tier",
		"workspace", sess.Workspace,
		"session", sess.ID,
		"from", summary.FromTurn,
		"to", summary.ToTurn)
	return nil
}

// promoteToArchival forwards accumulated summaries to the archival tier
// and prunes them from the recall tier's hot index. The documents stay in
// the recall vector index; archival is the long-term record.
func (m *Manager) promoteToArchival(ctx context.Context, sess *core.Session) error {
	summaries, err := m.recall.ForSession(ctx, sess.Workspace, sess.ID, sess.LastArchivedTurn+1)
	if err != nil {
		return fmt.Errorf("failed to list summaries for archival: %w", err)
	}
	if len(summaries) == 0 {
		return m.sessions.MarkArchived(ctx, sess.ID, sess.LastPromotedTurn)
	}

	highest := sess.LastArchivedTurn
	for _, sum := range summaries {
		if err := m.archival.IngestText(ctx, sess.Workspace, sum.Content); err != nil {
			// Partial forwarding is fine: the marker only advances past
			// what was actually ingested, the rest retries next round.
			m.logger.Warn("archival forwarding stopped",
				"session", sess.ID,
				"at_turn", sum.FromTurn,
				"err", err)
			break
		}
		if sum.ToTurn > highest {
			highest = sum.ToTurn
		}
	}
	if highest == sess.LastArchivedTurn {
		return nil
	}

	if err := m.recall.Prune(ctx, sess.Workspace, sess.ID, highest); err != nil {
		m.logger.Warn("failed to prune recall hot index", "session", sess.ID, "err", err)
	}
	if err := m.sessions.MarkArchived(ctx, sess.ID, highest); err != nil {
		return fmt.Errorf("failed to advance archival marker: %w", err)
	}

	m.logger.Info("forwarded summaries to archival tier",
		"workspace", sess.Workspace,
		"session", sess.ID,
		"through_turn", highest)
	return nil
}

// Close stops the promotion pool. In-flight promotions finish.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.pool.Release()
	return nil
}

// Transcript renders turns as "role: content" lines for summarization.
func Transcript(turns []core.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteByte('\n')
	}
	return b.String()
}
