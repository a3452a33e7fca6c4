package recall

import (
	"context"

	"github.com/strataml/strata/core"
)

// Store is the recall-tier interface: conversation summaries with vector
// embeddings, searchable by similarity.
//
// Every operation carries an explicit workspace tag. An empty workspace is
// a caller error, never defaulted here.
type Store interface {
	// SaveSummary stores a summary and its embedding.
	SaveSummary(ctx context.Context, summary core.Summary) error

	// Search returns up to topK summaries in the workspace ranked by
	// similarity to the query embedding, filtered to score >= minScore.
	Search(ctx context.Context, workspace string, embedding []float32, topK int, minScore float32) ([]core.ScoredSummary, error)

	// ForSession returns the session's summaries with FromTurn >= fromTurn,
	// ordered by FromTurn. Used by recall-to-archival promotion.
	ForSession(ctx context.Context, workspace, sessionID string, fromTurn int) ([]core.Summary, error)

	// Prune drops summaries with ToTurn <= uptoTurn from the hot index.
	// The underlying documents are retained; the archival tier is the
	// long-term record.
	Prune(ctx context.Context, workspace, sessionID string, uptoTurn int) error

	// Close releases resources held by the store.
	Close() error
}
