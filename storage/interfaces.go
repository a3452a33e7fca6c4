package storage

import (
	"context"
	"time"

	"github.com/strataml/strata/core"
)

// SessionRepository persists conversation session state. Implementations
// must be thread-safe and support concurrent access.
type SessionRepository interface {
	// EnsureSession creates the session if it does not exist, or refreshes
	// its UpdatedAt timestamp if it does. Returns the current row.
	EnsureSession(ctx context.Context, id, workspace, model string) (*core.Session, error)

	// GetSession retrieves a session by ID.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id string) (*core.Session, error)

	// ListSessions returns up to limit sessions, most recently updated
	// first. An empty workspace returns sessions from all workspaces.
	ListSessions(ctx context.Context, workspace string, limit int) ([]*core.Session, error)

	// AdvanceTurns atomically increments the session's turn counter by n
	// and returns the updated row. Turn numbering stays gapless because
	// the increment and the read happen in one transaction.
	AdvanceTurns(ctx context.Context, id string, n int) (*core.Session, error)

	// MarkPromoted advances LastPromotedTurn. The marker never moves
	// backward; a lower value is a no-op.
	MarkPromoted(ctx context.Context, id string, throughTurn int) error

	// MarkArchived advances LastArchivedTurn. Same monotonicity rule.
	MarkArchived(ctx context.Context, id string, throughTurn int) error

	// Close releases repository resources.
	Close() error
}

// JobQuery filters job listings.
type JobQuery struct {
	Workspace string
	Status    core.JobStatus
	Limit     int
}

// JobRepository persists ingestion job state. Status rows are the audit
// trail: they are created once, advanced monotonically, and never deleted.
type JobRepository interface {
	// CreateJob persists a new job. The status must be queued.
	CreateJob(ctx context.Context, job *core.IngestJob) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.IngestJob, error)

	// ListJobs returns jobs matching the query, most recent first.
	ListJobs(ctx context.Context, q JobQuery) ([]*core.IngestJob, error)

	// MarkStarted claims a job for processing with a compare-and-set:
	// the transition succeeds only if the stored attempt count still
	// equals expectAttempts and the job is not terminal. On success the
	// attempt count is incremented and the updated row returned.
	// Returns ErrConflict if another worker advanced the job first,
	// ErrTerminalState if the job already finished.
	MarkStarted(ctx context.Context, id string, expectAttempts int) (*core.IngestJob, error)

	// MarkCompleted transitions a started job to completed.
	// Returns ErrTerminalState if the job already finished.
	MarkCompleted(ctx context.Context, id string, result map[string]any) error

	// MarkFailed transitions a job to failed with the captured reason.
	// Returns ErrTerminalState if the job already finished.
	MarkFailed(ctx context.Context, id string, reason string) error

	// ListStaleQueued returns queued jobs created before the cutoff, for
	// the reconciliation sweep. Reporting-grade, not correctness-critical.
	ListStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]*core.IngestJob, error)

	// Close releases repository resources.
	Close() error
}

// DocumentRepository stores uploaded payload blobs (gzip-compressed).
type DocumentRepository interface {
	// PutDocument persists a document blob.
	PutDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// Close releases repository resources.
	Close() error
}
