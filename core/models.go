package core

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Digest is a deterministic content fingerprint for uploaded payloads.
// Identical content always produces the same digest.
func Digest(data []byte) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, binary.LittleEndian.Uint64(sum))
	return hex.EncodeToString(buf)
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is a single message within a session. Turns are append-only and
// immutable once written; Seq is strictly increasing and gapless per session.
type Turn struct {
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session tracks per-conversation state across the memory tiers.
// Sessions are created on first turn and never deleted by the core;
// external retention policy may expire them.
type Session struct {
	ID        string    `json:"id"`
	Workspace string    `json:"workspace"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// TurnCount is the number of turns appended so far.
	TurnCount int `json:"turn_count"`

	// LastPromotedTurn marks the highest turn covered by a recall-tier
	// summary. Promotion recomputes from here forward, so retrying a
	// failed promotion is safe.
	LastPromotedTurn int `json:"last_promoted_turn"`

	// LastArchivedTurn marks the highest turn whose summaries have been
	// forwarded to the archival tier.
	LastArchivedTurn int `json:"last_archived_turn"`
}

// Summary condenses a contiguous, non-overlapping range of turns.
// Stored in the recall tier with an embedding for similarity search.
type Summary struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Workspace string    `json:"workspace"`
	FromTurn  int       `json:"from_turn"` // inclusive
	ToTurn    int       `json:"to_turn"`   // inclusive
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredSummary is a recall-tier search hit.
type ScoredSummary struct {
	Summary *Summary
	Score   float32
}

// MemoryRecord is a unit retrieved from the archival tier: opaque content
// plus a relevance score. Read-only from the orchestrator's perspective.
type MemoryRecord struct {
	Content string  `json:"content"`
	Score   float32 `json:"score"`
	Source  string  `json:"source"`
}

// JobKind partitions ingestion jobs by payload type.
type JobKind string

const (
	JobKindDocument JobKind = "document"
	JobKindCodebase JobKind = "codebase"
)

// JobStatus is the lifecycle state of an ingestion job.
// Transitions are monotonic: queued -> started -> {completed|failed}.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobStarted   JobStatus = "started"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is final. Terminal jobs are never
// reprocessed, even when the queue redelivers their message.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// IngestJob is the durable record of one ingestion request. Created by the
// queue client on submission, mutated only by the worker, never deleted.
// The row is the audit trail.
type IngestJob struct {
	ID          string            `json:"id"`
	DocID       string            `json:"doc_id"`
	Workspace   string            `json:"workspace"`
	Kind        JobKind           `json:"kind"`
	Status      JobStatus         `json:"status"`
	Attempts    int               `json:"attempts"`
	Error       string            `json:"error,omitempty"`
	Result      map[string]any    `json:"result,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Document is an uploaded payload (single file or codebase archive),
// stored gzip-compressed until the worker picks it up.
type Document struct {
	ID           string    `json:"id"`
	Workspace    string    `json:"workspace"`
	FileName     string    `json:"file_name"`
	ContentType  string    `json:"content_type"`
	Compressed   []byte    `json:"-"`
	OriginalSize int64     `json:"original_size"`
	Digest       string    `json:"digest"`
	Kind         JobKind   `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}
