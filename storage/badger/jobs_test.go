package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/storage"
)

func newQueuedJob(id string) *core.IngestJob {
	return &core.IngestJob{
		ID:        id,
		DocID:     "doc-" + id,
		Workspace: "default",
		Kind:      core.JobKindDocument,
		Status:    core.JobQueued,
	}
}

func TestJobLifecycle(t *testing.T) {
	_, jobs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { jobs.Close(); backend.Close() }()

	ctx := context.Background()

	if err := jobs.CreateJob(ctx, newQueuedJob("j1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	started, err := jobs.MarkStarted(ctx, "j1", 0)
	if err != nil {
		t.Fatalf("Failed to mark started: %v", err)
	}
	if started.Status != core.JobStarted || started.Attempts != 1 {
		t.Fatalf("Expected started/1, got %s/%d", started.Status, started.Attempts)
	}
	if started.StartedAt == nil {
		t.Fatal("Expected StartedAt to be set")
	}

	if err := jobs.MarkCompleted(ctx, "j1", map[string]any{"documents_sent": 3}); err != nil {
		t.Fatalf("Failed to mark completed: %v", err)
	}

	job, err := jobs.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if job.Status != core.JobCompleted {
		t.Fatalf("Expected completed, got %s", job.Status)
	}
	if job.CompletedAt == nil {
		t.Fatal("Expected CompletedAt to be set")
	}
}

func TestJobTerminalStateFrozen(t *testing.T) {
	_, jobs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { jobs.Close(); backend.Close() }()

	ctx := context.Background()
	if err := jobs.CreateJob(ctx, newQueuedJob("j1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if _, err := jobs.MarkStarted(ctx, "j1", 0); err != nil {
		t.Fatalf("Failed to mark started: %v", err)
	}
	if err := jobs.MarkCompleted(ctx, "j1", nil); err != nil {
		t.Fatalf("Failed to mark completed: %v", err)
	}

	before, _ := jobs.GetJob(ctx, "j1")

	// Every transition on a terminal row must fail and leave it untouched.
	if _, err := jobs.MarkStarted(ctx, "j1", 1); !errors.Is(err, storage.ErrTerminalState) {
		t.Fatalf("Expected ErrTerminalState, got %v", err)
	}
	if err := jobs.MarkFailed(ctx, "j1", "boom"); !errors.Is(err, storage.ErrTerminalState) {
		t.Fatalf("Expected ErrTerminalState, got %v", err)
	}

	after, _ := jobs.GetJob(ctx, "j1")
	if after.Status != before.Status || after.Attempts != before.Attempts {
		t.Fatal("Terminal job row was mutated")
	}
	if !after.CompletedAt.Equal(*before.CompletedAt) {
		t.Fatal("Terminal job timestamp was mutated")
	}
}

func TestJobMarkStartedCompareAndSet(t *testing.T) {
	_, jobs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { jobs.Close(); backend.Close() }()

	ctx := context.Background()
	if err := jobs.CreateJob(ctx, newQueuedJob("j1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	// First claim wins.
	if _, err := jobs.MarkStarted(ctx, "j1", 0); err != nil {
		t.Fatalf("Failed to mark started: %v", err)
	}

	// Second claim with the stale attempt count loses.
	if _, err := jobs.MarkStarted(ctx, "j1", 0); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	// A redelivery that observed the new attempt count may re-claim.
	reclaimed, err := jobs.MarkStarted(ctx, "j1", 1)
	if err != nil {
		t.Fatalf("Failed to re-claim: %v", err)
	}
	if reclaimed.Attempts != 2 {
		t.Fatalf("Expected 2 attempts, got %d", reclaimed.Attempts)
	}
}

func TestJobListByStatusAndWorkspace(t *testing.T) {
	_, jobs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { jobs.Close(); backend.Close() }()

	ctx := context.Background()
	for _, id := range []string{"j1", "j2", "j3"} {
		if err := jobs.CreateJob(ctx, newQueuedJob(id)); err != nil {
			t.Fatalf("Failed to create job: %v", err)
		}
	}
	if _, err := jobs.MarkStarted(ctx, "j2", 0); err != nil {
		t.Fatalf("Failed to mark started: %v", err)
	}

	queued, err := jobs.ListJobs(ctx, storage.JobQuery{Status: core.JobQueued, Limit: 10})
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("Expected 2 queued jobs, got %d", len(queued))
	}

	other, err := jobs.ListJobs(ctx, storage.JobQuery{Workspace: "nope", Limit: 10})
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("Expected 0 jobs for unknown workspace, got %d", len(other))
	}
}

func TestListStaleQueued(t *testing.T) {
	_, jobs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { jobs.Close(); backend.Close() }()

	ctx := context.Background()

	old := newQueuedJob("old")
	old.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	if err := jobs.CreateJob(ctx, old); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	fresh := newQueuedJob("fresh")
	if err := jobs.CreateJob(ctx, fresh); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	// A started job created long ago must not show up.
	stale := newQueuedJob("started")
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	if err := jobs.CreateJob(ctx, stale); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if _, err := jobs.MarkStarted(ctx, "started", 0); err != nil {
		t.Fatalf("Failed to mark started: %v", err)
	}

	results, err := jobs.ListStaleQueued(ctx, time.Now().UTC().Add(-10*time.Minute), 10)
	if err != nil {
		t.Fatalf("Failed to list stale queued: %v", err)
	}
	if len(results) != 1 || results[0].ID != "old" {
		t.Fatalf("Expected only the old queued job, got %d results", len(results))
	}
}

func TestCreateJobDuplicate(t *testing.T) {
	_, jobs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { jobs.Close(); backend.Close() }()

	ctx := context.Background()
	if err := jobs.CreateJob(ctx, newQueuedJob("j1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if err := jobs.CreateJob(ctx, newQueuedJob("j1")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
}
