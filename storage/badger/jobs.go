package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/strataml/strata/core"
	"github.com/strataml/strata/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
//
// Job rows are indexed twice: by creation time for listings, and by
// (status, creation time) so the reconciliation sweep can scan stale
// queued jobs without touching terminal rows.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{backend: backend}
}

// Close releases repository resources.
func (r *JobRepository) Close() error {
	return nil
}

// CreateJob persists a new queued job.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.IngestJob) error {
	if err := core.ValidateJobKind(job.Kind); err != nil {
		return err
	}
	if job.Workspace == "" {
		return core.ErrMissingWorkspace
	}
	if job.Status == "" {
		job.Status = core.JobQueued
	}
	if job.Status != core.JobQueued {
		return fmt.Errorf("%w: new jobs must be queued, got %s", core.ErrInvalidTransition, job.Status)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		value, err := storage.MarshalJob(job)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		if err := tx.Set(makeJobTimeKey(job.CreatedAt, job.ID), []byte(job.ID)); err != nil {
			return err
		}
		if err := tx.Set(makeJobStatusKey(string(job.Status), job.CreatedAt, job.ID), []byte(job.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return mapBadgerError(err)
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.IngestJob, error) {
	var result *core.IngestJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		job, err := readJob(tx, makeJobKey(id))
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		result = job
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListJobs returns jobs matching the query, most recent first.
func (r *JobRepository) ListJobs(ctx context.Context, q storage.JobQuery) ([]*core.IngestJob, error) {
	scanPrefix := []byte(jobTimePrefix + ":")
	if q.Status != "" {
		scanPrefix = makeJobStatusPrefix(string(q.Status))
	}

	var results []*core.IngestJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse scan: seek just past the prefix, then walk backward.
		seek := append(append([]byte{}, scanPrefix...), 0xff)
		for iter.Seek(seek); iter.ValidForPrefix(scanPrefix); iter.Next() {
			var id string
			if err := iter.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			job, err := readJob(tx, makeJobKey(id))
			if err != nil {
				return err
			}
			if job == nil {
				continue
			}
			if q.Workspace != "" && job.Workspace != q.Workspace {
				continue
			}
			results = append(results, job)
			if q.Limit > 0 && len(results) >= q.Limit {
				return nil
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// MarkStarted claims a job with a compare-and-set on the attempt count.
func (r *JobRepository) MarkStarted(ctx context.Context, id string, expectAttempts int) (*core.IngestJob, error) {
	var result *core.IngestJob
	err := r.transition(id, func(job *core.IngestJob) error {
		if job.Attempts != expectAttempts {
			return storage.ErrConflict
		}
		if !core.CanTransition(job.Status, core.JobStarted) {
			return fmt.Errorf("%w: %s -> started", core.ErrInvalidTransition, job.Status)
		}
		now := time.Now().UTC()
		job.Status = core.JobStarted
		job.Attempts++
		job.StartedAt = &now
		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkCompleted transitions a started job to completed.
func (r *JobRepository) MarkCompleted(ctx context.Context, id string, resultData map[string]any) error {
	return r.transition(id, func(job *core.IngestJob) error {
		if !core.CanTransition(job.Status, core.JobCompleted) {
			return fmt.Errorf("%w: %s -> completed", core.ErrInvalidTransition, job.Status)
		}
		now := time.Now().UTC()
		job.Status = core.JobCompleted
		job.Result = resultData
		job.CompletedAt = &now
		return nil
	})
}

// MarkFailed transitions a job to failed, recording the reason verbatim.
func (r *JobRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.transition(id, func(job *core.IngestJob) error {
		if !core.CanTransition(job.Status, core.JobFailed) {
			return fmt.Errorf("%w: %s -> failed", core.ErrInvalidTransition, job.Status)
		}
		now := time.Now().UTC()
		job.Status = core.JobFailed
		job.Error = reason
		job.CompletedAt = &now
		return nil
	})
}

// ListStaleQueued returns queued jobs created before the cutoff.
func (r *JobRepository) ListStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]*core.IngestJob, error) {
	prefix := makeJobStatusPrefix(string(core.JobQueued))
	cutoff := makeJobStatusCutoff(string(core.JobQueued), olderThan)

	var results []*core.IngestJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			// Index keys sort by creation time; stop at the cutoff.
			if string(iter.Item().Key()) >= string(cutoff) {
				break
			}

			var id string
			if err := iter.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			job, err := readJob(tx, makeJobKey(id))
			if err != nil {
				return err
			}
			if job == nil || job.Status != core.JobQueued {
				continue
			}
			results = append(results, job)
			if limit > 0 && len(results) >= limit {
				return nil
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// transition applies a status change inside one transaction, refusing to
// touch terminal rows and keeping the status index in step.
func (r *JobRepository) transition(id string, mutate func(*core.IngestJob) error) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(id)
		job, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		if job.Status.Terminal() {
			return storage.ErrTerminalState
		}

		oldStatus := job.Status
		if err := mutate(job); err != nil {
			return err
		}

		value, err := storage.MarshalJob(job)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}

		if job.Status != oldStatus {
			if err := tx.Delete(makeJobStatusKey(string(oldStatus), job.CreatedAt, job.ID)); err != nil {
				return err
			}
			if err := tx.Set(makeJobStatusKey(string(job.Status), job.CreatedAt, job.ID), []byte(job.ID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return mapBadgerError(err)
}

// readJob reads a job row, returning nil when the key is absent.
func readJob(tx *badger.Txn, key []byte) (*core.IngestJob, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job *core.IngestJob
	err = item.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}
