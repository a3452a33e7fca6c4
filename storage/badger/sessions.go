package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/strataml/strata/core"
	"github.com/strataml/strata/storage"
)

// SessionRepository implements storage.SessionRepository for BadgerDB.
type SessionRepository struct {
	backend *Backend
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(backend *Backend) *SessionRepository {
	return &SessionRepository{backend: backend}
}

// Close releases repository resources.
func (r *SessionRepository) Close() error {
	return nil
}

// maxTxRetries bounds conflict retries for session row updates.
const maxTxRetries = 10

// withSessionTx runs a read-modify-write transaction on a session row,
// retrying on commit conflicts. Session updates are monotonic (counters
// and watermarks only move forward), so rerunning the closure against a
// fresh snapshot is safe.
func (r *SessionRepository) withSessionTx(fn func(tx *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = r.backend.WithTx(fn, true)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// EnsureSession creates the session if missing, otherwise refreshes UpdatedAt.
func (r *SessionRepository) EnsureSession(ctx context.Context, id, workspace, model string) (*core.Session, error) {
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}

	var result *core.Session
	err := r.withSessionTx(func(tx *badger.Txn) error {
		key := makeSessionKey(id)
		session, err := readSession(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if session == nil {
			session = &core.Session{
				ID:        id,
				Workspace: workspace,
				Model:     model,
				CreatedAt: now,
				UpdatedAt: now,
			}
		} else {
			session.UpdatedAt = now
		}

		value, err := storage.MarshalSession(session)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}

		result = session
		return tx.Commit()
	})

	if err != nil {
		return nil, mapBadgerError(err)
	}
	return result, nil
}

// GetSession retrieves a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var result *core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		session, err := readSession(tx, makeSessionKey(id))
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}
		result = session
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListSessions returns up to limit sessions, most recently updated first.
func (r *SessionRepository) ListSessions(ctx context.Context, workspace string, limit int) ([]*core.Session, error) {
	var results []*core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var session *core.Session
			err := iter.Item().Value(func(val []byte) error {
				var err error
				session, err = storage.UnmarshalSession(val)
				return err
			})
			if err != nil {
				return err
			}
			if workspace != "" && session.Workspace != workspace {
				continue
			}
			results = append(results, session)
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Session) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// AdvanceTurns atomically increments the turn counter by n. Concurrent
// increments on the same session serialize through conflict retries.
func (r *SessionRepository) AdvanceTurns(ctx context.Context, id string, n int) (*core.Session, error) {
	var result *core.Session
	err := r.withSessionTx(func(tx *badger.Txn) error {
		key := makeSessionKey(id)
		session, err := readSession(tx, key)
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}

		session.TurnCount += n
		session.UpdatedAt = time.Now().UTC()

		value, err := storage.MarshalSession(session)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}

		result = session
		return tx.Commit()
	})

	if err != nil {
		return nil, mapBadgerError(err)
	}
	return result, nil
}

// MarkPromoted advances LastPromotedTurn; lower values are no-ops.
func (r *SessionRepository) MarkPromoted(ctx context.Context, id string, throughTurn int) error {
	return r.updateMarker(id, func(session *core.Session) {
		if throughTurn > session.LastPromotedTurn {
			session.LastPromotedTurn = throughTurn
		}
	})
}

// MarkArchived advances LastArchivedTurn; lower values are no-ops.
func (r *SessionRepository) MarkArchived(ctx context.Context, id string, throughTurn int) error {
	return r.updateMarker(id, func(session *core.Session) {
		if throughTurn > session.LastArchivedTurn {
			session.LastArchivedTurn = throughTurn
		}
	})
}

func (r *SessionRepository) updateMarker(id string, update func(*core.Session)) error {
	err := r.withSessionTx(func(tx *badger.Txn) error {
		key := makeSessionKey(id)
		session, err := readSession(tx, key)
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}

		update(session)
		session.UpdatedAt = time.Now().UTC()

		value, err := storage.MarshalSession(session)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	})

	return mapBadgerError(err)
}

// readSession reads a session row, returning nil when the key is absent.
func readSession(tx *badger.Txn, key []byte) (*core.Session, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session *core.Session
	err = item.Value(func(val []byte) error {
		var err error
		session, err = storage.UnmarshalSession(val)
		return err
	})
	return session, err
}

// mapBadgerError converts BadgerDB commit conflicts to storage errors.
func mapBadgerError(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return storage.ErrConflict
	}
	return err
}
