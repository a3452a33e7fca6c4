package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/strataml/strata/core"
	"github.com/strataml/strata/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close releases repository resources.
func (r *DocumentRepository) Close() error {
	return nil
}

// PutDocument persists a document blob.
func (r *DocumentRepository) PutDocument(ctx context.Context, doc *core.Document) error {
	if doc.Workspace == "" {
		return core.ErrMissingWorkspace
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		value, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}
		if err := tx.Set(makeDocumentKey(doc.ID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return mapBadgerError(err)
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			result, err = storage.UnmarshalDocument(val)
			return err
		})
	}, false)

	if err != nil {
		return nil, err
	}
	return result, nil
}
