package working

import (
	"context"
	"sync"
	"time"

	"github.com/strataml/strata/core"
)

// MemoryStore is an in-process Store used by tests and single-node setups.
// It mirrors the Redis store's semantics including idle expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	ttl      time.Duration
}

type memorySession struct {
	turns   []core.Turn
	touched time.Time
}

// NewMemoryStore creates an in-process working-tier store.
//
// Returns Store interface for consistency with production constructors.
func NewMemoryStore(ttl time.Duration) Store {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
	}
}

// Append adds a turn and refreshes the session's expiry.
func (s *MemoryStore) Append(ctx context.Context, workspace, sessionID string, turn core.Turn) error {
	if workspace == "" {
		return core.ErrMissingWorkspace
	}
	if err := core.ValidateTurn(&turn); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := turnKey(workspace, sessionID)
	sess := s.sessions[key]
	if sess == nil || s.expired(sess) {
		sess = &memorySession{}
		s.sessions[key] = sess
	}
	sess.turns = append(sess.turns, turn)
	sess.touched = time.Now()
	return nil
}

// Recent returns up to limit of the most recent turns, oldest first.
func (s *MemoryStore) Recent(ctx context.Context, workspace, sessionID string, limit int) ([]core.Turn, error) {
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess := s.sessions[turnKey(workspace, sessionID)]
	if sess == nil || s.expired(sess) {
		return nil, nil
	}
	start := len(sess.turns) - limit
	if start < 0 {
		start = 0
	}
	out := make([]core.Turn, len(sess.turns)-start)
	copy(out, sess.turns[start:])
	return out, nil
}

// Since returns all retained turns with Seq >= fromSeq.
func (s *MemoryStore) Since(ctx context.Context, workspace, sessionID string, fromSeq int) ([]core.Turn, error) {
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess := s.sessions[turnKey(workspace, sessionID)]
	if sess == nil || s.expired(sess) {
		return nil, nil
	}
	var out []core.Turn
	for _, t := range sess.turns {
		if t.Seq >= fromSeq {
			out = append(out, t)
		}
	}
	return out, nil
}

// Len returns the number of retained turns for the session.
func (s *MemoryStore) Len(ctx context.Context, workspace, sessionID string) (int64, error) {
	if workspace == "" {
		return 0, core.ErrMissingWorkspace
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess := s.sessions[turnKey(workspace, sessionID)]
	if sess == nil || s.expired(sess) {
		return 0, nil
	}
	return int64(len(sess.turns)), nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) expired(sess *memorySession) bool {
	return s.ttl > 0 && time.Since(sess.touched) > s.ttl
}
