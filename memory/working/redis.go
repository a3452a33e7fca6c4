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


package working

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strataml/strata/core"
)

// RedisStore implements Store backed by Redis lists.
//
// Each session maps to one list under "wm:{workspace}:{sessionID}". Turns
// are appended with RPUSH so list order is arrival order, and every append
// refreshes the TTL so active sessions never expire mid-conversation.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore creates a working-tier store on the given Redis client.
// ttl controls how long an idle session's turns are retained.
//
// Returns Store interface to enforce abstraction.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "working-redis"),
	}
}

func turnKey(workspace, sessionID string) string {
	return fmt.Sprintf("wm:%s:%s", workspace, sessionID)
}

// Append adds a turn and refreshes the session TTL atomically.
func (s *RedisStore) Append(ctx context.Context, workspace, sessionID string, turn core.Turn) error {
	if workspace == "" {
		return core.ErrMissingWorkspace
	}
	if err := core.ValidateTurn(&turn); err != nil {
		return err
	}

	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode turn: %w", err)
	}

	key := turnKey(workspace, sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// Recent returns up to limit of the most recent turns, oldest first.
func (s *RedisStore) Recent(ctx context.Context, workspace, sessionID string, limit int) ([]core.Turn, error) {
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}
	if limit <= 0 {
		return nil, nil
	}

	key := turnKey(workspace, sessionID)
	raw, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent turns: %w", err)
	}
	return decodeTurns(raw, s.logger)
}

// Since returns all retained turns with Seq >= fromSeq.
func (s *RedisStore) Since(ctx context.Context, workspace, sessionID string, fromSeq int) ([]core.Turn, error) {
	if workspace == "" {
		return nil, core.ErrMissingWorkspace
	}

	key := turnKey(workspace, sessionID)
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}

	turns, err := decodeTurns(raw, s.logger)
	if err != nil {
		return nil, err
	}

	filtered := turns[:0]
	for _, t := range turns {
		if t.Seq >= fromSeq {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// Len returns the number of retained turns for the session.
func (s *RedisStore) Len(ctx context.Context, workspace, sessionID string) (int64, error) {
	if workspace == "" {
		return 0, core.ErrMissingWorkspace
	}
	n, err := s.client.LLen(ctx, turnKey(workspace, sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read turn count: %w", err)
	}
	return n, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeTurns(raw []string, logger *slog.Logger) ([]core.Turn, error) {
	turns := make([]core.Turn, 0, len(raw))
	for _, item := range raw {
		var t core.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			// A corrupt entry should not take the whole session down.
			logger.Warn("skipping undecodable turn", "err", err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}
