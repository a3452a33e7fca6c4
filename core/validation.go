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


package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ValidateTurn validates a Turn according to domain rules.
//
// Validation rules:
//   - Content must not be empty
//   - Role must be one of the known roles
//   - Timestamp must not be in the future
//
// NOT validated:
//   - Seq (assigned by the session memory manager on append)
func ValidateTurn(turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}

	if turn.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptyContent)
	}

	if err := ValidateRole(turn.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, err)
	}

	if !turn.Timestamp.IsZero() && turn.Timestamp.After(time.Now()) {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRole, role)
}

// ValidateJobKind validates that a JobKind has a known value.
func ValidateJobKind(kind JobKind) error {
	switch kind {
	case JobKindDocument, JobKindCodebase:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidJobKind, kind)
}

// CanTransition reports whether a job may move from one status to the next.
// Transitions are monotonic; terminal states are frozen. Repeated "started"
// is allowed because a redelivered message re-claims an in-flight job.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobQueued:
		return to == JobStarted
	case JobStarted:
		return to == JobStarted || to == JobCompleted || to == JobFailed
	}
	return false
}

var workspacePattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// NormalizeWorkspace sanitizes a workspace tag to a safe identifier,
// truncated to 64 characters. Returns "" for an effectively empty tag so
// callers can distinguish a missing scope.
func NormalizeWorkspace(name string) string {
	cleaned := workspacePattern.ReplaceAllString(strings.TrimSpace(name), "-")
	if len(cleaned) > 64 {
		cleaned = cleaned[:64]
	}
	return cleaned
}
