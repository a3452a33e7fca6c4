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

import "errors"

// Domain validation errors
var (
	// ErrMissingWorkspace indicates a tier operation was attempted without
	// an explicit workspace scope. The scope is never inferred.
	ErrMissingWorkspace = errors.New("workspace scope required")

	// ErrInvalidTurn indicates a Turn failed validation.
	ErrInvalidTurn = errors.New("invalid turn")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an unrecognized turn role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrInvalidJobKind indicates an unrecognized ingestion job kind.
	ErrInvalidJobKind = errors.New("invalid job kind")

	// ErrInvalidTransition indicates a job status change that would move
	// backward or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid job status transition")
)
