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


// Package storage provides the durable storage abstraction for strata.
//
// It defines repository interfaces that decouple the orchestrator and the
// ingest worker from the storage backend. Three repositories cover the
// durable state the core owns:
//
//   - SessionRepository: per-conversation counters and promotion markers
//   - JobRepository: ingestion job lifecycle with compare-and-set transitions
//   - DocumentRepository: uploaded payload blobs
//
// Public constructors return interfaces, never concrete backend types, so
// alternative backends and test doubles slot in without touching callers.
//
// # Job transitions
//
// Job rows move queued -> started -> {completed|failed} and never backward.
// MarkStarted is a compare-and-set on the attempt count: when two workers
// race on a redelivered message, exactly one claim succeeds and the loser
// receives ErrConflict. Terminal rows are frozen; any transition attempt
// returns ErrTerminalState.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
