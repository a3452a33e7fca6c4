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


// Package memory implements the tiered conversation memory system.
//
// Memory is organized in three tiers with different durability and cost
// characteristics:
//
//   - Working tier (memory/working): recent raw turns in a fast expiring
//     store. Authoritative for recency, fatal when unavailable.
//   - Recall tier (memory/recall): conversation summaries with vector
//     embeddings for similarity search. Degrades gracefully.
//   - Archival tier (memory/archival): long-term knowledge held by an
//     external graph-retrieval service. Queried conditionally, degrades
//     gracefully.
//
// The Manager owns per-session state and coordinates the tiers: it appends
// turns, retrieves merged context for a query, and promotes context upward
// when turn thresholds are crossed. Promotion runs off the request path and
// is serialized per session.
package memory
