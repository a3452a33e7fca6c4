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


package queue

import "errors"

var (
	// ErrPublishFailed indicates the queue rejected a publish. The job row
	// is already persisted as queued, so the caller may retry the submit
	// or rely on the reconciliation sweep.
	ErrPublishFailed = errors.New("queue publish failed")

	// ErrEmptyPayload indicates a submission with no content.
	ErrEmptyPayload = errors.New("payload is empty")
)
