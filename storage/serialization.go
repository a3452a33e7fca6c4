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


package storage

import (
	"encoding/json"
	"fmt"

	"github.com/strataml/strata/core"
)

// Rows are serialized as JSON. The stores hold low-volume, mutable audit
// rows (sessions, jobs, document metadata), so inspectability wins over
// codec compactness.

// MarshalSession serializes a Session to bytes.
func MarshalSession(session *core.Session) ([]byte, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalSession deserializes a Session from bytes.
func UnmarshalSession(data []byte) (*core.Session, error) {
	var session core.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &session, nil
}

// MarshalJob serializes an IngestJob to bytes.
func MarshalJob(job *core.IngestJob) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalJob deserializes an IngestJob from bytes.
func UnmarshalJob(data []byte) (*core.IngestJob, error) {
	var job core.IngestJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &job, nil
}

// documentRow carries the blob alongside the metadata; Document itself
// excludes Compressed from its JSON form so API responses never leak it.
type documentRow struct {
	Meta core.Document `json:"meta"`
	Blob []byte        `json:"blob"`
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) ([]byte, error) {
	row := documentRow{Meta: *doc, Blob: doc.Compressed}
	row.Meta.Compressed = nil
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	var row documentRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	doc := row.Meta
	doc.Compressed = row.Blob
	return &doc, nil
}
