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


package ingest

import "errors"

var (
	// ErrArchiveLimitExceeded indicates the archive breached the file
	// count or per-file size limit. Job-terminal: nothing from the
	// archive reaches the archival tier.
	ErrArchiveLimitExceeded = errors.New("archive limit exceeded")

	// ErrUnsupportedArchive indicates the payload is not a readable
	// archive of a supported format.
	ErrUnsupportedArchive = errors.New("unsupported or corrupt archive")

	// ErrNoExtractableFiles indicates the archive contained no files
	// worth indexing after the skip rules.
	ErrNoExtractableFiles = errors.New("no extractable files in archive")
)

// TransientError wraps failures worth retrying via queue redelivery:
// network errors, 5xx responses, timeouts. Anything not wrapped in
// TransientError is treated as job-terminal.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks an error as retriable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether the error chain contains a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
