package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key prefixes for different data types
const (
	sessionPrefix     = "sess"
	sessionTimePrefix = "sesst"
	jobPrefix         = "job"
	jobTimePrefix     = "jobt"
	jobStatusPrefix   = "jobst"
	documentPrefix    = "docrec"
)

// makeSessionKey generates a key for a session by ID.
func makeSessionKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", sessionPrefix, id))
}

// makeJobKey generates a key for an ingest job by ID.
func makeJobKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobPrefix, id))
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, id))
}

// makeJobTimeKey generates a composite key for the creation-time index.
// Format: prefix:timestamp:id
func makeJobTimeKey(createdAt time.Time, id string) []byte {
	prefix := jobTimePrefix + ":"
	buf := make([]byte, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makeJobStatusKey generates a composite key for the status index.
// Format: prefix:status:timestamp:id
func makeJobStatusKey(status string, createdAt time.Time, id string) []byte {
	prefix := jobStatusPrefix + ":" + status + ":"
	buf := make([]byte, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makeJobStatusPrefix generates the scan prefix for one status.
func makeJobStatusPrefix(status string) []byte {
	return []byte(jobStatusPrefix + ":" + status + ":")
}

// makeJobStatusCutoff generates the exclusive upper bound for a stale-job
// scan: every queued job created before the cutoff sorts below this key.
func makeJobStatusCutoff(status string, cutoff time.Time) []byte {
	prefix := jobStatusPrefix + ":" + status + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(cutoff.UnixMicro()))
	return buf
}
