package queue

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/strataml/strata/core"
)

// Topic names, one stream per job kind.
const (
	TopicDocument = "ingest.document"
	TopicCodebase = "ingest.codebase"
)

// TopicFor returns the stream topic for a job kind.
func TopicFor(kind core.JobKind) (string, error) {
	switch kind {
	case core.JobKindDocument:
		return TopicDocument, nil
	case core.JobKindCodebase:
		return TopicCodebase, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrInvalidJobKind, kind)
	}
}

// JobMessage is the queue payload. It carries only identifiers; the job row
// and the document blob live in storage, so redelivering a message is cheap
// and the queue never holds payload data.
type JobMessage struct {
	JobID string       `json:"job_id"`
	Kind  core.JobKind `json:"kind"`
}

// Encode serializes the job message into a watermill message.
func (jm JobMessage) Encode(msgID string) (*message.Message, error) {
	payload, err := json.Marshal(jm)
	if err != nil {
		return nil, err
	}
	return message.NewMessage(msgID, payload), nil
}

// DecodeJobMessage parses a watermill message back into a JobMessage.
func DecodeJobMessage(msg *message.Message) (JobMessage, error) {
	var jm JobMessage
	if err := json.Unmarshal(msg.Payload, &jm); err != nil {
		return JobMessage{}, fmt.Errorf("failed to decode job message: %w", err)
	}
	if jm.JobID == "" {
		return JobMessage{}, fmt.Errorf("job message has no job ID")
	}
	return jm, nil
}
