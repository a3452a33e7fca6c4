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

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/storage"
)

// Submission describes one ingestion request.
type Submission struct {
	Workspace   string
	Kind        core.JobKind
	FileName    string
	ContentType string
	Payload     []byte
	Metadata    map[string]string
}

// Client is the submitting side of the ingestion pipeline. Submit persists
// the durable job row and document blob first, then publishes a pointer
// message; the queue never sees payload bytes.
type Client struct {
	jobs      storage.JobRepository
	docs      storage.DocumentRepository
	publisher message.Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewClient creates a queue client. publishTimeout bounds each publish call.
func NewClient(jobs storage.JobRepository, docs storage.DocumentRepository, publisher message.Publisher, publishTimeout time.Duration) *Client {
	return &Client{
		jobs:      jobs,
		docs:      docs,
		publisher: publisher,
		timeout:   publishTimeout,
		logger:    slog.Default().With("component", "queue-client"),
	}
}

// Submit persists the document and job, then enqueues the job message.
// Returns the created job row immediately; processing is asynchronous and
// callers poll Status.
//
// Order matters: the job row is durable before the publish, so a publish
// failure leaves a queued row behind for the reconciliation sweep instead
// of losing the request. Publish failures return ErrPublishFailed.
func (c *Client) Submit(ctx context.Context, sub Submission) (*core.IngestJob, error) {
	if sub.Workspace == "" {
		return nil, core.ErrMissingWorkspace
	}
	if err := core.ValidateJobKind(sub.Kind); err != nil {
		return nil, err
	}
	if len(sub.Payload) == 0 {
		return nil, ErrEmptyPayload
	}

	compressed, err := compress(sub.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}

	now := time.Now().UTC()
	doc := &core.Document{
		ID:           uuid.NewString(),
		Workspace:    sub.Workspace,
		FileName:     sub.FileName,
		ContentType:  sub.ContentType,
		Compressed:   compressed,
		OriginalSize: int64(len(sub.Payload)),
		Digest:       core.Digest(sub.Payload),
		Kind:         sub.Kind,
		CreatedAt:    now,
	}
	if err := c.docs.PutDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	job := &core.IngestJob{
		ID:        uuid.NewString(),
		DocID:     doc.ID,
		Workspace: sub.Workspace,
		Kind:      sub.Kind,
		Status:    core.JobQueued,
		Metadata:  sub.Metadata,
		CreatedAt: now,
	}
	if err := c.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := c.publish(ctx, job); err != nil {
		// The row stays queued; the sweep republishes it later.
		c.logger.Error("job persisted but publish failed", "job", job.ID, "err", err)
		return job, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	c.logger.Info("job submitted",
		"job", job.ID,
		"workspace", sub.Workspace,
		"kind", sub.Kind,
		"size", len(sub.Payload))
	return job, nil
}

// Status returns the current job row.
func (c *Client) Status(ctx context.Context, jobID string) (*core.IngestJob, error) {
	return c.jobs.GetJob(ctx, jobID)
}

// List returns jobs matching the query, most recent first.
func (c *Client) List(ctx context.Context, q storage.JobQuery) ([]*core.IngestJob, error) {
	return c.jobs.ListJobs(ctx, q)
}

// Sweep republishes queued jobs older than the cutoff. This reconciles
// jobs whose original publish failed after the row was persisted. Returns
// the number of jobs republished.
func (c *Client) Sweep(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := c.jobs.ListStaleQueued(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	republished := 0
	for _, job := range stale {
		if err := c.publish(ctx, job); err != nil {
			c.logger.Warn("sweep republish failed", "job", job.ID, "err", err)
			continue
		}
		republished++
	}
	if republished > 0 {
		c.logger.Info("sweep republished stale jobs", "count", republished)
	}
	return republished, nil
}

func (c *Client) publish(ctx context.Context, job *core.IngestJob) error {
	topic, err := TopicFor(job.Kind)
	if err != nil {
		return err
	}
	msg, err := JobMessage{JobID: job.ID, Kind: job.Kind}.Encode(watermill.NewUUID())
	if err != nil {
		return err
	}

	// Watermill publishers don't take a context; enforce the timeout here
	// so a stuck broker can't hold the request open.
	done := make(chan error, 1)
	go func() { done <- c.publisher.Publish(topic, msg) }()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish timed out after %s", c.timeout)
	}
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses the gzip compression applied by Submit. Used by the
// worker to recover the original payload from a stored document.
func Decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(gz); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
