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

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/panjf2000/ants/v2"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/memory/archival"
	"github.com/strataml/strata/queue"
	"github.com/strataml/strata/storage"
)

// Worker consumes ingestion jobs from the queue, runs preprocessing, and
// forwards structured output to the archival tier.
//
// Delivery is at-least-once. Safety comes from the job state machine:
// a terminal row means the message is a duplicate and is acknowledged
// without reprocessing, and claiming a job is a compare-and-set on its
// attempt count so two workers can never process the same delivery.
type Worker struct {
	jobs       storage.JobRepository
	docs       storage.DocumentRepository
	subscriber message.Subscriber
	pre        *Preprocessor
	archival   archival.Client

	maxAttempts int
	batchSize   int
	limits      ArchiveLimits

	pool   *ants.Pool
	wg     sync.WaitGroup
	logger *slog.Logger
}

// WorkerConfig collects the worker's tunables.
type WorkerConfig struct {
	MaxAttempts int
	BatchSize   int
	Concurrency int
	Limits      ArchiveLimits
}

// NewWorker creates an ingest worker. Run must be called to start it.
func NewWorker(
	jobs storage.JobRepository,
	docs storage.DocumentRepository,
	subscriber message.Subscriber,
	pre *Preprocessor,
	archivalClient archival.Client,
	cfg WorkerConfig,
) (*Worker, error) {
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 20
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}

	pool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		return nil, err
	}

	return &Worker{
		jobs:        jobs,
		docs:        docs,
		subscriber:  subscriber,
		pre:         pre,
		archival:    archivalClient,
		maxAttempts: cfg.MaxAttempts,
		batchSize:   cfg.BatchSize,
		limits:      cfg.Limits,
		pool:        pool,
		logger:      slog.Default().With("component", "ingest-worker"),
	}, nil
}

// Run subscribes to both ingest topics and processes messages until the
// context is cancelled. Blocks until all in-flight work has drained.
func (w *Worker) Run(ctx context.Context) error {
	for _, topic := range []string{queue.TopicDocument, queue.TopicCodebase} {
		messages, err := w.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		w.wg.Add(1)
		go w.consume(ctx, topic, messages)
	}

	w.logger.Info("ingest worker running", "max_attempts", w.maxAttempts, "batch_size", w.batchSize)
	<-ctx.Done()
	w.wg.Wait()
	w.pool.Release()
	return nil
}

func (w *Worker) consume(ctx context.Context, topic string, messages <-chan *message.Message) {
	defer w.wg.Done()
	for msg := range messages {
		msg := msg
		if err := w.pool.Submit(func() { w.handleMessage(ctx, msg) }); err != nil {
			// Pool is shutting down; leave the message unacked so the
			// lease expires and another consumer picks it up.
			w.logger.Warn("dropping message to redelivery", "topic", topic, "err", err)
			msg.Nack()
		}
	}
}

// handleMessage runs one delivery through the job state machine.
// Ack means "this delivery is settled" (success, terminal failure, or
// duplicate); Nack requests redelivery for transient failures.
func (w *Worker) handleMessage(ctx context.Context, msg *message.Message) {
	jm, err := queue.DecodeJobMessage(msg)
	if err != nil {
		// Poison message: redelivering it can never succeed.
		w.logger.Error("dropping undecodable message", "err", err)
		msg.Ack()
		return
	}

	logger := w.logger.With("job", jm.JobID)

	job, err := w.jobs.GetJob(ctx, jm.JobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Error("job row missing, dropping message")
			msg.Ack()
			return
		}
		logger.Error("failed to load job, requesting redelivery", "err", err)
		msg.Nack()
		return
	}

	// Duplicate-delivery guard: a terminal row settles the message.
	if job.Status.Terminal() {
		logger.Info("job already terminal, acknowledging duplicate", "status", job.Status)
		msg.Ack()
		return
	}

	claimed, err := w.jobs.MarkStarted(ctx, job.ID, job.Attempts)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTerminalState):
			msg.Ack()
		case errors.Is(err, storage.ErrConflict):
			// Another worker holds this delivery; ours is redundant.
			logger.Info("job claimed elsewhere, acknowledging duplicate")
			msg.Ack()
		default:
			logger.Error("failed to claim job, requesting redelivery", "err", err)
			msg.Nack()
		}
		return
	}

	// A claim past the attempt cap means earlier attempts died without
	// reaching a terminal state (crash, lease expiry). Stop the
	// redelivery loop before any processing runs.
	if claimed.Attempts > w.maxAttempts {
		reason := fmt.Sprintf("max attempts exceeded (%d)", claimed.Attempts)
		if err := w.jobs.MarkFailed(ctx, claimed.ID, reason); err != nil {
			logger.Error("failed to record failure", "err", err)
		}
		msg.Ack()
		logger.Error("job failed terminally", "reason", reason)
		return
	}

	logger.Info("processing job", "kind", claimed.Kind, "attempt", claimed.Attempts)

	result, err := w.process(ctx, claimed)
	if err == nil {
		if err := w.jobs.MarkCompleted(ctx, claimed.ID, result); err != nil {
			logger.Error("failed to record completion", "err", err)
		}
		msg.Ack()
		logger.Info("job completed", "result", result)
		return
	}

	if IsTransient(err) && claimed.Attempts < w.maxAttempts {
		logger.Warn("transient failure, requesting redelivery",
			"attempt", claimed.Attempts,
			"err", err)
		msg.Nack()
		return
	}

	reason := err.Error()
	if IsTransient(err) {
		reason = fmt.Sprintf("max attempts exceeded (%d): %s", claimed.Attempts, reason)
	}
	if err := w.jobs.MarkFailed(ctx, claimed.ID, reason); err != nil {
		logger.Error("failed to record failure", "err", err)
	}
	msg.Ack()
	logger.Error("job failed terminally", "reason", reason)
}

// process dispatches by job kind and returns the result payload for the
// job row.
func (w *Worker) process(ctx context.Context, job *core.IngestJob) (map[string]any, error) {
	doc, err := w.docs.GetDocument(ctx, job.DocID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("document %s not found", job.DocID)
		}
		return nil, Transient(fmt.Errorf("failed to load document: %w", err))
	}

	payload, err := queue.Decompress(doc.Compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress document: %w", err)
	}

	switch job.Kind {
	case core.JobKindCodebase:
		return w.processCodebase(ctx, doc, payload)
	default:
		return w.processDocument(ctx, doc, payload)
	}
}

// processDocument preprocesses a single file and forwards the structured
// output to the archival tier.
func (w *Worker) processDocument(ctx context.Context, doc *core.Document, payload []byte) (map[string]any, error) {
	result, err := w.pre.Ingest(ctx, doc.Workspace, []ArchiveFile{{Path: doc.FileName, Content: payload}})
	if err != nil {
		return nil, err
	}

	sent, ingestErrs := w.forward(ctx, doc.Workspace, result.Documents)
	return map[string]any{
		"documents_sent": sent,
		"errors":         append(result.Errors, ingestErrs...),
	}, nil
}

// processCodebase extracts the archive (limits enforced before anything is
// forwarded), preprocesses the files in batches, and forwards the output.
func (w *Worker) processCodebase(ctx context.Context, doc *core.Document, payload []byte) (map[string]any, error) {
	files, err := ExtractArchive(payload, doc.FileName, w.limits)
	if err != nil {
		return nil, err
	}

	var allErrs []string
	sent := 0
	for start := 0; start < len(files); start += w.batchSize {
		end := start + w.batchSize
		if end > len(files) {
			end = len(files)
		}

		result, err := w.pre.Ingest(ctx, doc.Workspace, files[start:end])
		if err != nil {
			if IsTransient(err) {
				// Retrying the whole job is safe: the archival tier
				// deduplicates re-ingested text by content.
				return nil, err
			}
			allErrs = append(allErrs, fmt.Sprintf("batch %d: %v", start/w.batchSize, err))
			continue
		}

		batchSent, ingestErrs := w.forward(ctx, doc.Workspace, result.Documents)
		sent += batchSent
		allErrs = append(allErrs, result.Errors...)
		allErrs = append(allErrs, ingestErrs...)
	}

	return map[string]any{
		"files_found":    len(files),
		"documents_sent": sent,
		"errors":         allErrs,
	}, nil
}

// forward pushes preprocessed documents to the archival tier.
func (w *Worker) forward(ctx context.Context, workspace string, docs []PreprocessedDoc) (int, []string) {
	sent := 0
	var errs []string
	for _, d := range docs {
		if d.Text == "" {
			continue
		}
		if err := w.archival.IngestText(ctx, workspace, d.Text); err != nil {
			errs = append(errs, fmt.Sprintf("archival ingest %s: %v", d.Source, err))
			continue
		}
		sent++
	}
	return sent, errs
}
