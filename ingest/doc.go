// Package ingest implements the asynchronous ingestion worker.
//
// The worker pulls job messages from the durable queue, loads the job row
// and document blob from storage, runs the external preprocessing service
// over the content (extracting codebase archives first), and forwards the
// structured output to the archival tier.
//
// Processing is idempotent under at-least-once delivery: terminal job rows
// settle duplicate messages, claiming a job is a compare-and-set on its
// attempt count, and transient failures are retried via queue redelivery
// up to a configured attempt limit.
package ingest
