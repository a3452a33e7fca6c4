// Package queue implements the durable at-least-once job queue for the
// ingestion pipeline.
//
// The transport is watermill over Redis Streams with a shared consumer
// group; an in-process GoChannel transport serves tests and single-node
// setups. Messages carry only job identifiers. The durable state (job row,
// document blob) is persisted in storage before anything is published, so
// a lost or redelivered message can always be reconciled from the rows.
package queue
