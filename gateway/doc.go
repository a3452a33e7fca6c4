// Package gateway implements the OpenAI-compatible HTTP surface.
//
// The gateway is the single entry point for clients: chat completions
// (streamed or complete) backed by the tiered memory system, ingestion
// uploads feeding the asynchronous pipeline, job status polling, and
// session inspection. It holds no conversation state of its own; all
// state lives in the memory tiers and the storage repositories.
package gateway
