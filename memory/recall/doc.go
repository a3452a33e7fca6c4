// Package recall implements the recall memory tier.
//
// The recall tier holds conversation summaries with vector embeddings.
// Summaries are produced by working-to-recall promotion and retrieved by
// similarity search against the current query. Unavailability of this tier
// degrades a request rather than failing it.
package recall
