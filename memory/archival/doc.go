// Package archival implements the archival memory tier client.
//
// The archival tier is an external graph-retrieval service (LightRAG or
// compatible) holding long-term knowledge. The chat path queries it
// conditionally based on recall confidence; the ingestion pipeline and
// recall-to-archival promotion write to it. All calls carry an explicit
// workspace header for tenant isolation.
package archival
