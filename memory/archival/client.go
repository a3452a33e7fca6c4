package archival

import (
	"context"
)

// Entity is a named node from the archival knowledge graph.
type Entity struct {
	Name        string `json:"entity_name"`
	Type        string `json:"entity_type"`
	Description string `json:"description"`
}

// Relation is an edge between two entities.
type Relation struct {
	Source      string `json:"src_id"`
	Target      string `json:"tgt_id"`
	Description string `json:"description"`
}

// Chunk is a retrieved source text fragment.
type Chunk struct {
	Content string `json:"content"`
}

// GraphData is the structured result of an archival query.
type GraphData struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
	Chunks    []Chunk    `json:"chunks"`
}

// Empty reports whether the query returned no usable content.
func (d *GraphData) Empty() bool {
	return d == nil || (len(d.Entities) == 0 && len(d.Relations) == 0 && len(d.Chunks) == 0)
}

// Client is the archival-tier interface: long-term knowledge held by an
// external graph-retrieval service. Writes come from promotion and the
// ingestion pipeline; the chat path only queries.
//
// Every operation carries an explicit workspace tag. An empty workspace is
// a caller error, never defaulted here.
type Client interface {
	// Query retrieves graph context relevant to the text.
	Query(ctx context.Context, workspace, text string) (*GraphData, error)

	// IngestText submits raw text for durable indexing. Indexing happens
	// asynchronously on the service side.
	IngestText(ctx context.Context, workspace, text string) error
}
