package archival

import (
	"fmt"

	"github.com/strataml/strata/core"
)

// Caps bound how much graph data is turned into prompt context.
type Caps struct {
	MaxEntities  int
	MaxRelations int
	MaxChunks    int
	MaxChunkLen  int
}

// DefaultCaps returns the default formatting bounds.
func DefaultCaps() Caps {
	return Caps{
		MaxEntities:  30,
		MaxRelations: 20,
		MaxChunks:    5,
		MaxChunkLen:  500,
	}
}

// Records converts graph data into memory records ordered entities, then
// relations, then chunks. The service does not expose per-item relevance,
// so scores encode rank order within the result set.
func Records(data *GraphData, caps Caps) []core.MemoryRecord {
	if data.Empty() {
		return nil
	}

	var records []core.MemoryRecord

	entities := data.Entities
	if len(entities) > caps.MaxEntities {
		entities = entities[:caps.MaxEntities]
	}
	for _, e := range entities {
		content := fmt.Sprintf("[%s] %s", orUnknown(e.Type), orUnknown(e.Name))
		if e.Description != "" {
			content += ": " + e.Description
		}
		records = append(records, core.MemoryRecord{Content: content, Source: "entity"})
	}

	relations := data.Relations
	if len(relations) > caps.MaxRelations {
		relations = relations[:caps.MaxRelations]
	}
	for _, r := range relations {
		desc := r.Description
		if desc == "" {
			desc = "relates to"
		}
		content := fmt.Sprintf("%s -> %s: %s", orUnknown(r.Source), orUnknown(r.Target), desc)
		records = append(records, core.MemoryRecord{Content: content, Source: "relation"})
	}

	chunks := data.Chunks
	if len(chunks) > caps.MaxChunks {
		chunks = chunks[:caps.MaxChunks]
	}
	for _, ch := range chunks {
		if ch.Content == "" {
			continue
		}
		content := ch.Content
		if len(content) > caps.MaxChunkLen {
			content = content[:caps.MaxChunkLen] + "..."
		}
		records = append(records, core.MemoryRecord{Content: content, Source: "chunk"})
	}

	// Rank-derived scores, descending with position.
	total := len(records)
	for i := range records {
		records[i].Score = float32(total-i) / float32(total)
	}
	return records
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
