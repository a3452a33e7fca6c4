package archival

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataml/strata/core"
)

func TestHTTPClientQuery(t *testing.T) {
	var gotWorkspace, gotPath string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWorkspace = r.Header.Get("LIGHTRAG-WORKSPACE")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"entities": []map[string]string{
					{"entity_name": "Badger", "entity_type": "library", "description": "embedded KV store"},
				},
				"relations": []map[string]string{
					{"src_id": "Strata", "tgt_id": "Badger", "description": "persists jobs in"},
				},
				"chunks": []map[string]string{
					{"content": "strata uses badger for job rows"},
				},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	data, err := client.Query(context.Background(), "ws", "how are jobs stored")
	require.NoError(t, err)

	assert.Equal(t, "ws", gotWorkspace)
	assert.Equal(t, "/query/data", gotPath)
	assert.Equal(t, "how are jobs stored", gotBody["query"])
	assert.Equal(t, "hybrid", gotBody["mode"])

	require.Len(t, data.Entities, 1)
	assert.Equal(t, "Badger", data.Entities[0].Name)
	require.Len(t, data.Relations, 1)
	require.Len(t, data.Chunks, 1)
}

func TestHTTPClientQueryBareEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"entities": []map[string]string{{"entity_name": "X"}},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	data, err := client.Query(context.Background(), "ws", "q")
	require.NoError(t, err)
	require.Len(t, data.Entities, 1)
	assert.Equal(t, "X", data.Entities[0].Name)
}

func TestHTTPClientQueryErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.Query(context.Background(), "ws", "q")
	assert.Error(t, err)
}

func TestHTTPClientQueryRequiresWorkspace(t *testing.T) {
	client := NewHTTPClient("http://localhost:9621")
	_, err := client.Query(context.Background(), "", "q")
	assert.ErrorIs(t, err, core.ErrMissingWorkspace)
}

func TestHTTPClientIngestText(t *testing.T) {
	var gotWorkspace, gotPath string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWorkspace = r.Header.Get("LIGHTRAG-WORKSPACE")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	err := client.IngestText(context.Background(), "ws", "summary text")
	require.NoError(t, err)

	assert.Equal(t, "ws", gotWorkspace)
	assert.Equal(t, "/documents/text", gotPath)
	assert.Equal(t, "summary text", gotBody["text"])
}

func TestHTTPClientIngestEmptyText(t *testing.T) {
	client := NewHTTPClient("http://localhost:9621")
	err := client.IngestText(context.Background(), "ws", "   ")
	assert.ErrorIs(t, err, core.ErrEmptyContent)
}

func TestRecords(t *testing.T) {
	data := &GraphData{
		Entities: []Entity{
			{Name: "Badger", Type: "library", Description: "embedded KV store"},
			{Name: "Redis", Type: "service"},
		},
		Relations: []Relation{
			{Source: "Strata", Target: "Badger", Description: "persists jobs in"},
		},
		Chunks: []Chunk{
			{Content: "some source context"},
		},
	}

	records := Records(data, DefaultCaps())
	require.Len(t, records, 4)
	assert.Equal(t, "[library] Badger: embedded KV store", records[0].Content)
	assert.Equal(t, "entity", records[0].Source)
	assert.Equal(t, "[service] Redis", records[1].Content)
	assert.Equal(t, "Strata -> Badger: persists jobs in", records[2].Content)
	assert.Equal(t, "relation", records[2].Source)
	assert.Equal(t, "chunk", records[3].Source)

	// Scores descend with rank.
	for i := 1; i < len(records); i++ {
		assert.Less(t, records[i].Score, records[i-1].Score)
	}
}

func TestRecordsCapsAndTruncation(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}

	data := &GraphData{
		Entities: []Entity{{Name: "A"}, {Name: "B"}, {Name: "C"}},
		Chunks:   []Chunk{{Content: string(long)}},
	}

	caps := Caps{MaxEntities: 2, MaxRelations: 1, MaxChunks: 1, MaxChunkLen: 500}
	records := Records(data, caps)
	require.Len(t, records, 3)
	assert.Len(t, records[2].Content, 503) // 500 + "..."
}

func TestRecordsEmpty(t *testing.T) {
	assert.Nil(t, Records(&GraphData{}, DefaultCaps()))
	assert.Nil(t, Records(nil, DefaultCaps()))
}
