package badger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/storage"
)

func TestDocumentRoundTrip(t *testing.T) {
	_, _, docs, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docs.Close(); backend.Close() }()

	ctx := context.Background()
	blob := []byte{0x1f, 0x8b, 0x08, 0x00, 0x01, 0x02}

	doc := &core.Document{
		ID:           "d1",
		Workspace:    "default",
		FileName:     "notes.md",
		ContentType:  "text/markdown",
		Compressed:   blob,
		OriginalSize: 1024,
		Digest:       core.Digest(blob),
		Kind:         core.JobKindDocument,
	}
	if err := docs.PutDocument(ctx, doc); err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}

	got, err := docs.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if !bytes.Equal(got.Compressed, blob) {
		t.Fatal("Blob corrupted in round trip")
	}
	if got.FileName != "notes.md" || got.OriginalSize != 1024 {
		t.Fatalf("Metadata corrupted: %+v", got)
	}
	if got.Digest != doc.Digest {
		t.Fatal("Digest corrupted in round trip")
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	_, _, docs, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { docs.Close(); backend.Close() }()

	_, err = docs.GetDocument(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
