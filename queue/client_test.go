package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataml/strata/core"
	"github.com/strataml/strata/storage"
	storagebadger "github.com/strataml/strata/storage/badger"
)

// failingPublisher always rejects publishes.
type failingPublisher struct{}

func (failingPublisher) Publish(topic string, messages ...*message.Message) error {
	return errors.New("broker unreachable")
}
func (failingPublisher) Close() error { return nil }

func newTestClient(t *testing.T, pub message.Publisher) (*Client, func()) {
	t.Helper()
	_, jobs, docs, backend, err := storagebadger.NewMemoryStores()
	require.NoError(t, err)
	client := NewClient(jobs, docs, pub, 5*time.Second)
	return client, func() { backend.Close() }
}

func TestSubmitPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	pubsub := NewInMemory()
	defer pubsub.Close()

	messages, err := pubsub.Subscribe(ctx, TopicDocument)
	require.NoError(t, err)

	client, cleanup := newTestClient(t, pubsub)
	defer cleanup()

	payload := []byte("some document content")
	job, err := client.Submit(ctx, Submission{
		Workspace:   "ws",
		Kind:        core.JobKindDocument,
		FileName:    "notes.md",
		ContentType: "text/markdown",
		Payload:     payload,
	})
	require.NoError(t, err)
	assert.Equal(t, core.JobQueued, job.Status)
	assert.NotEmpty(t, job.DocID)

	select {
	case msg := <-messages:
		jm, err := DecodeJobMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, job.ID, jm.JobID)
		assert.Equal(t, core.JobKindDocument, jm.Kind)
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}

	// Document round-trips through compression.
	doc, err := client.docs.GetDocument(ctx, job.DocID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), doc.OriginalSize)
	assert.Equal(t, core.Digest(payload), doc.Digest)

	restored, err := Decompress(doc.Compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, restored)
}

func TestSubmitCodebaseUsesCodebaseTopic(t *testing.T) {
	ctx := context.Background()
	pubsub := NewInMemory()
	defer pubsub.Close()

	messages, err := pubsub.Subscribe(ctx, TopicCodebase)
	require.NoError(t, err)

	client, cleanup := newTestClient(t, pubsub)
	defer cleanup()

	job, err := client.Submit(ctx, Submission{
		Workspace: "ws",
		Kind:      core.JobKindCodebase,
		FileName:  "repo.zip",
		Payload:   []byte("zip bytes"),
	})
	require.NoError(t, err)

	select {
	case msg := <-messages:
		jm, err := DecodeJobMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, job.ID, jm.JobID)
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestSubmitPublishFailureLeavesQueuedRow(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(t, failingPublisher{})
	defer cleanup()

	job, err := client.Submit(ctx, Submission{
		Workspace: "ws",
		Kind:      core.JobKindDocument,
		FileName:  "doc.txt",
		Payload:   []byte("content"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublishFailed)
	require.NotNil(t, job)

	// The row survives for reconciliation.
	stored, serr := client.Status(ctx, job.ID)
	require.NoError(t, serr)
	assert.Equal(t, core.JobQueued, stored.Status)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(t, NewInMemory())
	defer cleanup()

	_, err := client.Submit(ctx, Submission{Kind: core.JobKindDocument, Payload: []byte("x")})
	assert.ErrorIs(t, err, core.ErrMissingWorkspace)

	_, err = client.Submit(ctx, Submission{Workspace: "ws", Kind: "video", Payload: []byte("x")})
	assert.ErrorIs(t, err, core.ErrInvalidJobKind)

	_, err = client.Submit(ctx, Submission{Workspace: "ws", Kind: core.JobKindDocument})
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestSweepRepublishesStaleJobs(t *testing.T) {
	ctx := context.Background()

	// First submit with a failing publisher to strand a queued row.
	_, jobs, docs, backend, err := storagebadger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	failing := NewClient(jobs, docs, failingPublisher{}, time.Second)
	job, err := failing.Submit(ctx, Submission{
		Workspace: "ws",
		Kind:      core.JobKindDocument,
		FileName:  "doc.txt",
		Payload:   []byte("content"),
	})
	require.ErrorIs(t, err, ErrPublishFailed)

	// Then sweep with a working publisher.
	pubsub := NewInMemory()
	defer pubsub.Close()
	messages, err := pubsub.Subscribe(ctx, TopicDocument)
	require.NoError(t, err)

	working := NewClient(jobs, docs, pubsub, time.Second)
	count, err := working.Sweep(ctx, time.Now().Add(time.Minute), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	select {
	case msg := <-messages:
		jm, derr := DecodeJobMessage(msg)
		require.NoError(t, derr)
		assert.Equal(t, job.ID, jm.JobID)
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not republish")
	}
}

func TestListJobs(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(t, NewInMemory())
	defer cleanup()

	for i := 0; i < 3; i++ {
		_, err := client.Submit(ctx, Submission{
			Workspace: "ws",
			Kind:      core.JobKindDocument,
			FileName:  "doc.txt",
			Payload:   []byte{byte(i)},
		})
		require.NoError(t, err)
	}

	listed, err := client.List(ctx, storage.JobQuery{Workspace: "ws", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}
