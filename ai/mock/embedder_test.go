package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedTextIsDeterministic(t *testing.T) {
	embedder := NewMockEmbedder()

	first, err := embedder.EmbedText(context.Background(), "the same text")
	require.NoError(t, err)
	second, err := embedder.EmbedText(context.Background(), "the same text")
	require.NoError(t, err)

	assert.Len(t, first, vectorDim)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestEmbedTextDistinctTextsDiffer(t *testing.T) {
	embedder := NewMockEmbedder()

	a, err := embedder.EmbedText(context.Background(), "alpha")
	require.NoError(t, err)
	b, err := embedder.EmbedText(context.Background(), "beta")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEmbedTextProducesUnitVector(t *testing.T) {
	embedder := NewMockEmbedder()

	vec, err := embedder.EmbedText(context.Background(), "normalize me")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 0.01)
}

func TestEmbedTextsMatchesSingleEmbedding(t *testing.T) {
	embedder := NewMockEmbedder()

	single, err := embedder.EmbedText(context.Background(), "shared")
	require.NoError(t, err)
	batch, err := embedder.EmbedTexts(context.Background(), []string{"other", "shared"})
	require.NoError(t, err)

	require.Len(t, batch, 2)
	assert.Equal(t, single, batch[1])
}

func TestEmbedTextInjectedBehavior(t *testing.T) {
	embedder := NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{float32(math.Inf(1))}, nil
	}

	vec, err := embedder.EmbedText(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, vec, 1)

	embedder.Reset()
	assert.Equal(t, 0, embedder.CallCount())

	vec, err = embedder.EmbedText(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, vec, vectorDim)
}
