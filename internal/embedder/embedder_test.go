package embedder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-knowledge/internal/chunker"
	"gopherai-knowledge/internal/platform/logger"
)

type fakeProvider struct {
	dimension int
	failOn    string
}

func (p *fakeProvider) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	if p.failOn != "" && strings.Contains(text, p.failOn) {
		return nil, errors.New("provider unavailable")
	}
	vec := make([]float32, p.dimension)
	for i := range vec {
		vec[i] = float32(len(text))
	}
	return vec, nil
}

func testChunks(texts ...string) []chunker.Chunk {
	chunks := make([]chunker.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunker.Chunk{
			ID:    chunker.ChunkID("doc", i),
			Index: i,
			Text:  text,
		}
	}
	return chunks
}

func TestEmbedChunksIsolatesFailures(t *testing.T) {
	o := NewOrchestrator(&fakeProvider{dimension: 4, failOn: "poison"}, Config{
		Model:       "test-model",
		Dimension:   4,
		RatePerSec:  1000,
		Burst:       10,
		Concurrency: 2,
	}, logger.NewNop())

	outcomes := o.EmbedChunks(context.Background(), testChunks("one", "poison pill", "three"))
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.Len(t, outcomes[0].Vector, 4)
	assert.Error(t, outcomes[1].Err)
	assert.Nil(t, outcomes[1].Vector)
	assert.NoError(t, outcomes[2].Err)
	assert.Len(t, outcomes[2].Vector, 4)

	// Outcomes stay at their original positions.
	for i, outcome := range outcomes {
		assert.Equal(t, i, outcome.Chunk.Index)
	}
}

func TestEmbedChunksRejectsWrongDimension(t *testing.T) {
	o := NewOrchestrator(&fakeProvider{dimension: 8}, Config{
		Model:      "test-model",
		Dimension:  4,
		RatePerSec: 1000,
		Burst:      10,
	}, logger.NewNop())

	outcomes := o.EmbedChunks(context.Background(), testChunks("text"))
	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)
	assert.Contains(t, outcomes[0].Err.Error(), "dimension")
	assert.Nil(t, outcomes[0].Vector)
}

func TestEmbedQuery(t *testing.T) {
	o := NewOrchestrator(&fakeProvider{dimension: 4}, Config{
		Model:      "test-model",
		Dimension:  4,
		RatePerSec: 1000,
		Burst:      10,
	}, logger.NewNop())

	vec, err := o.EmbedQuery(context.Background(), "what is the refund policy?")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbedChunksEmptyBatch(t *testing.T) {
	o := NewOrchestrator(&fakeProvider{dimension: 4}, Config{Dimension: 4, RatePerSec: 1000, Burst: 10}, logger.NewNop())
	assert.Empty(t, o.EmbedChunks(context.Background(), nil))
}
