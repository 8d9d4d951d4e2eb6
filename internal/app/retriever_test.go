package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-knowledge/internal/embedder"
	"gopherai-knowledge/internal/platform/logger"
	"gopherai-knowledge/internal/vectorstore"
	"gopherai-knowledge/internal/vectorstore/memory"
)

type stubStore struct {
	matches  []vectorstore.Match
	queryErr error
}

func (s *stubStore) EnsureIndex(context.Context, string, int) error { return nil }
func (s *stubStore) Upsert(context.Context, string, vectorstore.Record) error {
	return nil
}
func (s *stubStore) Query(context.Context, string, []float32, int, map[string]interface{}) ([]vectorstore.Match, error) {
	return s.matches, s.queryErr
}

func matchFor(fileName, content string, index int, score float64) vectorstore.Match {
	return vectorstore.Match{
		ID:    fileName,
		Score: score,
		Metadata: map[string]interface{}{
			"fileName":   fileName,
			"content":    content,
			"chunkIndex": float64(index),
		},
	}
}

func newStubRetriever(store vectorstore.Store, maxContextChars int) *Retriever {
	orch := embedder.NewOrchestrator(&fakeEmbedProvider{}, embedder.Config{
		Model:      "test-embed",
		Dimension:  2,
		RatePerSec: 1000,
		Burst:      10,
	}, logger.NewNop())
	return NewRetriever(orch, store, nil, "kb", 5, maxContextChars, logger.NewNop())
}

func TestRetrieveAssemblesRankedLabeledBlocks(t *testing.T) {
	store := &stubStore{matches: []vectorstore.Match{
		matchFor("a.pdf", "first block", 0, 0.9),
		matchFor("b.txt", "second block", 4, 0.7),
	}}
	r := newStubRetriever(store, 6000)

	retrieved, err := r.Retrieve(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf#0", "b.txt#4"}, retrieved.Sources)
	assert.Equal(t, "[a.pdf#0]\nfirst block\n---\n[b.txt#4]\nsecond block", retrieved.ContextText)
}

func TestRetrieveDedupesAdjacentChunks(t *testing.T) {
	store := &stubStore{matches: []vectorstore.Match{
		matchFor("doc.pdf", "chunk three", 3, 0.9),
		matchFor("doc.pdf", "chunk four", 4, 0.8),   // neighbor of 3, dropped
		matchFor("doc.pdf", "chunk three", 3, 0.75), // duplicate, dropped
		matchFor("doc.pdf", "chunk nine", 9, 0.7),
		matchFor("other.pdf", "chunk four", 4, 0.6), // different file, kept
	}}
	r := newStubRetriever(store, 6000)

	retrieved, err := r.Retrieve(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.pdf#3", "doc.pdf#9", "other.pdf#4"}, retrieved.Sources)
}

func TestRetrieveDropsLowestRankedPastBudget(t *testing.T) {
	store := &stubStore{matches: []vectorstore.Match{
		matchFor("a.txt", strings.Repeat("x", 50), 0, 0.9),
		matchFor("b.txt", strings.Repeat("y", 50), 0, 0.8),
		matchFor("c.txt", strings.Repeat("z", 50), 0, 0.7),
	}}
	// Budget fits roughly two blocks; the lowest-ranked match is dropped.
	r := newStubRetriever(store, 130)

	retrieved, err := r.Retrieve(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt#0", "b.txt#0"}, retrieved.Sources)
	assert.NotContains(t, retrieved.ContextText, "z")
}

func TestRetrieveStoreFailureDegradesToEmptyContext(t *testing.T) {
	store := &stubStore{queryErr: &vectorstore.StoreError{Op: "query", Err: errors.New("connection refused")}}
	r := newStubRetriever(store, 6000)

	retrieved, err := r.Retrieve(context.Background(), "question")
	require.NoError(t, err)
	assert.Empty(t, retrieved.ContextText)
	assert.Empty(t, retrieved.Sources)
}

func TestRetrieveEmbeddingFailureIsAnError(t *testing.T) {
	orch := embedder.NewOrchestrator(&fakeEmbedProvider{fail: true}, embedder.Config{
		Model: "test-embed", Dimension: 2, RatePerSec: 1000, Burst: 10,
	}, logger.NewNop())
	r := NewRetriever(orch, memory.NewStore(), nil, "kb", 5, 6000, logger.NewNop())

	_, err := r.Retrieve(context.Background(), "question")
	assert.Error(t, err)
}

type mapCache struct {
	values map[string][]float32
	sets   int
}

func (c *mapCache) Get(_ context.Context, query string) ([]float32, bool, error) {
	vec, ok := c.values[query]
	return vec, ok, nil
}

func (c *mapCache) Set(_ context.Context, query string, vec []float32) error {
	c.sets++
	c.values[query] = vec
	return nil
}

func TestRetrieveUsesQueryVectorCache(t *testing.T) {
	provider := &fakeEmbedProvider{}
	orch := embedder.NewOrchestrator(provider, embedder.Config{
		Model: "test-embed", Dimension: 2, RatePerSec: 1000, Burst: 10,
	}, logger.NewNop())
	cache := &mapCache{values: make(map[string][]float32)}
	r := NewRetriever(orch, memory.NewStore(), cache, "kb", 5, 6000, logger.NewNop())

	_, err := r.Retrieve(context.Background(), "same question")
	require.NoError(t, err)
	_, err = r.Retrieve(context.Background(), "same question")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, cache.sets)
}
