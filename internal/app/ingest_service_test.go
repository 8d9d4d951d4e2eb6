package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-knowledge/internal/chunker"
	"gopherai-knowledge/internal/embedder"
	"gopherai-knowledge/internal/media"
	"gopherai-knowledge/internal/model"
	"gopherai-knowledge/internal/platform/logger"
	"gopherai-knowledge/internal/vectorstore"
	"gopherai-knowledge/internal/vectorstore/memory"
)

type poisonProvider struct {
	failOn string
}

func (p *poisonProvider) Embed(_ context.Context, _, text string) ([]float32, error) {
	if p.failOn != "" && strings.Contains(text, p.failOn) {
		return nil, errors.New("provider rejected chunk")
	}
	return []float32{1, 0.5}, nil
}

type capturingPublisher struct {
	records []model.IngestRecord
}

func (p *capturingPublisher) Publish(_ context.Context, record model.IngestRecord) error {
	p.records = append(p.records, record)
	return nil
}

type brokenStore struct {
	ensureErr error
}

func (s *brokenStore) EnsureIndex(context.Context, string, int) error { return s.ensureErr }
func (s *brokenStore) Upsert(context.Context, string, vectorstore.Record) error {
	return errors.New("unreachable")
}
func (s *brokenStore) Query(context.Context, string, []float32, int, map[string]interface{}) ([]vectorstore.Match, error) {
	return nil, errors.New("unreachable")
}

func newTestIngestService(store vectorstore.Store, provider embedder.Provider, publisher EventPublisher) *IngestService {
	normalizer := media.NewNormalizer(media.NewDocumentExtractor(), nil, nil, nil, logger.NewNop())
	splitter := chunker.NewSplitter(20, 0, 0)
	orch := embedder.NewOrchestrator(provider, embedder.Config{
		Model:      "test-embed",
		Dimension:  2,
		RatePerSec: 1000,
		Burst:      10,
	}, logger.NewNop())
	return NewIngestService(normalizer, splitter, orch, store, "kb", publisher, logger.NewNop())
}

func textFile(name, content string) media.File {
	return media.File{Name: name, MimeType: "text/plain", Data: []byte(content)}
}

func TestIngestHappyPath(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturingPublisher{}
	svc := newTestIngestService(store, &poisonProvider{}, publisher)

	results, err := svc.Ingest(context.Background(), "req-1", []media.File{
		textFile("notes.txt", strings.Repeat("a", 60)),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "notes.txt", results[0].FileName)
	assert.Equal(t, "document", results[0].Category)
	assert.Equal(t, 3, results[0].TotalChunks)
	assert.Equal(t, 3, results[0].SuccessfulChunks)
	assert.Empty(t, results[0].Failures)

	matches, err := store.Query(context.Background(), "kb", []float32{1, 0.5}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	require.Len(t, publisher.records, 1)
	assert.Equal(t, "req-1", publisher.records[0].RequestID)
	assert.Equal(t, 3, publisher.records[0].SuccessfulChunks)
}

func TestIngestChunkFailureIsIsolated(t *testing.T) {
	store := memory.NewStore()
	svc := newTestIngestService(store, &poisonProvider{failOn: "poison"}, nil)

	// Three hard-cut chunks of 20 runes; only the middle one fails.
	content := strings.Repeat("a", 20) + "poison" + strings.Repeat("b", 14) + strings.Repeat("c", 20)
	results, err := svc.Ingest(context.Background(), "req-2", []media.File{
		textFile("notes.txt", content),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 3, results[0].TotalChunks)
	assert.Equal(t, 2, results[0].SuccessfulChunks)
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, 1, results[0].Failures[0].Index)
	assert.Equal(t, chunker.ChunkID("notes.txt", 1), results[0].Failures[0].ChunkID)

	// Failed chunk is never persisted.
	matches, err := store.Query(context.Background(), "kb", []float32{1, 0.5}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestIngestFileFailureDoesNotAbortSiblings(t *testing.T) {
	store := memory.NewStore()
	svc := newTestIngestService(store, &poisonProvider{}, nil)

	results, err := svc.Ingest(context.Background(), "req-3", []media.File{
		{Name: "bad.bin", MimeType: "application/octet-stream", Data: []byte("x")},
		textFile("good.txt", "usable content"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NotEmpty(t, results[0].Error)
	assert.Zero(t, results[0].TotalChunks)

	assert.Empty(t, results[1].Error)
	assert.Equal(t, 1, results[1].SuccessfulChunks)
}

func TestIngestProvisioningTimeoutAbortsBatch(t *testing.T) {
	timeoutErr := fmt.Errorf("index %q not ready: %w", "kb", vectorstore.ErrProvisioningTimeout)
	svc := newTestIngestService(&brokenStore{ensureErr: timeoutErr}, &poisonProvider{}, nil)

	results, err := svc.Ingest(context.Background(), "req-4", []media.File{
		textFile("notes.txt", "content"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrProvisioningTimeout)
	assert.Nil(t, results)
}

func TestIngestNoFiles(t *testing.T) {
	svc := newTestIngestService(memory.NewStore(), &poisonProvider{}, nil)
	_, err := svc.Ingest(context.Background(), "req-5", nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestIngestReingestOverwrites(t *testing.T) {
	store := memory.NewStore()
	svc := newTestIngestService(store, &poisonProvider{}, nil)
	files := []media.File{textFile("doc.txt", strings.Repeat("a", 60))}

	_, err := svc.Ingest(context.Background(), "req-6", files)
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), "req-7", files)
	require.NoError(t, err)

	// Deterministic chunk ids: the second ingest replaced, not duplicated.
	matches, err := store.Query(context.Background(), "kb", []float32{1, 0.5}, 100, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}
