package app

import (
	"context"
	"errors"
	"time"

	"gopherai-knowledge/internal/chunker"
	"gopherai-knowledge/internal/embedder"
	"gopherai-knowledge/internal/media"
	"gopherai-knowledge/internal/model"
	"gopherai-knowledge/internal/platform/logger"
	"gopherai-knowledge/internal/vectorstore"
)

// EventPublisher receives per-file audit records after ingestion. Publishing
// is best-effort; the ingest path never fails because of it.
type EventPublisher interface {
	Publish(ctx context.Context, record model.IngestRecord) error
}

// ChunkFailure reports one chunk that could not be embedded or stored.
type ChunkFailure struct {
	ChunkID string `json:"chunk_id"`
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
}

// FileResult is the outcome of ingesting one uploaded file.
type FileResult struct {
	FileName         string         `json:"file_name"`
	Category         string         `json:"category,omitempty"`
	TotalChunks      int            `json:"total_chunks"`
	SuccessfulChunks int            `json:"successful_chunks"`
	Failures         []ChunkFailure `json:"failures,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// IngestService runs the upload pipeline: normalize, segment, embed, upsert.
// Files are processed independently; a failure in one never aborts its
// siblings. Chunks within a file are likewise independent: the whole batch
// is attempted and per-chunk failures are reported, not propagated.
type IngestService struct {
	normalizer *media.Normalizer
	splitter   *chunker.Splitter
	embedder   *embedder.Orchestrator
	store      vectorstore.Store
	indexName  string
	publisher  EventPublisher
	log        *logger.Logger
}

func NewIngestService(
	normalizer *media.Normalizer,
	splitter *chunker.Splitter,
	emb *embedder.Orchestrator,
	store vectorstore.Store,
	indexName string,
	publisher EventPublisher,
	log *logger.Logger,
) *IngestService {
	return &IngestService{
		normalizer: normalizer,
		splitter:   splitter,
		embedder:   emb,
		store:      store,
		indexName:  indexName,
		publisher:  publisher,
		log:        log.With("component", "ingest"),
	}
}

// Ingest processes an upload batch. It returns an error only when the whole
// operation is impossible (index never provisioned); everything else is
// reported per file.
func (s *IngestService) Ingest(ctx context.Context, requestID string, files []media.File) ([]FileResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	if err := s.store.EnsureIndex(ctx, s.indexName, s.embedder.Dimension()); err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(files))
	for _, f := range files {
		result := s.ingestFile(ctx, f)
		results = append(results, result)
		s.publishAudit(ctx, requestID, f, result)
	}
	return results, nil
}

func (s *IngestService) ingestFile(ctx context.Context, f media.File) FileResult {
	result := FileResult{FileName: f.Name}

	normalized, err := s.normalizer.Normalize(ctx, f)
	if err != nil {
		var extractionErr *media.ExtractionError
		if errors.As(err, &extractionErr) {
			s.log.Warn("file extraction failed", "file", f.Name, "err", err)
		}
		result.Error = err.Error()
		return result
	}
	result.Category = string(normalized.Category)

	chunks := s.splitter.Split(f.Name, normalized.Text)
	result.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return result
	}

	uploadedAt := time.Now().UTC().Format(time.RFC3339)
	for _, outcome := range s.embedder.EmbedChunks(ctx, chunks) {
		if outcome.Err != nil {
			result.Failures = append(result.Failures, ChunkFailure{
				ChunkID: outcome.Chunk.ID,
				Index:   outcome.Chunk.Index,
				Reason:  outcome.Err.Error(),
			})
			continue
		}

		record := vectorstore.Record{
			ID:       outcome.Chunk.ID,
			Values:   outcome.Vector,
			Metadata: chunkMetadata(f, normalized, outcome.Chunk, uploadedAt),
		}
		if err := s.store.Upsert(ctx, s.indexName, record); err != nil {
			result.Failures = append(result.Failures, ChunkFailure{
				ChunkID: outcome.Chunk.ID,
				Index:   outcome.Chunk.Index,
				Reason:  err.Error(),
			})
			continue
		}
		result.SuccessfulChunks++
	}

	s.log.Info("file ingested",
		"file", f.Name,
		"category", result.Category,
		"chunks", result.TotalChunks,
		"succeeded", result.SuccessfulChunks,
	)
	return result
}

func chunkMetadata(f media.File, normalized *media.Normalized, c chunker.Chunk, uploadedAt string) map[string]interface{} {
	meta := map[string]interface{}{
		"fileName":   f.Name,
		"fileType":   f.MimeType,
		"category":   string(normalized.Category),
		"chunkIndex": c.Index,
		"content":    c.Text,
		"startChar":  c.Start,
		"endChar":    c.End,
		"uploadedAt": uploadedAt,
	}
	if normalized.Metadata.Language != "" {
		meta["language"] = normalized.Metadata.Language
	}
	if normalized.Metadata.DurationSec > 0 {
		meta["durationSec"] = normalized.Metadata.DurationSec
	}
	if normalized.Metadata.Width > 0 {
		meta["width"] = normalized.Metadata.Width
		meta["height"] = normalized.Metadata.Height
	}
	if len(normalized.Metadata.Labels) > 0 {
		meta["labels"] = normalized.Metadata.Labels
	}
	return meta
}

func (s *IngestService) publishAudit(ctx context.Context, requestID string, f media.File, result FileResult) {
	if s.publisher == nil {
		return
	}
	record := model.IngestRecord{
		RequestID:        requestID,
		FileName:         f.Name,
		FileType:         f.MimeType,
		Category:         result.Category,
		TotalChunks:      result.TotalChunks,
		SuccessfulChunks: result.SuccessfulChunks,
		Error:            result.Error,
	}
	if err := s.publisher.Publish(ctx, record); err != nil {
		s.log.Warn("publish ingest audit failed", "file", f.Name, "err", err)
	}
}
