// Package memory is a brute-force in-memory vector store. It backs tests and
// local development when no Pinecone credentials are configured.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"gopherai-knowledge/internal/vectorstore"
)

type index struct {
	dimension int
	records   map[string]vectorstore.Record
}

type Store struct {
	mu      sync.RWMutex
	indexes map[string]*index
}

func NewStore() *Store {
	return &Store{indexes: make(map[string]*index)}
}

func (s *Store) EnsureIndex(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return &vectorstore.StoreError{Op: "ensure index", Err: fmt.Errorf("invalid dimension %d", dimension)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.indexes[name]; ok {
		if existing.dimension != dimension {
			return fmt.Errorf("index %q has dimension %d, want %d: %w",
				name, existing.dimension, dimension, vectorstore.ErrDimensionMismatch)
		}
		return nil
	}
	s.indexes[name] = &index{
		dimension: dimension,
		records:   make(map[string]vectorstore.Record),
	}
	return nil
}

func (s *Store) Upsert(_ context.Context, name string, record vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[name]
	if !ok {
		return &vectorstore.StoreError{Op: "upsert", Err: fmt.Errorf("index %q not found", name)}
	}
	if len(record.Values) != idx.dimension {
		return &vectorstore.StoreError{Op: "upsert", Err: fmt.Errorf("vector dimension %d, index wants %d", len(record.Values), idx.dimension)}
	}
	idx.records[record.ID] = record
	return nil
}

func (s *Store) Query(_ context.Context, name string, vector []float32, topK int, _ map[string]interface{}) ([]vectorstore.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[name]
	if !ok {
		return nil, nil
	}

	matches := make([]vectorstore.Match, 0, len(idx.records))
	for _, record := range idx.records {
		matches = append(matches, vectorstore.Match{
			ID:       record.ID,
			Score:    cosineSimilarity(vector, record.Values),
			Metadata: record.Metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
