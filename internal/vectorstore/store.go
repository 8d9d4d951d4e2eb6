package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// Record is the durable unit: a chunk's vector plus the metadata that lets
// retrieval reconstruct a labeled context block.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]interface{}
}

// Match is one ranked query result.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]interface{}
}

// Store is an external vector index with idempotent provisioning,
// insert-or-replace by id, and similarity query.
type Store interface {
	// EnsureIndex provisions the named index with the given dimension. It is
	// idempotent: an existing index with a matching dimension is success, and
	// concurrent creators must both succeed.
	EnsureIndex(ctx context.Context, name string, dimension int) error
	// Upsert inserts or replaces the record keyed by its id.
	Upsert(ctx context.Context, index string, record Record) error
	// Query returns up to topK matches ranked by descending similarity. An
	// empty or missing index yields an empty list, never an error.
	Query(ctx context.Context, index string, vector []float32, topK int, filter map[string]interface{}) ([]Match, error)
}

var (
	// ErrProvisioningTimeout reports an index that never became ready within
	// the configured bound.
	ErrProvisioningTimeout = errors.New("index provisioning timed out")
	// ErrDimensionMismatch reports an existing index whose dimension differs
	// from the requested one.
	ErrDimensionMismatch = errors.New("index dimension mismatch")
)

// StoreError wraps a transport or provider failure from the store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
