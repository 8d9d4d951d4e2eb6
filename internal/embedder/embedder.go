package embedder

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gopherai-knowledge/internal/chunker"
	"gopherai-knowledge/internal/platform/logger"
)

// Provider is the external embedding service: one text in, one vector out.
type Provider interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Outcome is the per-chunk result of a batch embedding run. Exactly one of
// Vector or Err is set.
type Outcome struct {
	Chunk  chunker.Chunk
	Vector []float32
	Err    error
}

// Orchestrator embeds chunk batches against a rate-limited provider with
// bounded concurrency. A failed chunk never stops the rest of the batch.
type Orchestrator struct {
	provider    Provider
	model       string
	dimension   int
	limiter     *rate.Limiter
	concurrency int
	callTimeout time.Duration
	log         *logger.Logger
}

type Config struct {
	Model       string
	Dimension   int
	RatePerSec  float64
	Burst       int
	Concurrency int
	CallTimeout time.Duration
}

func NewOrchestrator(provider Provider, cfg Config, log *logger.Logger) *Orchestrator {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Orchestrator{
		provider:    provider,
		model:       cfg.Model,
		dimension:   cfg.Dimension,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		concurrency: cfg.Concurrency,
		callTimeout: cfg.CallTimeout,
		log:         log.With("component", "embedder"),
	}
}

// Dimension returns the vector size every persisted embedding must have.
func (o *Orchestrator) Dimension() int { return o.dimension }

// EmbedChunks obtains a vector per chunk. The whole batch is always
// attempted; each chunk's outcome is reported at its original position.
func (o *Orchestrator) EmbedChunks(ctx context.Context, chunks []chunker.Chunk) []Outcome {
	outcomes := make([]Outcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := range chunks {
		i := i
		g.Go(func() error {
			outcomes[i] = Outcome{Chunk: chunks[i]}
			vec, err := o.embedOne(gctx, chunks[i].Text)
			if err != nil {
				outcomes[i].Err = err
				o.log.Warn("chunk embedding failed", "chunk", chunks[i].ID, "err", err)
				return nil // per-chunk failure, keep the batch going
			}
			outcomes[i].Vector = vec
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// EmbedQuery embeds a single query string under the same provider, model and
// dimension used at ingestion time.
func (o *Orchestrator) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return o.embedOne(ctx, text)
}

func (o *Orchestrator) embedOne(ctx context.Context, text string) ([]float32, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	vec, err := o.provider.Embed(callCtx, o.model, text)
	if err != nil {
		return nil, err
	}
	if o.dimension > 0 && len(vec) != o.dimension {
		return nil, fmt.Errorf("embedding dimension %d does not match index dimension %d", len(vec), o.dimension)
	}
	return vec, nil
}
