package app

import (
	"context"
	"fmt"
	"strings"

	"gopherai-knowledge/internal/embedder"
	"gopherai-knowledge/internal/platform/logger"
	"gopherai-knowledge/internal/vectorstore"
)

// QueryVectorCache memoizes query embeddings. Implementations must treat it
// as a pure optimization; errors are handled as misses.
type QueryVectorCache interface {
	Get(ctx context.Context, query string) ([]float32, bool, error)
	Set(ctx context.Context, query string, vec []float32) error
}

// RetrievedContext is the assembled grounding for one question: a single
// context block plus the source labels that went into it. Empty Sources
// means the answer will be ungrounded.
type RetrievedContext struct {
	ContextText string
	Sources     []string
}

// Retriever embeds a question, queries the vector index and assembles a
// bounded, source-labeled context block ordered by descending similarity.
type Retriever struct {
	embedder        *embedder.Orchestrator
	store           vectorstore.Store
	cache           QueryVectorCache
	indexName       string
	topK            int
	maxContextChars int
	log             *logger.Logger
}

func NewRetriever(
	emb *embedder.Orchestrator,
	store vectorstore.Store,
	cache QueryVectorCache,
	indexName string,
	topK, maxContextChars int,
	log *logger.Logger,
) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	if maxContextChars <= 0 {
		maxContextChars = 6000
	}
	return &Retriever{
		embedder:        emb,
		store:           store,
		cache:           cache,
		indexName:       indexName,
		topK:            topK,
		maxContextChars: maxContextChars,
		log:             log.With("component", "retriever"),
	}
}

// Retrieve returns the grounding context for a question. A store failure or
// an empty index degrades to empty context so chat stays available; an
// embedding failure is returned to the caller, which cannot query without a
// vector.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*RetrievedContext, error) {
	vec, err := r.queryVector(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question failed: %w", err)
	}

	matches, err := r.store.Query(ctx, r.indexName, vec, r.topK, nil)
	if err != nil {
		// Availability over strict grounding: answer without context.
		r.log.Warn("vector query failed, continuing without context", "err", err)
		matches = nil
	}

	return r.assemble(matches), nil
}

func (r *Retriever) queryVector(ctx context.Context, question string) ([]float32, error) {
	if r.cache != nil {
		if vec, hit, err := r.cache.Get(ctx, question); err == nil && hit {
			return vec, nil
		}
	}

	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, question, vec); err != nil {
			r.log.Debug("cache query vector failed", "err", err)
		}
	}
	return vec, nil
}

// assemble builds one context block from ranked matches: adjacent chunks of
// the same file are deduplicated, and the lowest-ranked matches are dropped
// first once the character budget is exhausted.
func (r *Retriever) assemble(matches []vectorstore.Match) *RetrievedContext {
	var blocks []string
	var sources []string
	used := 0
	seen := make(map[string][]int) // file name -> kept chunk indexes

	for _, match := range matches {
		fileName := metaString(match.Metadata, "fileName")
		content := metaString(match.Metadata, "content")
		if fileName == "" || content == "" {
			continue
		}
		index := metaInt(match.Metadata, "chunkIndex")
		if isAdjacent(seen[fileName], index) {
			continue
		}

		label := fmt.Sprintf("%s#%d", fileName, index)
		block := fmt.Sprintf("[%s]\n%s", label, content)
		if used+len(block) > r.maxContextChars {
			break
		}

		blocks = append(blocks, block)
		sources = append(sources, label)
		seen[fileName] = append(seen[fileName], index)
		used += len(block)
	}

	return &RetrievedContext{
		ContextText: strings.Join(blocks, "\n---\n"),
		Sources:     sources,
	}
}

// isAdjacent reports whether index duplicates or directly neighbors an
// already kept chunk of the same file.
func isAdjacent(kept []int, index int) bool {
	for _, k := range kept {
		if index == k || index == k-1 || index == k+1 {
			return true
		}
	}
	return false
}

func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

func metaInt(meta map[string]interface{}, key string) int {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
