package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// QueryVectorCache memoizes query embeddings in Redis so repeated questions
// skip the embedding provider. Strictly an optimization: callers treat every
// cache failure as a miss.
type QueryVectorCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewQueryVectorCache(client *redisv9.Client, ttl time.Duration) *QueryVectorCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryVectorCache{client: client, ttl: ttl}
}

func (c *QueryVectorCache) Get(ctx context.Context, query string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, c.key(query)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get query vector failed: %w", err)
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached vector failed: %w", err)
	}
	return vec, true, nil
}

func (c *QueryVectorCache) Set(ctx context.Context, query string, vec []float32) error {
	payload, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal query vector failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(query), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set query vector failed: %w", err)
	}
	return nil
}

func (c *QueryVectorCache) key(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "rag:qvec:" + hex.EncodeToString(sum[:])
}
