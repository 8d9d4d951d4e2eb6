// Package pinecone is a minimal REST client for Pinecone serverless indexes:
// control-plane describe/create with readiness polling, and data-plane
// upsert/query against the index host.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gopherai-knowledge/internal/vectorstore"
)

type Config struct {
	APIKey       string
	ControlURL   string // defaults to https://api.pinecone.io
	Cloud        string
	Region       string
	ReadyTimeout time.Duration
	PollInterval time.Duration
	HTTPTimeout  time.Duration
}

type Client struct {
	apiKey       string
	controlURL   string
	cloud        string
	region       string
	readyTimeout time.Duration
	pollInterval time.Duration
	httpClient   *http.Client

	mu    sync.Mutex
	hosts map[string]string // index name -> data-plane host
}

func New(cfg Config) *Client {
	if cfg.ControlURL == "" {
		cfg.ControlURL = "https://api.pinecone.io"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	return &Client{
		apiKey:       cfg.APIKey,
		controlURL:   strings.TrimRight(cfg.ControlURL, "/"),
		cloud:        cfg.Cloud,
		region:       cfg.Region,
		readyTimeout: cfg.ReadyTimeout,
		pollInterval: cfg.PollInterval,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		hosts:        make(map[string]string),
	}
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// EnsureIndex describes the index and, when absent, creates it and polls
// until Pinecone reports it ready. A 409 from a racing creator counts as
// success; an existing index with a different dimension does not.
func (c *Client) EnsureIndex(ctx context.Context, name string, dimension int) error {
	desc, found, err := c.describeIndex(ctx, name)
	if err != nil {
		return &vectorstore.StoreError{Op: "describe index", Err: err}
	}
	if found {
		if desc.Dimension != dimension {
			return fmt.Errorf("index %q has dimension %d, want %d: %w",
				name, desc.Dimension, dimension, vectorstore.ErrDimensionMismatch)
		}
		if desc.Status.Ready {
			c.rememberHost(name, desc.Host)
			return nil
		}
		return c.waitReady(ctx, name, dimension)
	}

	if err := c.createIndex(ctx, name, dimension); err != nil {
		return &vectorstore.StoreError{Op: "create index", Err: err}
	}
	return c.waitReady(ctx, name, dimension)
}

func (c *Client) waitReady(ctx context.Context, name string, dimension int) error {
	deadline := time.Now().Add(c.readyTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		desc, found, err := c.describeIndex(ctx, name)
		if err == nil && found {
			if desc.Dimension != dimension {
				return fmt.Errorf("index %q has dimension %d, want %d: %w",
					name, desc.Dimension, dimension, vectorstore.ErrDimensionMismatch)
			}
			if desc.Status.Ready {
				c.rememberHost(name, desc.Host)
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("index %q not ready after %s: %w", name, c.readyTimeout, vectorstore.ErrProvisioningTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("index %q wait canceled: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) createIndex(ctx context.Context, name string, dimension int) error {
	body := map[string]interface{}{
		"name":      name,
		"dimension": dimension,
		"metric":    "cosine",
		"spec": map[string]interface{}{
			"serverless": map[string]interface{}{
				"cloud":  c.cloud,
				"region": c.region,
			},
		},
	}
	status, raw, err := c.do(ctx, http.MethodPost, c.controlURL+"/indexes", body)
	if err != nil {
		return err
	}
	// 409: another caller created it first. That is success for us.
	if status == http.StatusConflict {
		return nil
	}
	if status >= 300 {
		return fmt.Errorf("create returned status %d: %s", status, string(raw))
	}
	return nil
}

func (c *Client) describeIndex(ctx context.Context, name string) (*indexDescription, bool, error) {
	status, raw, err := c.do(ctx, http.MethodGet, c.controlURL+"/indexes/"+name, nil)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if status >= 300 {
		return nil, false, fmt.Errorf("describe returned status %d: %s", status, string(raw))
	}
	var desc indexDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, false, fmt.Errorf("parse describe response failed: %w", err)
	}
	return &desc, true, nil
}

// Upsert inserts or replaces one record in the index.
func (c *Client) Upsert(ctx context.Context, index string, record vectorstore.Record) error {
	host, err := c.indexHost(ctx, index)
	if err != nil {
		return &vectorstore.StoreError{Op: "upsert", Err: err}
	}
	body := map[string]interface{}{
		"vectors": []map[string]interface{}{
			{
				"id":       record.ID,
				"values":   record.Values,
				"metadata": record.Metadata,
			},
		},
	}
	status, raw, err := c.do(ctx, http.MethodPost, host+"/vectors/upsert", body)
	if err != nil {
		return &vectorstore.StoreError{Op: "upsert", Err: err}
	}
	if status >= 300 {
		return &vectorstore.StoreError{Op: "upsert", Err: fmt.Errorf("status %d: %s", status, string(raw))}
	}
	return nil
}

// Query returns topK matches ranked by descending similarity. A missing
// index yields an empty list.
func (c *Client) Query(ctx context.Context, index string, vector []float32, topK int, filter map[string]interface{}) ([]vectorstore.Match, error) {
	host, err := c.indexHost(ctx, index)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, &vectorstore.StoreError{Op: "query", Err: err}
	}

	body := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if len(filter) > 0 {
		body["filter"] = filter
	}
	status, raw, err := c.do(ctx, http.MethodPost, host+"/query", body)
	if err != nil {
		return nil, &vectorstore.StoreError{Op: "query", Err: err}
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= 300 {
		return nil, &vectorstore.StoreError{Op: "query", Err: fmt.Errorf("status %d: %s", status, string(raw))}
	}

	var parsed struct {
		Matches []struct {
			ID       string                 `json:"id"`
			Score    float64                `json:"score"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"matches"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &vectorstore.StoreError{Op: "query", Err: fmt.Errorf("parse query response failed: %w", err)}
	}

	matches := make([]vectorstore.Match, len(parsed.Matches))
	for i, m := range parsed.Matches {
		matches[i] = vectorstore.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return matches, nil
}

// indexHost resolves and caches the data-plane host for an index.
func (c *Client) indexHost(ctx context.Context, index string) (string, error) {
	c.mu.Lock()
	host, ok := c.hosts[index]
	c.mu.Unlock()
	if ok {
		return host, nil
	}

	desc, found, err := c.describeIndex(ctx, index)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errIndexNotFound(index)
	}
	return c.rememberHost(index, desc.Host), nil
}

func (c *Client) rememberHost(index, host string) string {
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	host = strings.TrimRight(host, "/")
	c.mu.Lock()
	c.hosts[index] = host
	c.mu.Unlock()
	return host
}

type errIndexNotFound string

func (e errIndexNotFound) Error() string {
	return fmt.Sprintf("index %q not found", string(e))
}

func isNotFound(err error) bool {
	_, ok := err.(errIndexNotFound)
	return ok
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response failed: %w", err)
	}
	return resp.StatusCode, raw, nil
}
