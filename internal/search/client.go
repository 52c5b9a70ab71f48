// Package search provides the Serper web-search client used by research
// branches. One request per call, fixed timeout, no retries; callers treat
// the returned error as branch-local data rather than a fault.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tridentlabs/trident/internal/tracing"
)

// Hit is a single ranked search result.
type Hit struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Config configures the client.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// RatePerSecond limits outbound requests. Zero disables limiting.
	RatePerSecond float64
}

// Client calls the Serper search API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a search client. The API key is an opaque credential;
// the client never logs it.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		limiter:  limiter,
	}
}

// serperRequest is the provider request body.
type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

// serperResponse covers the fields we consume from the provider payload.
type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search executes one query and returns hits in provider rank order.
// Transport errors and non-2xx statuses come back as errors; an empty
// organic list is a valid, empty result.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, c.endpoint)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body for the error message.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("search provider returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Organic))
	for i, r := range parsed.Organic {
		if i >= limit {
			break
		}
		hits = append(hits, Hit{
			Title:    r.Title,
			URL:      r.Link,
			Snippet:  r.Snippet,
			Position: i + 1,
		})
	}
	return hits, nil
}
