// Package fetch retrieves article content for research branches. Fetching
// is best-effort: any failure (transport, status, size, extraction) yields
// an absent result, never an error. Callers fall back to snippet-only data.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tridentlabs/trident/internal/metrics"
)

// Cache stores extracted page text keyed by URL.
type Cache interface {
	Get(ctx context.Context, url string) (string, bool)
	Set(ctx context.Context, url, content string)
}

// Config configures the fetcher.
type Config struct {
	Timeout        time.Duration
	UserAgent      string
	MaxContentSize int64
}

// Fetcher downloads pages and extracts their main text content.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxSize   int64
	extractor *Extractor
	cache     Cache
	logger    *zap.Logger
}

// NewFetcher creates a fetcher. cache may be nil.
func NewFetcher(cfg Config, cache Cache, logger *zap.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxSize := cfg.MaxContentSize
	if maxSize <= 0 {
		maxSize = 2 << 20
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxSize:   maxSize,
		extractor: NewExtractor(),
		cache:     cache,
		logger:    logger,
	}
}

// Fetch returns the extracted text of the page at url, or ("", false) when
// the page is unavailable for any reason.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, bool) {
	if url == "" {
		return "", false
	}

	if f.cache != nil {
		if content, ok := f.cache.Get(ctx, url); ok {
			metrics.PageCacheHits.Inc()
			return content, true
		}
	}

	body, ok := f.download(ctx, url)
	if !ok {
		return "", false
	}

	content, err := f.extractor.Extract(url, body)
	if err != nil || strings.TrimSpace(content) == "" {
		f.logger.Debug("Content extraction failed",
			zap.String("url", url), zap.Error(err))
		return "", false
	}

	if f.cache != nil {
		f.cache.Set(ctx, url, content)
	}
	return content, true
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Debug("Fetch request build failed", zap.String("url", url), zap.Error(err))
		return nil, false
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("Fetch failed", zap.String("url", url), zap.Error(err))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Debug("Fetch returned non-OK status",
			zap.String("url", url), zap.Int("status", resp.StatusCode))
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		f.logger.Debug("Fetch body read failed", zap.String("url", url), zap.Error(err))
		return nil, false
	}
	if int64(len(body)) > f.maxSize {
		f.logger.Debug("Fetch body exceeds size cap",
			zap.String("url", url), zap.Int64("max_bytes", f.maxSize))
		return nil, false
	}
	return body, true
}
