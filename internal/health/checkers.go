package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/tridentlabs/trident/internal/catalog"
)

// CatalogChecker probes the research-run catalog database.
type CatalogChecker struct {
	store *catalog.Store
}

func NewCatalogChecker(store *catalog.Store) *CatalogChecker {
	return &CatalogChecker{store: store}
}

func (c *CatalogChecker) Name() string   { return "catalog" }
func (c *CatalogChecker) Critical() bool { return true }

func (c *CatalogChecker) Check(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// CacheChecker probes the Redis page cache. The cache is best-effort,
// so losing it degrades fetch performance without breaking runs.
type CacheChecker struct {
	client *redis.Client
}

func NewCacheChecker(client *redis.Client) *CacheChecker {
	return &CacheChecker{client: client}
}

func (c *CacheChecker) Name() string   { return "page_cache" }
func (c *CacheChecker) Critical() bool { return false }

func (c *CacheChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// LLMChecker probes the generation service. Expansion falls back to
// deterministic variants without it, but synthesis cannot complete.
type LLMChecker struct {
	baseURL string
	http    *http.Client
}

func NewLLMChecker(baseURL string) *LLMChecker {
	return &LLMChecker{baseURL: baseURL, http: &http.Client{}}
}

func (c *LLMChecker) Name() string   { return "llm_service" }
func (c *LLMChecker) Critical() bool { return false }

func (c *LLMChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm service returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// SessionDirChecker verifies the artifact directory is writable.
type SessionDirChecker struct {
	dir string
}

func NewSessionDirChecker(dir string) *SessionDirChecker {
	return &SessionDirChecker{dir: dir}
}

func (c *SessionDirChecker) Name() string   { return "session_store" }
func (c *SessionDirChecker) Critical() bool { return true }

func (c *SessionDirChecker) Check(ctx context.Context) error {
	probe := filepath.Join(c.dir, ".health_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("session dir not writable: %w", err)
	}
	return os.Remove(probe)
}
