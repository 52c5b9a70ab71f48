package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level Trident service configuration.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Research ResearchConfig `mapstructure:"research"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServiceConfig contains the HTTP surface settings.
type ServiceConfig struct {
	HTTPPort    int `mapstructure:"http_port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

// TemporalConfig contains Temporal client/worker settings.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	// Worker concurrency knobs
	MaxConcurrentActivities    int `mapstructure:"max_concurrent_activities"`
	MaxConcurrentWorkflowTasks int `mapstructure:"max_concurrent_workflow_tasks"`
}

// SearchConfig configures the Serper search client.
type SearchConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Outbound rate limit, requests per second. Zero disables limiting.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// FetchConfig configures the article content fetcher.
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxContentSize int64         `mapstructure:"max_content_size"`
	// Redis cache for fetched pages. Empty address disables the cache.
	CacheAddr string        `mapstructure:"cache_addr"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// LLMConfig configures the generation provider client.
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionsConfig configures the filesystem session store.
type SessionsConfig struct {
	Dir string `mapstructure:"dir"`
}

// CatalogConfig configures the research-run catalog database.
type CatalogConfig struct {
	// Driver is "sqlite3" or "postgres".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ResearchConfig holds the runtime-tunable research limits.
// These are the values the config manager hot-reloads.
type ResearchConfig struct {
	// NumResults is the number of hits each branch fetches content for.
	NumResults int `mapstructure:"num_results"`
	// ReportArticleCap bounds articles per branch passed to synthesis.
	ReportArticleCap int `mapstructure:"report_article_cap"`
	// ReportPreviewChars bounds each preview passed to synthesis.
	ReportPreviewChars int `mapstructure:"report_preview_chars"`
	// BranchTimeout bounds a single branch activity execution.
	BranchTimeout time.Duration `mapstructure:"branch_timeout"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Load reads the service configuration from TRIDENT_CONFIG (or
// config/trident.yaml when present), applying TRIDENT_* environment
// overrides on top of defaults. A missing config file is not an error;
// the defaults plus environment are enough to run.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TRIDENT")
	v.AutomaticEnv()

	cfgPath := os.Getenv("TRIDENT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/trident.yaml"
	}
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		// No file: defaults + env only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The search key commonly arrives via environment only.
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("SERPER_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the pipeline relies on.
func (c *Config) Validate() error {
	if c.Research.NumResults <= 0 {
		return fmt.Errorf("research.num_results must be positive, got %d", c.Research.NumResults)
	}
	if c.Research.ReportArticleCap <= 0 {
		return fmt.Errorf("research.report_article_cap must be positive, got %d", c.Research.ReportArticleCap)
	}
	if c.Research.ReportPreviewChars <= 0 {
		return fmt.Errorf("research.report_preview_chars must be positive, got %d", c.Research.ReportPreviewChars)
	}
	if c.Catalog.Driver != "sqlite3" && c.Catalog.Driver != "postgres" {
		return fmt.Errorf("catalog.driver must be sqlite3 or postgres, got %q", c.Catalog.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.http_port", 8080)
	v.SetDefault("service.metrics_port", 2112)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "trident-research")
	v.SetDefault("temporal.max_concurrent_activities", 10)
	v.SetDefault("temporal.max_concurrent_workflow_tasks", 10)

	v.SetDefault("search.endpoint", "https://google.serper.dev/search")
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.rate_per_second", 2.0)

	v.SetDefault("fetch.timeout", 20*time.Second)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("fetch.max_content_size", int64(2<<20))
	v.SetDefault("fetch.cache_ttl", 1*time.Hour)

	v.SetDefault("llm.base_url", "http://llm-service:8000")
	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("sessions.dir", "research_sessions")

	v.SetDefault("catalog.driver", "sqlite3")
	v.SetDefault("catalog.dsn", "trident.db")

	v.SetDefault("research.num_results", 5)
	v.SetDefault("research.report_article_cap", 5)
	v.SetDefault("research.report_preview_chars", 300)
	v.SetDefault("research.branch_timeout", 10*time.Minute)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "trident-orchestrator")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
}
