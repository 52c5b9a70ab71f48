// Package activities implements the Temporal activities of the research
// pipeline: query expansion, the search-and-scrape branch, report
// synthesis, artifact persistence, and progress events.
package activities

import (
	"github.com/tridentlabs/trident/internal/catalog"
	"github.com/tridentlabs/trident/internal/config"
	"github.com/tridentlabs/trident/internal/fetch"
	"github.com/tridentlabs/trident/internal/llm"
	"github.com/tridentlabs/trident/internal/search"
	"github.com/tridentlabs/trident/internal/session"
	"github.com/tridentlabs/trident/internal/streaming"
	"go.uber.org/zap"
)

// Deps holds the service dependencies injected into the activities.
type Deps struct {
	Search   *search.Client
	Fetcher  *fetch.Fetcher
	LLM      *llm.Client
	Sessions *session.Store
	Catalog  *catalog.Store
	Streams  *streaming.Manager
	// Limits returns the current research limits; backed by the
	// hot-reload config manager in production.
	Limits func() config.ResearchConfig
	Logger *zap.Logger
}

// Activities holds dependencies for the pipeline activities.
type Activities struct {
	search   *search.Client
	fetcher  *fetch.Fetcher
	llm      *llm.Client
	sessions *session.Store
	catalog  *catalog.Store
	streams  *streaming.Manager
	limits   func() config.ResearchConfig
	logger   *zap.Logger
}

// NewActivities creates a new activities instance with dependencies.
func NewActivities(deps Deps) *Activities {
	streams := deps.Streams
	if streams == nil {
		streams = streaming.Get()
	}
	limits := deps.Limits
	if limits == nil {
		limits = func() config.ResearchConfig { return config.ResearchConfig{} }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{
		search:   deps.Search,
		fetcher:  deps.Fetcher,
		llm:      deps.LLM,
		sessions: deps.Sessions,
		catalog:  deps.Catalog,
		streams:  streams,
		limits:   limits,
		logger:   logger,
	}
}
