package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ChangeHandler is called with the freshly loaded research limits when the
// watched file changes. Returning an error logs the failure but keeps the
// previous limits in effect.
type ChangeHandler func(ResearchConfig) error

// Manager watches a research-limits YAML file and hot-reloads it, so
// operators can tune fetch counts and prompt truncation without a restart.
type Manager struct {
	path     string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	handlers []ChangeHandler

	mu      sync.RWMutex
	current ResearchConfig
	stopCh  chan struct{}
	started bool
}

// NewManager creates a manager for the given limits file, seeded with the
// provided defaults. The file itself may not exist yet.
func NewManager(path string, defaults ResearchConfig, logger *zap.Logger) (*Manager, error) {
	if path == "" {
		return nil, fmt.Errorf("limits file path cannot be empty")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &Manager{
		path:    path,
		logger:  logger,
		watcher: watcher,
		current: defaults,
		stopCh:  make(chan struct{}),
	}, nil
}

// OnChange registers a handler invoked after each successful reload.
func (m *Manager) OnChange(h ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Current returns the limits in effect.
func (m *Manager) Current() ResearchConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Start loads the file if present and begins watching its directory.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	if _, err := os.Stat(m.path); err == nil {
		if err := m.reload(); err != nil {
			m.logger.Warn("Initial limits load failed, keeping defaults",
				zap.String("path", m.path), zap.Error(err))
		}
	}

	// Watch the directory, not the file: editors replace files on save.
	dir := filepath.Dir(m.path)
	if err := m.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go m.loop()
	return nil
}

// Stop shuts down the watcher.
func (m *Manager) Stop() error {
	close(m.stopCh)
	return m.watcher.Close()
}

func (m *Manager) loop() {
	// Debounce bursts of events from editors writing temp files.
	var timer *time.Timer
	for {
		select {
		case <-m.stopCh:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(200*time.Millisecond, func() {
				if err := m.reload(); err != nil {
					m.logger.Warn("Limits reload failed, keeping previous values",
						zap.String("path", m.path), zap.Error(err))
				}
			})
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Limits watcher error", zap.Error(err))
		}
	}
}

func (m *Manager) reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read limits file: %w", err)
	}

	// Start from the current values so a partial file only overrides
	// the keys it names.
	next := m.Current()
	if err := yaml.Unmarshal(data, &limitsDoc{target: &next}); err != nil {
		return fmt.Errorf("parse limits file: %w", err)
	}
	if next.NumResults <= 0 || next.ReportArticleCap <= 0 || next.ReportPreviewChars <= 0 {
		return fmt.Errorf("limits must be positive: %+v", next)
	}

	m.mu.Lock()
	m.current = next
	handlers := make([]ChangeHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	m.logger.Info("Research limits reloaded",
		zap.String("path", m.path),
		zap.Int("num_results", next.NumResults),
		zap.Int("report_article_cap", next.ReportArticleCap),
		zap.Int("report_preview_chars", next.ReportPreviewChars),
	)

	for _, h := range handlers {
		if err := h(next); err != nil {
			m.logger.Warn("Limits change handler failed", zap.Error(err))
		}
	}
	return nil
}

// limitsDoc maps the YAML keys onto an existing ResearchConfig so unset
// keys keep their previous values.
type limitsDoc struct {
	target *ResearchConfig
}

func (d *limitsDoc) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		NumResults         *int           `yaml:"num_results"`
		ReportArticleCap   *int           `yaml:"report_article_cap"`
		ReportPreviewChars *int           `yaml:"report_preview_chars"`
		BranchTimeout      *time.Duration `yaml:"branch_timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.NumResults != nil {
		d.target.NumResults = *raw.NumResults
	}
	if raw.ReportArticleCap != nil {
		d.target.ReportArticleCap = *raw.ReportArticleCap
	}
	if raw.ReportPreviewChars != nil {
		d.target.ReportPreviewChars = *raw.ReportPreviewChars
	}
	if raw.BranchTimeout != nil {
		d.target.BranchTimeout = *raw.BranchTimeout
	}
	return nil
}
