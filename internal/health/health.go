// Package health runs periodic dependency checks and exposes the
// aggregate over HTTP for orchestration probes.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the outcome of a single check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Checker probes one dependency.
type Checker interface {
	Name() string
	// Critical dependencies gate readiness; non-critical ones only
	// show up in the report.
	Critical() bool
	Check(ctx context.Context) error
}

// CheckResult is the cached outcome of the most recent probe.
type CheckResult struct {
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
	Latency   string    `json:"latency"`
	Critical  bool      `json:"critical"`
}

// Manager runs registered checkers on an interval and caches results.
type Manager struct {
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration

	mu       sync.RWMutex
	checkers []Checker
	results  map[string]CheckResult
	stopCh   chan struct{}
	started  bool
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger,
		interval: 15 * time.Second,
		timeout:  5 * time.Second,
		results:  make(map[string]CheckResult),
		stopCh:   make(chan struct{}),
	}
}

// Register adds a checker. Call before Start.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
	m.results[c.Name()] = CheckResult{Status: StatusUnknown, Critical: c.Critical()}
}

// Start runs one immediate round of checks and then probes on the
// manager's interval until Stop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.runChecks(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.runChecks(ctx)
			}
		}
	}()
}

func (m *Manager) Stop() {
	close(m.stopCh)
}

func (m *Manager) runChecks(ctx context.Context) {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	for _, c := range checkers {
		start := time.Now()
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.Check(checkCtx)
		cancel()

		result := CheckResult{
			Status:    StatusHealthy,
			CheckedAt: time.Now(),
			Latency:   time.Since(start).String(),
			Critical:  c.Critical(),
		}
		if err != nil {
			result.Status = StatusUnhealthy
			result.Error = err.Error()
			m.logger.Warn("Health check failed",
				zap.String("checker", c.Name()),
				zap.Error(err),
			)
		}

		m.mu.Lock()
		m.results[c.Name()] = result
		m.mu.Unlock()
	}
}

// Results returns a copy of the latest check outcomes.
func (m *Manager) Results() map[string]CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]CheckResult, len(m.results))
	for k, v := range m.results {
		out[k] = v
	}
	return out
}

// Ready reports whether every critical dependency is healthy.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.results {
		if r.Critical && r.Status != StatusHealthy {
			return false
		}
	}
	return true
}
