package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func defaultLimits() ResearchConfig {
	return ResearchConfig{
		NumResults:         5,
		ReportArticleCap:   5,
		ReportPreviewChars: 300,
		BranchTimeout:      10 * time.Minute,
	}
}

func TestManagerDefaultsWithoutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	m, err := NewManager(path, defaultLimits(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	assert.Equal(t, defaultLimits(), m.Current())
}

func TestManagerLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_results: 8\n"), 0o644))

	m, err := NewManager(path, defaultLimits(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	got := m.Current()
	assert.Equal(t, 8, got.NumResults)
	// Unnamed keys keep their defaults.
	assert.Equal(t, 300, got.ReportPreviewChars)
}

func TestManagerHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")

	m, err := NewManager(path, defaultLimits(), zaptest.NewLogger(t))
	require.NoError(t, err)

	changed := make(chan ResearchConfig, 1)
	m.OnChange(func(rc ResearchConfig) error {
		select {
		case changed <- rc:
		default:
		}
		return nil
	})

	require.NoError(t, m.Start())
	defer m.Stop()

	require.NoError(t, os.WriteFile(path, []byte("num_results: 2\nreport_article_cap: 3\n"), 0o644))

	select {
	case rc := <-changed:
		assert.Equal(t, 2, rc.NumResults)
		assert.Equal(t, 3, rc.ReportArticleCap)
		assert.Equal(t, 2, m.Current().NumResults)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestManagerRejectsInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_results: 4\n"), 0o644))

	m, err := NewManager(path, defaultLimits(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	require.Equal(t, 4, m.Current().NumResults)

	require.NoError(t, os.WriteFile(path, []byte("num_results: -1\n"), 0o644))
	// Invalid content is rejected; previous values stay in effect.
	assert.Eventually(t, func() bool {
		return m.Current().NumResults == 4
	}, 2*time.Second, 50*time.Millisecond)
}
