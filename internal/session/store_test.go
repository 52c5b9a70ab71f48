package session

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestNewSessionIDFormat(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	id := NewSessionID(now)
	assert.Regexp(t, regexp.MustCompile(`^2026-03-14_09-26-53-[0-9a-f]{8}$`), id)

	assert.NotEqual(t, id, NewSessionID(now), "same-second sessions must not collide")
}

func TestSaveAndReadArtifacts(t *testing.T) {
	store := testStore(t)
	id := NewSessionID(time.Now())

	dir, err := store.Create(id)
	require.NoError(t, err)
	assert.Equal(t, id, filepath.Base(dir))

	queries := map[string]string{"original": "go generics", "primary": "go generics tutorial"}
	path, err := store.SaveJSON(id, "queries.json", queries)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "queries.json"), path)

	_, err = store.SaveMarkdown(id, "final_report.md", "# Research Report: go generics\n")
	require.NoError(t, err)

	raw, err := store.ReadArtifact(id, "queries.json")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, queries, got)

	report, err := store.ReadArtifact(id, "final_report.md")
	require.NoError(t, err)
	assert.Contains(t, string(report), "# Research Report: go generics")
}

func TestSaveIsWriteOnce(t *testing.T) {
	store := testStore(t)
	id := NewSessionID(time.Now())
	_, err := store.Create(id)
	require.NoError(t, err)

	_, err = store.SaveMarkdown(id, "final_report.md", "first")
	require.NoError(t, err)

	_, err = store.SaveMarkdown(id, "final_report.md", "second")
	require.ErrorIs(t, err, ErrArtifactExists)

	raw, err := store.ReadArtifact(id, "final_report.md")
	require.NoError(t, err)
	assert.Equal(t, "first", string(raw), "existing artifact must not be overwritten")
}

func TestSaveRejectsPathTraversal(t *testing.T) {
	store := testStore(t)
	id := NewSessionID(time.Now())
	_, err := store.Create(id)
	require.NoError(t, err)

	_, err = store.SaveMarkdown(id, "../escape.md", "x")
	assert.Error(t, err)

	_, err = store.SaveMarkdown("../"+id, "a.md", "x")
	assert.Error(t, err)

	_, err = store.Create("..")
	assert.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	store := testStore(t)

	older := NewSessionID(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC))
	newer := NewSessionID(time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC))
	for _, id := range []string{older, newer} {
		_, err := store.Create(id)
		require.NoError(t, err)
	}
	_, err := store.SaveMarkdown(newer, "final_report.md", "r")
	require.NoError(t, err)

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer, sessions[0].ID)
	assert.Equal(t, []string{"final_report.md"}, sessions[0].Artifacts)
	assert.Equal(t, older, sessions[1].ID)
}
