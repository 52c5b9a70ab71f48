package activities

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"

	"github.com/tridentlabs/trident/internal/config"
	"github.com/tridentlabs/trident/internal/fetch"
	"github.com/tridentlabs/trident/internal/search"
	"github.com/tridentlabs/trident/internal/streaming"
)

// serperStub serves the Serper search endpoint with fixed organic hits.
func serperStub(t *testing.T, organic []map[string]string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "search unavailable", status)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"organic": organic})
	}))
}

// articleStub serves HTML pages; paths ending in /missing return 404.
func articleStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		body := strings.Repeat(fmt.Sprintf("Long-form article text about %s. ", r.URL.Path), 20)
		fmt.Fprintf(w, "<html><head><title>Page</title></head><body><article><h1>Page</h1><p>%s</p></article></body></html>", body)
	}))
}

func branchActivities(t *testing.T, searchURL string) *Activities {
	t.Helper()
	return NewActivities(Deps{
		Search: search.NewClient(search.Config{
			Endpoint: searchURL,
			APIKey:   "test-key",
			Timeout:  5 * time.Second,
		}),
		Fetcher: fetch.NewFetcher(fetch.Config{
			UserAgent:      "trident-test/1.0",
			MaxContentSize: 1 << 20,
		}, nil, zaptest.NewLogger(t)),
		Streams: streaming.NewManager(64),
		Limits:  func() config.ResearchConfig { return config.ResearchConfig{NumResults: 5} },
		Logger:  zaptest.NewLogger(t),
	})
}

func runBranch(t *testing.T, a *Activities, in BranchInput) *BranchReport {
	t.Helper()
	env := (&testsuite.WorkflowTestSuite{}).NewTestActivityEnvironment()
	env.RegisterActivity(a.ExecuteResearchBranch)

	val, err := env.ExecuteActivity(a.ExecuteResearchBranch, in)
	require.NoError(t, err, "branch failures must be data, not activity errors")

	var report BranchReport
	require.NoError(t, val.Get(&report))
	return &report
}

func TestExecuteResearchBranchBuildsArticles(t *testing.T) {
	pages := articleStub(t)
	defer pages.Close()

	srv := serperStub(t, []map[string]string{
		{"title": "First", "link": pages.URL + "/one", "snippet": "first snippet"},
		{"title": "Second", "link": pages.URL + "/missing", "snippet": "second snippet"},
	}, http.StatusOK)
	defer srv.Close()

	report := runBranch(t, branchActivities(t, srv.URL), BranchInput{
		Query:      "go concurrency patterns",
		QueryType:  QueryTypePrimary,
		NumResults: 5,
		SessionID:  "s1",
		WorkflowID: "wf-1",
	})

	assert.Empty(t, report.Error)
	assert.Equal(t, QueryTypePrimary, report.QueryType)
	require.Len(t, report.Articles, 2)

	first := report.Articles[0]
	assert.Equal(t, 1, first.Position)
	assert.True(t, first.Fetched)
	assert.NotZero(t, first.ContentLength)
	assert.NotEmpty(t, first.ContentPreview)
	assert.LessOrEqual(t, len([]rune(first.ContentPreview)), previewRunes)

	// Fetch miss keeps the article, preview falls back to the snippet.
	second := report.Articles[1]
	assert.Equal(t, 2, second.Position)
	assert.False(t, second.Fetched)
	assert.Equal(t, "second snippet", second.ContentPreview)
	assert.Zero(t, second.ContentLength)
}

func TestExecuteResearchBranchSearchFailure(t *testing.T) {
	srv := serperStub(t, nil, http.StatusForbidden)
	defer srv.Close()

	report := runBranch(t, branchActivities(t, srv.URL), BranchInput{
		Query:      "q",
		QueryType:  QueryTypeOrthogonal1,
		NumResults: 3,
		WorkflowID: "wf-1",
	})

	assert.Contains(t, report.Error, "search failed")
	assert.Empty(t, report.Articles)
	assert.Equal(t, QueryTypeOrthogonal1, report.QueryType)
	assert.Equal(t, "q", report.Query)
}

func TestExecuteResearchBranchNoResults(t *testing.T) {
	srv := serperStub(t, []map[string]string{}, http.StatusOK)
	defer srv.Close()

	report := runBranch(t, branchActivities(t, srv.URL), BranchInput{
		Query:      "q",
		QueryType:  QueryTypeOrthogonal2,
		NumResults: 3,
		WorkflowID: "wf-1",
	})

	assert.Equal(t, "no search results", report.Error)
	assert.Empty(t, report.Articles)
	assert.False(t, report.Succeeded())
}

func TestExecuteResearchBranchEmitsProgressEvents(t *testing.T) {
	pages := articleStub(t)
	defer pages.Close()

	srv := serperStub(t, []map[string]string{
		{"title": "Only", "link": pages.URL + "/one", "snippet": "s"},
	}, http.StatusOK)
	defer srv.Close()

	a := branchActivities(t, srv.URL)
	runBranch(t, a, BranchInput{
		Query:      "q",
		QueryType:  QueryTypePrimary,
		NumResults: 1,
		WorkflowID: "wf-events",
	})

	events := a.streams.ReplaySince("wf-events", 0)
	require.NotEmpty(t, events)
	stages := make(map[string]bool)
	for _, evt := range events {
		stages[evt.Stage] = true
	}
	assert.True(t, stages[StageBranch])
	assert.True(t, stages[StageSearch])
	assert.True(t, stages[StageFetch])
}
