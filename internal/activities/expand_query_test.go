package activities

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"

	"github.com/tridentlabs/trident/internal/config"
	"github.com/tridentlabs/trident/internal/llm"
	"github.com/tridentlabs/trident/internal/streaming"
)

// llmStub serves /agent/query with a fixed response body.
func llmStub(t *testing.T, response string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "unavailable", status)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":     true,
			"response":    response,
			"tokens_used": 10,
		})
	}))
}

func expandActivities(t *testing.T, llmURL string) *Activities {
	t.Helper()
	return NewActivities(Deps{
		LLM:     llm.NewClient(llm.Config{BaseURL: llmURL}),
		Streams: streaming.NewManager(16),
		Limits:  func() config.ResearchConfig { return config.ResearchConfig{NumResults: 5} },
		Logger:  zaptest.NewLogger(t),
	})
}

func runExpand(t *testing.T, a *Activities, query string) *QuerySet {
	t.Helper()
	env := (&testsuite.WorkflowTestSuite{}).NewTestActivityEnvironment()
	env.RegisterActivity(a.ExpandQuery)

	val, err := env.ExecuteActivity(a.ExpandQuery, ExpandQueryInput{
		Query:      query,
		WorkflowID: "wf-test",
	})
	require.NoError(t, err)

	var qs QuerySet
	require.NoError(t, val.Get(&qs))
	return &qs
}

func TestExpandQueryParsesBareJSON(t *testing.T) {
	srv := llmStub(t, `{
		"primary": "quantum error correction codes",
		"orthogonal_1": "decoherence mitigation hardware",
		"orthogonal_2": "fault tolerance thresholds theory",
		"reasoning": {"primary": "direct phrasing"}
	}`, http.StatusOK)
	defer srv.Close()

	qs := runExpand(t, expandActivities(t, srv.URL), "quantum error correction")

	assert.Equal(t, "quantum error correction", qs.Original)
	assert.Equal(t, "quantum error correction codes", qs.Primary)
	assert.Equal(t, "decoherence mitigation hardware", qs.Orthogonal1)
	assert.Equal(t, "fault tolerance thresholds theory", qs.Orthogonal2)
	assert.Equal(t, "direct phrasing", qs.Reasoning["primary"])
}

func TestExpandQueryStripsCodeFences(t *testing.T) {
	srv := llmStub(t, "```json\n{\"primary\": \"a\", \"orthogonal_1\": \"b\", \"orthogonal_2\": \"c\"}\n```", http.StatusOK)
	defer srv.Close()

	qs := runExpand(t, expandActivities(t, srv.URL), "topic")
	assert.Equal(t, "a", qs.Primary)
	assert.Equal(t, "b", qs.Orthogonal1)
	assert.Equal(t, "c", qs.Orthogonal2)
}

func TestExpandQueryDropsUnknownReasoningKeys(t *testing.T) {
	srv := llmStub(t, `{
		"primary": "a",
		"orthogonal_1": "b",
		"orthogonal_2": "c",
		"reasoning": {
			"primary": "direct phrasing",
			"original": "echoed input",
			"banana": "hallucinated"
		}
	}`, http.StatusOK)
	defer srv.Close()

	qs := runExpand(t, expandActivities(t, srv.URL), "topic")

	assert.Equal(t, map[string]string{"primary": "direct phrasing"}, qs.Reasoning)
	for key := range qs.Reasoning {
		assert.Contains(t, QueryTypes, key)
	}
}

func TestExpandQueryFallbackOnProse(t *testing.T) {
	srv := llmStub(t, "Here are some queries you could try searching for.", http.StatusOK)
	defer srv.Close()

	qs := runExpand(t, expandActivities(t, srv.URL), "graph databases")

	assert.Equal(t, "graph databases", qs.Primary)
	assert.Equal(t, "graph databases latest research", qs.Orthogonal1)
	assert.Equal(t, "graph databases expert analysis", qs.Orthogonal2)
	assert.NotEmpty(t, qs.Reasoning)
}

func TestExpandQueryFallbackOnMissingField(t *testing.T) {
	srv := llmStub(t, `{"primary": "a", "orthogonal_1": "b", "orthogonal_2": ""}`, http.StatusOK)
	defer srv.Close()

	qs := runExpand(t, expandActivities(t, srv.URL), "topic")
	assert.Equal(t, "topic", qs.Primary)
	assert.Equal(t, "topic latest research", qs.Orthogonal1)
}

func TestExpandQueryFallbackOnServiceError(t *testing.T) {
	srv := llmStub(t, "", http.StatusServiceUnavailable)
	defer srv.Close()

	qs := runExpand(t, expandActivities(t, srv.URL), "topic")
	assert.Equal(t, "topic", qs.Primary)
	assert.Equal(t, "topic expert analysis", qs.Orthogonal2)
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"{\"a\":1}", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stripCodeFences(tc.in), "input %q", tc.in)
	}
}
