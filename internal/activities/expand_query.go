package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/tridentlabs/trident/internal/llm"
	"github.com/tridentlabs/trident/internal/metrics"
	"github.com/tridentlabs/trident/internal/streaming"
	"github.com/tridentlabs/trident/internal/util"
)

const expandSystemPrompt = `You are a research query strategist. Given a research topic,
produce three web search queries:
1. "primary": the most direct, effective phrasing of the topic itself.
2. "orthogonal_1": a query approaching the topic from a substantially different angle
   (adjacent discipline, opposing viewpoint, upstream cause, or downstream effect).
3. "orthogonal_2": a query from yet another distinct angle, overlapping with neither
   of the first two.

Respond with a bare JSON object and nothing else. No markdown, no code fences, no prose:
{
  "primary": "...",
  "orthogonal_1": "...",
  "orthogonal_2": "...",
  "reasoning": {
    "primary": "one sentence",
    "orthogonal_1": "one sentence",
    "orthogonal_2": "one sentence"
  }
}`

// ExpandQuery expands the research topic into three search queries. It
// never fails: when the generation call or its output is unusable the
// deterministic fallback expansion is returned instead.
func (a *Activities) ExpandQuery(ctx context.Context, in ExpandQueryInput) (*QuerySet, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Expanding research query", "query", in.Query)

	a.publish(in.WorkflowID, StageExpand, streaming.SeverityInfo, "",
		"expanding query into search variants")

	resp, err := a.llm.Complete(ctx, llm.Request{
		SystemPrompt: expandSystemPrompt,
		Prompt:       fmt.Sprintf("Research topic: %s", in.Query),
		AgentID:      "query_expander",
		ModelTier:    "small",
		MaxTokens:    1024,
		Temperature:  0.3,
		WorkflowID:   in.WorkflowID,
	})
	if err != nil {
		logger.Warn("Query expansion call failed, using fallback", "error", err)
		return a.fallbackExpansion(in), nil
	}
	metrics.RecordLLMTokens("query_expander", resp.TokensUsed)

	qs, err := parseQuerySet(resp.Text, in.Query)
	if err != nil {
		logger.Warn("Query expansion output unusable, using fallback", "error", err)
		return a.fallbackExpansion(in), nil
	}

	a.publish(in.WorkflowID, StageExpand, streaming.SeveritySuccess, "",
		fmt.Sprintf("expanded into: %q / %q / %q", qs.Primary, qs.Orthogonal1, qs.Orthogonal2))
	return qs, nil
}

func (a *Activities) fallbackExpansion(in ExpandQueryInput) *QuerySet {
	metrics.ExpansionFallbacks.Inc()
	a.publish(in.WorkflowID, StageExpand, streaming.SeverityWarning, "",
		"query expansion unavailable, using fallback variants")
	return &QuerySet{
		Original:    in.Query,
		Primary:     in.Query,
		Orthogonal1: in.Query + " latest research",
		Orthogonal2: in.Query + " expert analysis",
		Reasoning: map[string]string{
			QueryTypePrimary:     "original query used directly",
			QueryTypeOrthogonal1: "recent-developments angle",
			QueryTypeOrthogonal2: "expert-commentary angle",
		},
	}
}

// parseQuerySet extracts a QuerySet from generator output, tolerating
// code fences around the JSON object.
func parseQuerySet(text, original string) (*QuerySet, error) {
	cleaned := stripCodeFences(text)

	var qs QuerySet
	if err := json.Unmarshal([]byte(cleaned), &qs); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}

	qs.Original = original
	qs.Primary = strings.TrimSpace(qs.Primary)
	qs.Orthogonal1 = strings.TrimSpace(qs.Orthogonal1)
	qs.Orthogonal2 = strings.TrimSpace(qs.Orthogonal2)
	if qs.Primary == "" || qs.Orthogonal1 == "" || qs.Orthogonal2 == "" {
		return nil, fmt.Errorf("expansion missing one or more queries")
	}
	// Reasoning is keyed by query type only; generators pad the map with
	// extra keys that would otherwise leak into the persisted artifacts.
	for key := range qs.Reasoning {
		if !util.ContainsString(QueryTypes, key) {
			delete(qs.Reasoning, key)
		}
	}
	return &qs, nil
}

// stripCodeFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.ContainsAny(s[:idx], "{}") {
		// Drop the language tag line (e.g. "json").
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
