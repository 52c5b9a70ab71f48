package activities

import (
	"context"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/tridentlabs/trident/internal/formatting"
	"github.com/tridentlabs/trident/internal/llm"
	"github.com/tridentlabs/trident/internal/metadata"
	"github.com/tridentlabs/trident/internal/metrics"
	"github.com/tridentlabs/trident/internal/streaming"
	"github.com/tridentlabs/trident/internal/util"
)

const synthesisSystemPrompt = `You are a research analyst writing a final report from
collected web research. Use only the provided findings; do not invent sources.

Structure the report exactly as:
# Research Report: <topic>
## Executive Summary
## Research Methodology
(describe the three-pronged query strategy and what each angle targeted)
## Key Findings
(one subsection per research angle, each ending with a short list of notable sources)
## Synthesis & Conclusions
## Sources & References

Write in clear, direct prose. Cite article titles and URLs from the findings.`

// Defaults when the hot-reload limits are unset.
const (
	defaultArticleCap   = 5
	defaultPreviewChars = 300
)

// SynthesizeReport generates the final markdown report from the three
// branch reports. Unlike branch failures, a synthesis failure is fatal to
// the run, so errors propagate.
func (a *Activities) SynthesizeReport(ctx context.Context, in SynthesisInput) (*SynthesisResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Synthesizing research report", "query", in.Query, "branches", len(in.Branches))

	a.publish(in.WorkflowID, StageSynthesis, streaming.SeverityInfo, "",
		"synthesizing final report")

	resp, err := a.llm.Complete(ctx, llm.Request{
		SystemPrompt: synthesisSystemPrompt,
		Prompt:       a.buildSynthesisPrompt(in),
		AgentID:      "report_synthesizer",
		ModelTier:    "large",
		MaxTokens:    8192,
		Temperature:  0.4,
		WorkflowID:   in.WorkflowID,
	})
	if err != nil {
		a.publish(in.WorkflowID, StageSynthesis, streaming.SeverityError, "",
			fmt.Sprintf("synthesis failed: %v", err))
		return nil, fmt.Errorf("report synthesis failed: %w", err)
	}
	metrics.RecordLLMTokens("report_synthesizer", resp.TokensUsed)

	report := formatting.FormatReportWithSources(resp.Text, collectCitations(in.Branches))

	a.publish(in.WorkflowID, StageSynthesis, streaming.SeveritySuccess, "",
		fmt.Sprintf("report synthesized (%d chars)", len(report)))

	return &SynthesisResult{
		Report:     report,
		ModelUsed:  resp.ModelUsed,
		TokensUsed: resp.TokensUsed,
	}, nil
}

// collectCitations gathers every article URL across branches, in
// canonical branch order, deduplicated.
func collectCitations(branches []BranchReport) []metadata.Citation {
	var candidates []metadata.Citation
	for _, branch := range branches {
		for _, art := range branch.Articles {
			candidates = append(candidates, metadata.Citation{
				Title:     art.Title,
				URL:       art.URL,
				QueryType: branch.QueryType,
			})
		}
	}
	return metadata.Collect(candidates, 0)
}

// buildSynthesisPrompt renders the branch reports into the generation
// prompt, truncated to keep prompt size bounded.
func (a *Activities) buildSynthesisPrompt(in SynthesisInput) string {
	limits := a.limits()
	articleCap := limits.ReportArticleCap
	if articleCap <= 0 {
		articleCap = defaultArticleCap
	}
	previewChars := limits.ReportPreviewChars
	if previewChars <= 0 {
		previewChars = defaultPreviewChars
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Research topic: %s\n\n", in.Query)

	if len(in.Queries.Reasoning) > 0 {
		sb.WriteString("Query strategy:\n")
		for _, queryType := range QueryTypes {
			if why := in.Queries.Reasoning[queryType]; why != "" {
				fmt.Fprintf(&sb, "- %s (%q): %s\n", queryType, in.Queries.QueryFor(queryType), why)
			}
		}
		sb.WriteString("\n")
	}

	for _, branch := range in.Branches {
		fmt.Fprintf(&sb, "## Research angle: %s\nQuery: %s\n", branch.QueryType, branch.Query)
		if branch.Error != "" {
			fmt.Fprintf(&sb, "This angle failed: %s\n\n", branch.Error)
			continue
		}

		articles := branch.Articles
		if len(articles) > articleCap {
			articles = articles[:articleCap]
		}
		for _, art := range articles {
			fmt.Fprintf(&sb, "\n### [%d] %s\nURL: %s\n", art.Position, art.Title, art.URL)
			if art.Snippet != "" {
				fmt.Fprintf(&sb, "Snippet: %s\n", art.Snippet)
			}
			if art.ContentPreview != "" {
				fmt.Fprintf(&sb, "Content: %s\n", util.TruncateString(art.ContentPreview, previewChars, false))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
