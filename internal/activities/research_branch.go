package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/tridentlabs/trident/internal/metrics"
	"github.com/tridentlabs/trident/internal/streaming"
	"github.com/tridentlabs/trident/internal/util"
)

// previewRunes caps the stored content preview per article.
const previewRunes = 500

// ExecuteResearchBranch runs one search-and-scrape branch: a single search
// for the branch query, then a strictly sequential fetch of the top hits.
// The returned error is always nil; every failure mode is recorded inside
// the BranchReport so sibling branches are unaffected.
func (a *Activities) ExecuteResearchBranch(ctx context.Context, in BranchInput) (*BranchReport, error) {
	logger := activity.GetLogger(ctx)
	started := time.Now()

	report := &BranchReport{
		QueryType: in.QueryType,
		Query:     in.Query,
		Articles:  []Article{},
	}

	limit := in.NumResults
	if limit <= 0 {
		limit = a.limits().NumResults
	}

	logger.Info("Research branch starting",
		"query_type", in.QueryType,
		"query", in.Query,
		"limit", limit,
	)
	a.publish(in.WorkflowID, StageBranch, streaming.SeverityInfo, in.QueryType,
		fmt.Sprintf("searching %q", in.Query))

	searchStart := time.Now()
	hits, err := a.search.Search(ctx, in.Query, limit)
	if err != nil {
		metrics.RecordSearchMetrics("error", time.Since(searchStart).Seconds())
		report.Error = fmt.Sprintf("search failed: %v", err)
		logger.Warn("Research branch search failed",
			"query_type", in.QueryType, "error", err)
		a.publish(in.WorkflowID, StageBranch, streaming.SeverityError, in.QueryType, report.Error)
		metrics.RecordBranchMetrics(in.QueryType, "failed", time.Since(started).Seconds())
		return report, nil
	}
	metrics.RecordSearchMetrics("ok", time.Since(searchStart).Seconds())

	if len(hits) == 0 {
		report.Error = "no search results"
		a.publish(in.WorkflowID, StageBranch, streaming.SeverityWarning, in.QueryType, report.Error)
		metrics.RecordBranchMetrics(in.QueryType, "empty", time.Since(started).Seconds())
		return report, nil
	}

	a.publish(in.WorkflowID, StageSearch, streaming.SeveritySuccess, in.QueryType,
		fmt.Sprintf("found %d results", len(hits)))

	for i, hit := range hits {
		article := Article{
			Position: hit.Position,
			Title:    hit.Title,
			URL:      hit.URL,
			Snippet:  hit.Snippet,
		}

		content, ok := a.fetcher.Fetch(ctx, hit.URL)
		if ok {
			article.Fetched = true
			article.ContentLength = len(content)
			article.ContentPreview = util.TruncateString(content, previewRunes, false)
			metrics.PagesFetched.WithLabelValues("ok").Inc()
		} else {
			article.ContentPreview = hit.Snippet
			metrics.PagesFetched.WithLabelValues("failed").Inc()
		}
		report.Articles = append(report.Articles, article)

		activity.RecordHeartbeat(ctx, i+1)
		a.publish(in.WorkflowID, StageFetch, fetchSeverity(ok), in.QueryType,
			fmt.Sprintf("article %d/%d: %s", i+1, len(hits), hit.URL))
	}

	fetched := 0
	for _, art := range report.Articles {
		if art.Fetched {
			fetched++
		}
	}
	logger.Info("Research branch complete",
		"query_type", in.QueryType,
		"articles", len(report.Articles),
		"fetched", fetched,
	)
	a.publish(in.WorkflowID, StageBranch, streaming.SeveritySuccess, in.QueryType,
		fmt.Sprintf("branch complete: %d articles, %d with content", len(report.Articles), fetched))
	metrics.RecordBranchMetrics(in.QueryType, "ok", time.Since(started).Seconds())

	return report, nil
}

func fetchSeverity(ok bool) streaming.Severity {
	if ok {
		return streaming.SeverityInfo
	}
	return streaming.SeverityWarning
}
