package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/tridentlabs/trident/internal/metrics"
	"github.com/tridentlabs/trident/internal/streaming"
)

// Artifact names within a session directory.
const (
	artifactQueries = "queries.json"
	artifactReport  = "final_report.md"
)

func branchArtifactName(queryType string) string {
	return fmt.Sprintf("research_results_%s.json", queryType)
}

// PersistQuerySet writes queries.json for the session.
func (a *Activities) PersistQuerySet(ctx context.Context, in PersistQuerySetInput) error {
	logger := activity.GetLogger(ctx)
	if _, err := a.sessions.SaveJSON(in.SessionID, artifactQueries, in.Queries); err != nil {
		return fmt.Errorf("failed to persist query set: %w", err)
	}
	logger.Info("Query set persisted", "session_id", in.SessionID)
	a.publish(in.WorkflowID, StagePersist, streaming.SeverityInfo, "",
		artifactQueries+" saved")
	return nil
}

// PersistBranchReport writes research_results_<type>.json for one branch.
func (a *Activities) PersistBranchReport(ctx context.Context, in PersistBranchInput) error {
	logger := activity.GetLogger(ctx)
	name := branchArtifactName(in.Report.QueryType)
	if _, err := a.sessions.SaveJSON(in.SessionID, name, in.Report); err != nil {
		return fmt.Errorf("failed to persist branch report: %w", err)
	}
	logger.Info("Branch report persisted",
		"session_id", in.SessionID,
		"query_type", in.Report.QueryType,
		"articles", len(in.Report.Articles),
	)
	a.publish(in.WorkflowID, StagePersist, streaming.SeverityInfo, in.Report.QueryType,
		name+" saved")
	return nil
}

// PersistReport writes final_report.md and finalizes the catalog row.
func (a *Activities) PersistReport(ctx context.Context, in PersistReportInput) (*PersistReportResult, error) {
	logger := activity.GetLogger(ctx)

	path, err := a.sessions.SaveMarkdown(in.SessionID, artifactReport, in.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	if a.catalog != nil {
		if err := a.catalog.MarkCompleted(ctx, in.WorkflowID, path, in.SucceededCount); err != nil {
			logger.Warn("Failed to finalize catalog row", "error", err)
		}
	}

	metrics.RecordRunMetrics("completed", in.DurationSeconds)
	logger.Info("Final report persisted",
		"session_id", in.SessionID,
		"path", path,
	)
	a.publish(in.WorkflowID, StagePersist, streaming.SeveritySuccess, "",
		artifactReport+" saved")
	return &PersistReportResult{Path: path}, nil
}
