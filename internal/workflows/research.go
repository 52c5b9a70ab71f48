package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/tridentlabs/trident/internal/activities"
	"github.com/tridentlabs/trident/internal/constants"
	"github.com/tridentlabs/trident/internal/streaming"
)

// Timeouts per pipeline stage.
const (
	sessionTimeout   = 30 * time.Second
	expandTimeout    = 3 * time.Minute
	branchTimeout    = 10 * time.Minute
	synthesisTimeout = 5 * time.Minute
	persistTimeout   = 30 * time.Second
	emitTimeout      = 5 * time.Second
)

// taggedBranch carries one branch outcome through the join channel.
type taggedBranch struct {
	QueryType string
	Report    activities.BranchReport
}

// ResearchWorkflow runs the full research pipeline: session setup, query
// expansion, three concurrent search-and-scrape branches, artifact
// persistence, and report synthesis. Branch failures are contained; only
// faults outside the branch fan-out abort the run.
func ResearchWorkflow(ctx workflow.Context, input ResearchInput) (ResearchResult, error) {
	logger := workflow.GetLogger(ctx)

	if input.Query == "" {
		return ResearchResult{}, temporal.NewNonRetryableApplicationError(
			"research query must not be empty", "InvalidInput", nil)
	}

	workflowID := workflow.GetInfo(ctx).WorkflowExecution.ID
	startedAt := workflow.Now(ctx)
	logger.Info("Starting research run",
		"query", input.Query,
		"num_results", input.NumResults,
	)

	emitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: emitTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	emit := func(stage string, severity streaming.Severity, branch, message string) {
		_ = workflow.ExecuteActivity(emitCtx, constants.EmitResearchEventActivity, activities.EmitResearchEventInput{
			WorkflowID: workflowID,
			Stage:      stage,
			Severity:   severity,
			Branch:     branch,
			Message:    message,
			Timestamp:  workflow.Now(ctx),
		}).Get(ctx, nil)
	}

	// Session allocation.
	sessionCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: sessionTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
			InitialInterval: time.Second,
		},
	})
	var sess activities.CreateSessionResult
	if err := workflow.ExecuteActivity(sessionCtx, constants.CreateSessionActivity, activities.CreateSessionInput{
		Query:      input.Query,
		WorkflowID: workflowID,
		NumBranch:  len(activities.QueryTypes),
	}).Get(ctx, &sess); err != nil {
		return ResearchResult{}, fmt.Errorf("failed to create session: %w", err)
	}

	result := ResearchResult{
		SessionID:  sess.SessionID,
		SessionDir: sess.SessionDir,
	}

	// Query expansion. The activity is fallback-protected and only fails
	// on infrastructure faults, which are fatal here.
	expandCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: expandTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    2,
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
	var queries activities.QuerySet
	if err := workflow.ExecuteActivity(expandCtx, constants.ExpandQueryActivity, activities.ExpandQueryInput{
		Query:      input.Query,
		WorkflowID: workflowID,
	}).Get(ctx, &queries); err != nil {
		return result, failRun(ctx, emitCtx, workflowID, startedAt, fmt.Errorf("query expansion failed: %w", err))
	}
	result.Queries = queries

	persistCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: persistTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
			InitialInterval: time.Second,
			// A second write of the same artifact must not be retried
			// into an ErrArtifactExists loop.
			NonRetryableErrorTypes: []string{"artifact already exists"},
		},
	})
	if err := workflow.ExecuteActivity(persistCtx, constants.PersistQuerySetActivity, activities.PersistQuerySetInput{
		SessionID:  sess.SessionID,
		Queries:    queries,
		WorkflowID: workflowID,
	}).Get(ctx, nil); err != nil {
		return result, failRun(ctx, emitCtx, workflowID, startedAt, fmt.Errorf("failed to persist query set: %w", err))
	}

	// Branch fan-out: one goroutine per query type, joined over a channel.
	// An activity-level fault (timeout, unexpected error) is converted to
	// a failed BranchReport at this boundary so siblings are unaffected.
	branchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: branchTimeout,
		HeartbeatTimeout:    60 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	resultChan := workflow.NewChannel(ctx)

	for _, queryType := range activities.QueryTypes {
		queryType := queryType
		branchQuery := queries.QueryFor(queryType)

		workflow.Go(ctx, func(gCtx workflow.Context) {
			var report activities.BranchReport
			err := workflow.ExecuteActivity(branchCtx, constants.ExecuteResearchBranchActivity, activities.BranchInput{
				Query:      branchQuery,
				QueryType:  queryType,
				NumResults: input.NumResults,
				SessionID:  sess.SessionID,
				WorkflowID: workflowID,
			}).Get(gCtx, &report)
			if err != nil {
				logger.Warn("Research branch activity faulted",
					"query_type", queryType, "error", err)
				report = activities.BranchReport{
					QueryType: queryType,
					Query:     branchQuery,
					Articles:  []activities.Article{},
					Error:     fmt.Sprintf("branch execution faulted: %v", err),
				}
			}
			resultChan.Send(gCtx, taggedBranch{QueryType: queryType, Report: report})
		})
	}

	// Join all three and reorder into canonical query-type order.
	byType := make(map[string]activities.BranchReport, len(activities.QueryTypes))
	for range activities.QueryTypes {
		var tagged taggedBranch
		resultChan.Receive(ctx, &tagged)
		byType[tagged.QueryType] = tagged.Report
		emit(activities.StageBranch, streaming.SeverityInfo, tagged.QueryType,
			fmt.Sprintf("%d/%d branches complete", len(byType), len(activities.QueryTypes)))
	}
	for _, queryType := range activities.QueryTypes {
		result.Branches = append(result.Branches, byType[queryType])
	}

	for _, report := range result.Branches {
		if err := workflow.ExecuteActivity(persistCtx, constants.PersistBranchReportActivity, activities.PersistBranchInput{
			SessionID:  sess.SessionID,
			Report:     report,
			WorkflowID: workflowID,
		}).Get(ctx, nil); err != nil {
			return result, failRun(ctx, emitCtx, workflowID, startedAt, fmt.Errorf("failed to persist branch report: %w", err))
		}
	}

	// Synthesis is the one unshielded call: its failure fails the run.
	synthCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: synthesisTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    2,
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
	var synthesis activities.SynthesisResult
	if err := workflow.ExecuteActivity(synthCtx, constants.SynthesizeReportActivity, activities.SynthesisInput{
		Query:      input.Query,
		Queries:    queries,
		Branches:   result.Branches,
		WorkflowID: workflowID,
	}).Get(ctx, &synthesis); err != nil {
		return result, failRun(ctx, emitCtx, workflowID, startedAt, fmt.Errorf("report synthesis failed: %w", err))
	}
	result.Report = synthesis.Report

	var persisted activities.PersistReportResult
	if err := workflow.ExecuteActivity(persistCtx, constants.PersistReportActivity, activities.PersistReportInput{
		SessionID:       sess.SessionID,
		Report:          synthesis.Report,
		SucceededCount:  result.SucceededBranches(),
		WorkflowID:      workflowID,
		DurationSeconds: workflow.Now(ctx).Sub(startedAt).Seconds(),
	}).Get(ctx, &persisted); err != nil {
		return result, failRun(ctx, emitCtx, workflowID, startedAt, fmt.Errorf("failed to persist report: %w", err))
	}
	result.ReportPath = persisted.Path

	emit(activities.StageComplete, streaming.SeveritySuccess, "",
		fmt.Sprintf("research complete: %d/%d branches succeeded",
			result.SucceededBranches(), len(result.Branches)))
	logger.Info("Research run complete",
		"session_id", result.SessionID,
		"succeeded_branches", result.SucceededBranches(),
	)
	return result, nil
}

// failRun records the terminal failure in the catalog and emits the error
// event before the workflow returns it.
func failRun(ctx workflow.Context, emitCtx workflow.Context, workflowID string, startedAt time.Time, runErr error) error {
	markCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: persistTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	})
	_ = workflow.ExecuteActivity(markCtx, constants.MarkRunFailedActivity, activities.MarkRunFailedInput{
		WorkflowID:      workflowID,
		Error:           runErr.Error(),
		DurationSeconds: workflow.Now(ctx).Sub(startedAt).Seconds(),
	}).Get(ctx, nil)
	_ = workflow.ExecuteActivity(emitCtx, constants.EmitResearchEventActivity, activities.EmitResearchEventInput{
		WorkflowID: workflowID,
		Stage:      activities.StageComplete,
		Severity:   streaming.SeverityError,
		Message:    runErr.Error(),
		Timestamp:  workflow.Now(ctx),
	}).Get(ctx, nil)
	return runErr
}
