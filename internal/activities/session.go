package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/tridentlabs/trident/internal/catalog"
	"github.com/tridentlabs/trident/internal/metrics"
	"github.com/tridentlabs/trident/internal/session"
	"github.com/tridentlabs/trident/internal/streaming"
)

// CreateSession allocates the session directory for a research run and
// records the run in the catalog.
func (a *Activities) CreateSession(ctx context.Context, in CreateSessionInput) (*CreateSessionResult, error) {
	logger := activity.GetLogger(ctx)

	sessionID := session.NewSessionID(time.Now())
	dir, err := a.sessions.Create(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if a.catalog != nil {
		run := &catalog.Run{
			ID:          in.WorkflowID,
			SessionID:   sessionID,
			Topic:       in.Query,
			BranchCount: in.NumBranch,
		}
		if err := a.catalog.RecordRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	logger.Info("Research session created",
		"session_id", sessionID,
		"session_dir", dir,
	)
	a.publish(in.WorkflowID, StageSession, streaming.SeverityInfo, "",
		fmt.Sprintf("session %s created", sessionID))

	return &CreateSessionResult{SessionID: sessionID, SessionDir: dir}, nil
}

// MarkRunFailed records a terminal failure in the catalog.
func (a *Activities) MarkRunFailed(ctx context.Context, in MarkRunFailedInput) error {
	metrics.RecordRunMetrics("failed", in.DurationSeconds)
	if a.catalog == nil {
		return nil
	}
	if err := a.catalog.MarkFailed(ctx, in.WorkflowID, in.Error); err != nil {
		activity.GetLogger(ctx).Warn("Failed to mark run failed", "error", err)
	}
	return nil
}
