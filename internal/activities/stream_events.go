package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/tridentlabs/trident/internal/metrics"
	"github.com/tridentlabs/trident/internal/streaming"
)

// Research event stages.
const (
	StageSession   = "session"
	StageExpand    = "expand"
	StageSearch    = "search"
	StageFetch     = "fetch"
	StageBranch    = "branch"
	StageSynthesis = "synthesis"
	StagePersist   = "persist"
	StageComplete  = "complete"
)

// EmitResearchEventInput carries one progress event through the workflow.
type EmitResearchEventInput struct {
	WorkflowID string             `json:"workflow_id"`
	Stage      string             `json:"stage"`
	Severity   streaming.Severity `json:"severity"`
	Branch     string             `json:"branch,omitempty"`
	Message    string             `json:"message,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// EmitResearchEvent publishes a progress event to the in-process stream
// manager. Best-effort: it never fails the calling workflow.
func (a *Activities) EmitResearchEvent(ctx context.Context, in EmitResearchEventInput) error {
	logger := activity.GetLogger(ctx)
	logger.Debug("Research event",
		"workflow_id", in.WorkflowID,
		"stage", in.Stage,
		"severity", string(in.Severity),
		"branch", in.Branch,
		"message", in.Message,
	)
	a.publish(in.WorkflowID, in.Stage, in.Severity, in.Branch, in.Message)
	return nil
}

// publish sends an event directly on the stream manager; used both by the
// EmitResearchEvent activity and by activities reporting fine-grained
// progress (per-article fetches) without a workflow round trip.
func (a *Activities) publish(workflowID, stage string, severity streaming.Severity, branch, message string) {
	if severity == "" {
		severity = streaming.SeverityInfo
	}
	a.streams.Publish(streaming.Event{
		RunID:     workflowID,
		Stage:     stage,
		Severity:  severity,
		Branch:    branch,
		Message:   message,
		Timestamp: time.Now(),
	})
	metrics.EventsPublished.WithLabelValues(string(severity)).Inc()
}
