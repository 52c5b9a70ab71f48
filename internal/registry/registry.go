package registry

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/tridentlabs/trident/internal/activities"
	"github.com/tridentlabs/trident/internal/constants"
	"github.com/tridentlabs/trident/internal/workflows"
)

// ResearchRegistry wires the research workflow and its activities onto
// a Temporal worker.
type ResearchRegistry struct {
	acts   *activities.Activities
	logger *zap.Logger
}

func NewResearchRegistry(acts *activities.Activities, logger *zap.Logger) *ResearchRegistry {
	return &ResearchRegistry{
		acts:   acts,
		logger: logger,
	}
}

// RegisterWorkflows registers all workflows
func (r *ResearchRegistry) RegisterWorkflows(w worker.Worker) error {
	w.RegisterWorkflow(workflows.ResearchWorkflow)
	r.logger.Info("Registered research workflow")
	return nil
}

// RegisterActivities registers all activities under their stable names.
// Names must not change once runs exist: Temporal replays look
// activities up by name.
func (r *ResearchRegistry) RegisterActivities(w worker.Worker) error {
	register := func(fn interface{}, name string) {
		w.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}

	register(r.acts.CreateSession, constants.CreateSessionActivity)
	register(r.acts.MarkRunFailed, constants.MarkRunFailedActivity)
	register(r.acts.ExpandQuery, constants.ExpandQueryActivity)
	register(r.acts.ExecuteResearchBranch, constants.ExecuteResearchBranchActivity)
	register(r.acts.SynthesizeReport, constants.SynthesizeReportActivity)
	register(r.acts.PersistQuerySet, constants.PersistQuerySetActivity)
	register(r.acts.PersistBranchReport, constants.PersistBranchReportActivity)
	register(r.acts.PersistReport, constants.PersistReportActivity)
	register(r.acts.EmitResearchEvent, constants.EmitResearchEventActivity)

	r.logger.Info("Registered research activities")
	return nil
}
