package constants

// Activity names used for workflow registration and execution.
// Using constants eliminates magic strings and ensures consistency.
const (
	// Session lifecycle
	CreateSessionActivity = "CreateSession"
	MarkRunFailedActivity = "MarkRunFailed"

	// Query expansion
	ExpandQueryActivity = "ExpandQuery"

	// Research branches
	ExecuteResearchBranchActivity = "ExecuteResearchBranch"

	// Report synthesis
	SynthesizeReportActivity = "SynthesizeReport"

	// Artifact persistence
	PersistQuerySetActivity     = "PersistQuerySet"
	PersistBranchReportActivity = "PersistBranchReport"
	PersistReportActivity       = "PersistReport"

	// Streaming
	EmitResearchEventActivity = "EmitResearchEvent"
)
