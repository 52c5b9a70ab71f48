package activities

// Query types, in canonical report order.
const (
	QueryTypePrimary     = "primary"
	QueryTypeOrthogonal1 = "orthogonal_1"
	QueryTypeOrthogonal2 = "orthogonal_2"
)

// QueryTypes lists the three branch query types in canonical order.
var QueryTypes = []string{QueryTypePrimary, QueryTypeOrthogonal1, QueryTypeOrthogonal2}

// QuerySet is the expansion of one research topic into three search
// queries plus the expander's reasoning.
type QuerySet struct {
	Original    string            `json:"original"`
	Primary     string            `json:"primary"`
	Orthogonal1 string            `json:"orthogonal_1"`
	Orthogonal2 string            `json:"orthogonal_2"`
	Reasoning   map[string]string `json:"reasoning,omitempty"`
}

// QueryFor returns the query text for a given query type.
func (q QuerySet) QueryFor(queryType string) string {
	switch queryType {
	case QueryTypePrimary:
		return q.Primary
	case QueryTypeOrthogonal1:
		return q.Orthogonal1
	case QueryTypeOrthogonal2:
		return q.Orthogonal2
	}
	return ""
}

// Article is one scraped search result inside a branch report.
type Article struct {
	Position       int    `json:"position"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	Snippet        string `json:"snippet"`
	ContentPreview string `json:"content_preview"`
	ContentLength  int    `json:"content_length"`
	Fetched        bool   `json:"fetched"`
}

// BranchReport is the complete outcome of one research branch. A failed
// branch carries an empty article list and a non-empty Error; it is data,
// not an error value.
type BranchReport struct {
	QueryType string    `json:"query_type"`
	Query     string    `json:"query"`
	Articles  []Article `json:"articles"`
	Error     string    `json:"error,omitempty"`
}

// Succeeded reports whether the branch produced any articles.
func (b BranchReport) Succeeded() bool {
	return b.Error == "" && len(b.Articles) > 0
}

// ExpandQueryInput is the input to the ExpandQuery activity.
type ExpandQueryInput struct {
	Query      string `json:"query"`
	WorkflowID string `json:"workflow_id"`
}

// BranchInput is the input to the ExecuteResearchBranch activity.
type BranchInput struct {
	Query      string `json:"query"`
	QueryType  string `json:"query_type"`
	NumResults int    `json:"num_results"`
	SessionID  string `json:"session_id"`
	WorkflowID string `json:"workflow_id"`
}

// SynthesisInput is the input to the SynthesizeReport activity.
type SynthesisInput struct {
	Query      string         `json:"query"`
	Queries    QuerySet       `json:"queries"`
	Branches   []BranchReport `json:"branches"`
	WorkflowID string         `json:"workflow_id"`
}

// SynthesisResult carries the generated report.
type SynthesisResult struct {
	Report     string `json:"report"`
	ModelUsed  string `json:"model_used,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// CreateSessionInput is the input to the CreateSession activity.
type CreateSessionInput struct {
	Query      string `json:"query"`
	WorkflowID string `json:"workflow_id"`
	NumBranch  int    `json:"num_branches"`
}

// CreateSessionResult identifies the allocated session.
type CreateSessionResult struct {
	SessionID  string `json:"session_id"`
	SessionDir string `json:"session_dir"`
}

// PersistQuerySetInput is the input to the PersistQuerySet activity.
type PersistQuerySetInput struct {
	SessionID  string   `json:"session_id"`
	Queries    QuerySet `json:"queries"`
	WorkflowID string   `json:"workflow_id"`
}

// PersistBranchInput is the input to the PersistBranchReport activity.
type PersistBranchInput struct {
	SessionID  string       `json:"session_id"`
	Report     BranchReport `json:"report"`
	WorkflowID string       `json:"workflow_id"`
}

// PersistReportInput is the input to the PersistReport activity.
type PersistReportInput struct {
	SessionID       string  `json:"session_id"`
	Report          string  `json:"report"`
	SucceededCount  int     `json:"succeeded_count"`
	WorkflowID      string  `json:"workflow_id"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PersistReportResult carries the written report path.
type PersistReportResult struct {
	Path string `json:"path"`
}

// MarkRunFailedInput is the input to the MarkRunFailed activity.
type MarkRunFailedInput struct {
	WorkflowID      string  `json:"workflow_id"`
	Error           string  `json:"error"`
	DurationSeconds float64 `json:"duration_seconds"`
}
