// Package workflows contains the durable research pipeline.
package workflows

import (
	"github.com/tridentlabs/trident/internal/activities"
)

// ResearchInput starts one research run.
type ResearchInput struct {
	// Query is the research topic. Required.
	Query string `json:"query"`
	// NumResults caps hits per branch; the configured default applies
	// when zero.
	NumResults int `json:"num_results,omitempty"`
}

// ResearchResult is the complete outcome of a research run.
type ResearchResult struct {
	SessionID  string              `json:"session_id"`
	SessionDir string              `json:"session_dir"`
	Queries    activities.QuerySet `json:"queries"`
	// Branches is always in canonical order: primary, orthogonal_1,
	// orthogonal_2. One report per expanded query, present even on
	// branch failure.
	Branches   []activities.BranchReport `json:"branches"`
	Report     string                    `json:"report"`
	ReportPath string                    `json:"report_path"`
}

// SucceededBranches counts branches that produced articles.
func (r ResearchResult) SucceededBranches() int {
	n := 0
	for _, b := range r.Branches {
		if b.Succeeded() {
			n++
		}
	}
	return n
}
