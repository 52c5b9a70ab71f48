package formatting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tridentlabs/trident/internal/metadata"
)

func TestFormatReportWithSources(t *testing.T) {
	report := "# Research Report: raft\n\n## Key Findings\nQuorum matters.\n\n## Sources & References\n1. [Made up](https://invented.example)\n"
	citations := []metadata.Citation{
		{Title: "Raft paper", URL: "https://raft.github.io/raft.pdf", Domain: "raft.github.io", QueryType: "primary"},
		{Title: "Consensus survey", URL: "https://example.com/survey", Domain: "example.com", QueryType: "orthogonal_1"},
	}

	got := FormatReportWithSources(report, citations)

	assert.NotContains(t, got, "invented.example", "model-written sources must be replaced")
	assert.Contains(t, got, "## Sources & References")
	assert.Contains(t, got, "1. [Raft paper](https://raft.github.io/raft.pdf) (via primary)")
	assert.Contains(t, got, "2. [Consensus survey](https://example.com/survey) (via orthogonal_1)")
	assert.Contains(t, got, "Quorum matters.")
	assert.Equal(t, 1, strings.Count(got, "## Sources & References"))
}

func TestFormatReportWithoutCitations(t *testing.T) {
	report := "# Research Report: raft\n\n## Sources\nnone\n"
	got := FormatReportWithSources(report, nil)
	assert.NotContains(t, got, "## Sources")
	assert.Contains(t, got, "# Research Report: raft")
}

func TestFormatReportUntitledCitationFallsBackToDomain(t *testing.T) {
	got := FormatReportWithSources("body", []metadata.Citation{
		{URL: "https://example.com/a", Domain: "example.com"},
	})
	assert.Contains(t, got, "[example.com](https://example.com/a)")
}

func TestFormatReportEmpty(t *testing.T) {
	assert.Equal(t, "", FormatReportWithSources("", nil))
}
