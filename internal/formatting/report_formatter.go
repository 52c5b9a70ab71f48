// Package formatting post-processes synthesized reports.
package formatting

import (
	"fmt"
	"strings"

	"github.com/tridentlabs/trident/internal/metadata"
)

const sourcesHeading = "## Sources & References"

// FormatReportWithSources ensures the final report ends with a complete
// sources section listing every citation the run actually collected.
// Any sources section the model wrote is replaced: models routinely
// invent or drop URLs, and the collected set is the ground truth.
func FormatReportWithSources(report string, citations []metadata.Citation) string {
	s := strings.TrimSpace(report)
	if s == "" {
		return report
	}

	// Cut from the LAST sources heading to the end. Using the last
	// occurrence avoids cutting body text that merely mentions it.
	lower := strings.ToLower(s)
	for _, heading := range []string{strings.ToLower(sourcesHeading), "## sources"} {
		if idx := strings.LastIndex(lower, heading); idx != -1 {
			s = strings.TrimSpace(s[:idx])
			break
		}
	}

	if len(citations) == 0 {
		return s
	}

	var b strings.Builder
	b.WriteString(s)
	b.WriteString("\n\n")
	b.WriteString(sourcesHeading)
	b.WriteString("\n\n")
	for i, c := range citations {
		title := c.Title
		if title == "" {
			title = c.Domain
		}
		fmt.Fprintf(&b, "%d. [%s](%s)", i+1, title, c.URL)
		if c.QueryType != "" {
			fmt.Fprintf(&b, " (via %s)", c.QueryType)
		}
		b.WriteString("\n")
	}
	return b.String()
}
