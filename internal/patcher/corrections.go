package patcher

import (
	"strings"

	"adflow/internal/domain"
)

// Report records which corrections of a batch changed the content.
type Report struct {
	Applied []domain.Correction
	Failed  []domain.Correction
	// Replacements is the total number of occurrences rewritten.
	Replacements int
}

// AppliedCount is len(r.Applied).
func (r Report) AppliedCount() int { return len(r.Applied) }

// ApplyCorrections applies each correction in order, replacing every
// occurrence of Find with Replace. A correction whose Find text is empty or
// absent from the content at its turn is reported as failed; any other is
// applied, including one whose Replace equals its Find. Running the same list
// twice is a no-op the second time unless a Replace reintroduces a Find.
func ApplyCorrections(content string, corrections []domain.Correction) (string, Report) {
	var report Report
	for _, c := range corrections {
		if c.Find == "" {
			report.Failed = append(report.Failed, c)
			continue
		}
		n := strings.Count(content, c.Find)
		if n == 0 {
			report.Failed = append(report.Failed, c)
			continue
		}
		content = strings.ReplaceAll(content, c.Find, c.Replace)
		report.Applied = append(report.Applied, c)
		report.Replacements += n
	}
	return content, report
}
