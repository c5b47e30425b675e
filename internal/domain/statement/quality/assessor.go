// Package quality derives the data-quality report attached to every
// processing result.
package quality

import (
	"fmt"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/position"
)

// Severity grades a quality issue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue is one itemized quality finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
}

// Report aggregates the three quality dimensions. Completeness is identifier
// coverage, consistency is mean per-position confidence, accuracy is the
// confidence of whichever layout or strategy produced the positions.
type Report struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Accuracy     float64 `json:"accuracy"`
	Issues       []Issue `json:"issues,omitempty"`
}

// Issue thresholds. Consistency intentionally has none: low average
// confidence alone is not independently actionable.
const (
	completenessThreshold = 0.5
	accuracyThreshold     = 0.7
)

// Assess produces the report for one extraction run. accuracy is the
// extractor's own confidence in its layout or strategy.
func Assess(positions []position.Position, accuracy float64) Report {
	r := Report{Accuracy: accuracy}

	if len(positions) > 0 {
		withID := 0
		confSum := 0.0
		for _, p := range positions {
			if p.Identifier != "" {
				withID++
			}
			confSum += p.Confidence
		}
		r.Completeness = float64(withID) / float64(len(positions))
		r.Consistency = confSum / float64(len(positions))
	}

	if r.Completeness < completenessThreshold {
		r.Issues = append(r.Issues, Issue{
			Severity: SeverityMedium,
			Category: "completeness",
			Message: fmt.Sprintf("only %.0f%% of positions carry an identifier",
				r.Completeness*100),
		})
	}
	if r.Accuracy < accuracyThreshold {
		r.Issues = append(r.Issues, Issue{
			Severity: SeverityHigh,
			Category: "accuracy",
			Message: fmt.Sprintf("extraction confidence %.2f is below %.2f",
				r.Accuracy, accuracyThreshold),
		})
	}

	return r
}
