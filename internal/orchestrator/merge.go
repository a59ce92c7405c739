package orchestrator

import (
	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

// DefaultConfidenceThreshold is the confidence a correction must exceed to
// override the draft.
const DefaultConfidenceThreshold = 0.7

// Merge applies validation corrections to a copy of draft. The draft is the
// baseline: a correction wins only when its confidence is strictly above
// threshold and it addresses an existing activity. draft is not modified.
func Merge(draft *domain.GeneratedItinerary, v *domain.ValidationPayload, threshold float64) (*domain.GeneratedItinerary, *domain.ValidationReport) {
	out := draft.Clone()
	if v == nil {
		return out, nil
	}

	report := &domain.ValidationReport{
		Confidence: v.Confidence,
		Issues:     v.Issues,
	}
	for _, c := range v.Corrections {
		act := activityAt(out, c.Day, c.Index)
		if act == nil || c.Confidence <= threshold {
			report.CorrectionsRejected++
			continue
		}
		if c.Name != "" {
			act.Name = c.Name
		}
		if c.Address != "" {
			act.Address = c.Address
		}
		report.CorrectionsApplied++
		report.Corrections = append(report.Corrections, c)
	}
	return out, report
}

func activityAt(it *domain.GeneratedItinerary, day, index int) *domain.Activity {
	if day < 1 || day > len(it.DailyPlans) {
		return nil
	}
	acts := it.DailyPlans[day-1].Activities
	if index < 0 || index >= len(acts) {
		return nil
	}
	return &acts[index]
}
