package domain

import (
	"strings"
	"time"
)

// Fallback markers recorded on an outcome when a non-baseline phase failed.
const (
	FallbackValidationSkipped = "validation-skipped"
	FallbackQASkipped         = "qa-skipped"
)

// ValidationReport summarizes what the validation phase did to the draft.
type ValidationReport struct {
	Provider            string               `json:"provider"`
	Confidence          float64              `json:"confidence"`
	CorrectionsApplied  int                  `json:"correctionsApplied"`
	CorrectionsRejected int                  `json:"correctionsRejected"`
	Corrections         []LocationCorrection `json:"corrections,omitempty"`
	Issues              []string             `json:"issues,omitempty"`
}

// QualityReport is the advisory output of the QA phase.
type QualityReport struct {
	Provider    string   `json:"provider"`
	Mode        QAMode   `json:"mode"`
	Score       float64  `json:"score"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// GenerationOutcome is the authoritative result of one attempt. It is built once
// by the orchestrator and not modified afterwards, except for the itinerary ID
// which the frontdoor sets after persistence.
type GenerationOutcome struct {
	Success   bool
	Itinerary *GeneratedItinerary

	QualityScore     *float64
	ValidationReport *ValidationReport
	QualityReport    *QualityReport

	ProvidersUsed []string
	FallbackUsed  string
	CacheHits     int
	TotalLatency  time.Duration

	// Error is a caller-safe message, set only when Success is false.
	Error string
	// ErrorKind is the drafting failure class when Success is false.
	ErrorKind ErrorKind
}

// FallbackMarkers splits FallbackUsed into its markers.
func (o *GenerationOutcome) FallbackMarkers() []string {
	if o.FallbackUsed == "" {
		return nil
	}
	return strings.Split(o.FallbackUsed, ",")
}

// JoinFallbacks renders fallback markers in the order given.
func JoinFallbacks(markers []string) string {
	return strings.Join(markers, ",")
}
