package normalize

import (
	"fmt"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

type rawCorrection struct {
	Day        flexFloat  `json:"day"`
	Index      flexFloat  `json:"index"`
	Name       flexString `json:"name"`
	Address    flexString `json:"address"`
	Note       flexString `json:"note"`
	Confidence flexFloat  `json:"confidence"`
}

type rawValidation struct {
	Confidence  *flexFloat      `json:"confidence"`
	Corrections []rawCorrection `json:"corrections"`
	Issues      flexStrings     `json:"issues"`
}

// Validation decodes a validation response. A correction without its own
// confidence inherits the overall confidence. Corrections that do not address
// an activity are discarded.
func Validation(text string) (domain.ValidationPayload, error) {
	var raw rawValidation
	if err := decode(text, &raw); err != nil {
		return domain.ValidationPayload{}, err
	}
	if raw.Confidence == nil && raw.Corrections == nil {
		return domain.ValidationPayload{}, fmt.Errorf("%w: missing confidence and corrections", ErrInvalidPayload)
	}

	var overall float64
	if raw.Confidence != nil {
		overall = unit(float64(*raw.Confidence))
	}

	out := domain.ValidationPayload{Confidence: overall, Issues: []string(raw.Issues)}
	for _, c := range raw.Corrections {
		day, idx := int(c.Day), int(c.Index)
		if day < 1 || idx < 0 || (c.Name == "" && c.Address == "") {
			continue
		}
		conf := unit(float64(c.Confidence))
		if c.Confidence == 0 {
			conf = overall
		}
		out.Corrections = append(out.Corrections, domain.LocationCorrection{
			Day:        day,
			Index:      idx,
			Name:       string(c.Name),
			Address:    string(c.Address),
			Note:       string(c.Note),
			Confidence: conf,
		})
	}
	return out, nil
}

type rawQuality struct {
	Score       *flexFloat  `json:"score"`
	Issues      flexStrings `json:"issues"`
	Suggestions flexStrings `json:"suggestions"`
}

// MaxQualityScore is the top of the quality scale.
const MaxQualityScore = 10

// Quality decodes a QA response. Scores reported on a 0-100 scale are rescaled.
func Quality(text string) (domain.QualityPayload, error) {
	var raw rawQuality
	if err := decode(text, &raw); err != nil {
		return domain.QualityPayload{}, err
	}
	if raw.Score == nil {
		return domain.QualityPayload{}, fmt.Errorf("%w: missing score", ErrInvalidPayload)
	}
	score := float64(*raw.Score)
	if score > MaxQualityScore && score <= 100 {
		score /= 10
	}
	return domain.QualityPayload{
		Score:       clamp(score, 0, MaxQualityScore),
		Issues:      []string(raw.Issues),
		Suggestions: []string(raw.Suggestions),
	}, nil
}

// unit maps a confidence to [0,1], accepting percentages.
func unit(v float64) float64 {
	if v > 1 && v <= 100 {
		v /= 100
	}
	return clamp(v, 0, 1)
}
