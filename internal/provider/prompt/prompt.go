// Package prompt renders the role prompts shared by every vendor backend.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

const draftSchema = `{
  "title": string, "subtitle": string, "city": string,
  "highlights": [string], "estimatedCost": string, "localScore": number,
  "dailyPlans": [{
    "day": number, "theme": string, "localTip": string, "transportTip": string,
    "activities": [{
      "time": "HH:MM", "timeOfDay": "morning"|"afternoon"|"evening",
      "name": string, "address": string, "description": string,
      "category": string, "localnessScore": 1-6, "duration": string, "cost": string
    }]
  }]
}`

const validationSchema = `{
  "confidence": number between 0 and 1,
  "corrections": [{"day": number, "index": number, "name": string, "address": string, "note": string, "confidence": number between 0 and 1}],
  "issues": [string]
}`

const qualitySchema = `{"score": number between 0 and 10, "issues": [string], "suggestions": [string]}`

// Build returns the system and user prompts for role.
func Build(role domain.Role, in *domain.StageInput) (system, user string, err error) {
	if in == nil || in.Request == nil {
		return "", "", fmt.Errorf("prompt: missing request")
	}
	switch role {
	case domain.RoleDrafting:
		return draftSystem(), draftUser(in.Request), nil
	case domain.RoleValidation:
		if in.Draft == nil {
			return "", "", fmt.Errorf("prompt: validation requires a draft")
		}
		u, err := validationUser(in.Request, in.Draft)
		return validationSystem(), u, err
	case domain.RoleQA:
		if in.Draft == nil {
			return "", "", fmt.Errorf("prompt: quality check requires a draft")
		}
		u, err := qualityUser(in.Request, in.Draft, in.QAMode)
		return qualitySystem(in.QAMode), u, err
	default:
		return "", "", fmt.Errorf("prompt: unknown role %q", role)
	}
}

func draftSystem() string {
	return "You are a local travel expert who writes realistic day-by-day city itineraries. " +
		"Prefer places locals actually go. Respond with a single JSON object matching this shape and nothing else:\n" +
		draftSchema
}

func draftUser(req *domain.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "City: %s\n", req.City)
	fmt.Fprintf(&b, "Days: %d (return exactly %d dailyPlans)\n", req.Days, req.Days)
	if interests := req.NormalizedInterests(); len(interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(interests, ", "))
	}
	fmt.Fprintf(&b, "Budget: %s\n", req.Budget)
	fmt.Fprintf(&b, "Localness: %d of %d (higher means fewer tourist spots)\n", req.LocalnessLevel, domain.MaxLocalnessLevel)
	fmt.Fprintf(&b, "Pace: %s\n", req.Pace)
	fmt.Fprintf(&b, "Group: %s\n", req.GroupType)
	if req.TemplatePrompt != "" {
		fmt.Fprintf(&b, "Extra instructions: %s\n", req.TemplatePrompt)
	}
	return b.String()
}

func validationSystem() string {
	return "You verify that places in a travel itinerary exist and that their names and street addresses are correct. " +
		"Only propose a correction when you are confident. Activities are addressed by day number and zero-based index. " +
		"Respond with a single JSON object matching this shape and nothing else:\n" + validationSchema
}

func validationUser(req *domain.GenerationRequest, draft *domain.GeneratedItinerary) (string, error) {
	data, err := json.Marshal(compactDraft(draft))
	if err != nil {
		return "", fmt.Errorf("prompt: marshal draft: %w", err)
	}
	return fmt.Sprintf("City: %s\nItinerary:\n%s\n", req.City, data), nil
}

func qualitySystem(mode domain.QAMode) string {
	depth := "Check pacing, opening hours, travel time between stops, variety, and fit with the stated interests and budget."
	if mode == domain.QAModeBasic {
		depth = "Do a quick sanity check of pacing and fit with the stated interests only."
	}
	return "You review travel itineraries for quality. " + depth +
		" Respond with a single JSON object matching this shape and nothing else:\n" + qualitySchema
}

func qualityUser(req *domain.GenerationRequest, draft *domain.GeneratedItinerary, mode domain.QAMode) (string, error) {
	data, err := json.Marshal(compactDraft(draft))
	if err != nil {
		return "", fmt.Errorf("prompt: marshal draft: %w", err)
	}
	return fmt.Sprintf("Review mode: %s\nTraveler: %s, budget %s, pace %s, interests %s\nItinerary:\n%s\n",
		mode, req.GroupType, req.Budget, req.Pace, strings.Join(req.NormalizedInterests(), ", "), data), nil
}

type compactActivity struct {
	Index     int    `json:"index"`
	Time      string `json:"time"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Category  string `json:"category"`
	Duration  string `json:"duration,omitempty"`
	TimeOfDay string `json:"timeOfDay"`
}

type compactDay struct {
	Day        int               `json:"day"`
	Theme      string            `json:"theme"`
	Activities []compactActivity `json:"activities"`
}

// compactDraft strips descriptions and tips so review prompts stay small.
func compactDraft(draft *domain.GeneratedItinerary) []compactDay {
	days := make([]compactDay, 0, len(draft.DailyPlans))
	for _, p := range draft.DailyPlans {
		d := compactDay{Day: p.Day, Theme: p.Theme}
		for i, a := range p.Activities {
			d.Activities = append(d.Activities, compactActivity{
				Index:     i,
				Time:      a.Time,
				Name:      a.Name,
				Address:   a.Address,
				Category:  a.Category,
				Duration:  a.Duration,
				TimeOfDay: string(a.TimeOfDay),
			})
		}
		days = append(days, d)
	}
	return days
}
