package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

// Request limits.
const (
	MaxDays           = 14
	MaxCityLength     = 100
	MaxInterests      = 10
	MaxInterestLength = 50
	MaxTemplatePrompt = 2000
	maxBodyBytes      = 64 << 10
	defaultLocalness  = 3
	defaultBudget     = domain.BudgetMid
	defaultPace       = domain.PaceModerate
	defaultGroupType  = domain.GroupSolo
)

var (
	budgets    = []string{domain.BudgetLow, domain.BudgetMid, domain.BudgetLuxury}
	paces      = []string{domain.PaceRelaxed, domain.PaceModerate, domain.PacePacked}
	groupTypes = []string{domain.GroupSolo, domain.GroupCouple, domain.GroupFamily, domain.GroupFriends}
)

// generateBody is the JSON request body. A tier in the body is ignored; the
// caller's tier always comes from their subscription.
type generateBody struct {
	City           string   `json:"city"`
	Days           int      `json:"days"`
	Interests      []string `json:"interests"`
	Budget         string   `json:"budget"`
	LocalnessLevel int      `json:"localnessLevel"`
	Pace           string   `json:"pace"`
	GroupType      string   `json:"groupType"`
	TemplatePrompt string   `json:"templatePrompt"`
}

// decodeRequest reads and validates the body, applying defaults for optional
// fields. The returned request is complete except for Tier, UserID and RequestID.
func decodeRequest(w http.ResponseWriter, r *http.Request) (*domain.GenerationRequest, *domain.APIError) {
	var body generateBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, domain.ErrInvalidRequest("Request body is too large")
		case errors.Is(err, io.EOF):
			return nil, domain.ErrInvalidRequest("Request body is required")
		default:
			return nil, domain.ErrInvalidRequest("Request body must be valid JSON")
		}
	}
	return body.toRequest()
}

func (b *generateBody) toRequest() (*domain.GenerationRequest, *domain.APIError) {
	city := strings.TrimSpace(b.City)
	switch {
	case city == "":
		return nil, domain.ErrInvalidRequest("city is required").WithParam("city")
	case utf8.RuneCountInString(city) > MaxCityLength:
		return nil, domain.ErrInvalidRequest(fmt.Sprintf("city must be at most %d characters", MaxCityLength)).WithParam("city")
	}

	if b.Days < 1 || b.Days > MaxDays {
		return nil, domain.ErrInvalidRequest(fmt.Sprintf("days must be between 1 and %d", MaxDays)).WithParam("days")
	}

	if len(b.Interests) > MaxInterests {
		return nil, domain.ErrInvalidRequest(fmt.Sprintf("at most %d interests are allowed", MaxInterests)).WithParam("interests")
	}
	interests := make([]string, 0, len(b.Interests))
	for _, in := range b.Interests {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		if utf8.RuneCountInString(in) > MaxInterestLength {
			return nil, domain.ErrInvalidRequest(fmt.Sprintf("each interest must be at most %d characters", MaxInterestLength)).WithParam("interests")
		}
		interests = append(interests, in)
	}

	budget, apiErr := oneOf("budget", b.Budget, defaultBudget, budgets)
	if apiErr != nil {
		return nil, apiErr
	}
	pace, apiErr := oneOf("pace", b.Pace, defaultPace, paces)
	if apiErr != nil {
		return nil, apiErr
	}
	groupType, apiErr := oneOf("groupType", b.GroupType, defaultGroupType, groupTypes)
	if apiErr != nil {
		return nil, apiErr
	}

	localness := b.LocalnessLevel
	if localness == 0 {
		localness = defaultLocalness
	}
	if localness < domain.MinLocalnessLevel || localness > domain.MaxLocalnessLevel {
		return nil, domain.ErrInvalidRequest(fmt.Sprintf("localnessLevel must be between %d and %d", domain.MinLocalnessLevel, domain.MaxLocalnessLevel)).WithParam("localnessLevel")
	}

	prompt := strings.TrimSpace(b.TemplatePrompt)
	if utf8.RuneCountInString(prompt) > MaxTemplatePrompt {
		return nil, domain.ErrInvalidRequest(fmt.Sprintf("templatePrompt must be at most %d characters", MaxTemplatePrompt)).WithParam("templatePrompt")
	}

	return &domain.GenerationRequest{
		City:           city,
		Days:           b.Days,
		Interests:      interests,
		Budget:         budget,
		LocalnessLevel: localness,
		Pace:           pace,
		GroupType:      groupType,
		TemplatePrompt: prompt,
	}, nil
}

func oneOf(field, value, def string, allowed []string) (string, *domain.APIError) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return def, nil
	}
	if !slices.Contains(allowed, v) {
		return "", domain.ErrInvalidRequest(fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", "))).WithParam(field)
	}
	return v, nil
}
