// Package domain holds the core types shared by the orchestrator, the provider
// adapters and the HTTP frontdoor.
package domain

import (
	"sort"
	"strings"
)

// Tier is a subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

// ParseTier normalizes a tier string. Unknown values map to TierFree.
func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierPro:
		return TierPro
	case TierPremium:
		return TierPremium
	default:
		return TierFree
	}
}

// Budget bands accepted by the generator.
const (
	BudgetLow    = "budget"
	BudgetMid    = "mid"
	BudgetLuxury = "luxury"
)

// Pace values.
const (
	PaceRelaxed  = "relaxed"
	PaceModerate = "moderate"
	PacePacked   = "packed"
)

// Group types.
const (
	GroupSolo    = "solo"
	GroupCouple  = "couple"
	GroupFamily  = "family"
	GroupFriends = "friends"
)

// Localness dial bounds.
const (
	MinLocalnessLevel = 1
	MaxLocalnessLevel = 5
)

// GenerationRequest is the immutable input to one generation attempt.
// It is built once by the frontdoor and must not be modified afterwards.
type GenerationRequest struct {
	City           string   `json:"city"`
	Days           int      `json:"days"`
	Interests      []string `json:"interests"`
	Budget         string   `json:"budget"`
	LocalnessLevel int      `json:"localnessLevel"`
	Pace           string   `json:"pace"`
	GroupType      string   `json:"groupType"`
	TemplatePrompt string   `json:"templatePrompt,omitempty"`

	Tier      Tier   `json:"tier"`
	UserID    string `json:"userId"`
	RequestID string `json:"requestId"`
}

// NormalizedInterests returns the interests lowercased, trimmed, deduplicated
// and sorted. The receiver is not modified.
func (r *GenerationRequest) NormalizedInterests() []string {
	seen := make(map[string]struct{}, len(r.Interests))
	out := make([]string, 0, len(r.Interests))
	for _, in := range r.Interests {
		v := strings.ToLower(strings.TrimSpace(in))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
