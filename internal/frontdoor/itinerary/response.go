package itinerary

import (
	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

// SuccessBody is the 200 response and the data of the complete event.
type SuccessBody struct {
	Success   bool                       `json:"success"`
	Itinerary *domain.GeneratedItinerary `json:"itinerary"`
	Meta      *Meta                      `json:"meta,omitempty"`
}

// Meta exposes orchestration details to pro and premium callers.
type Meta struct {
	QualityScore     *float64                 `json:"qualityScore"`
	ValidationReport *domain.ValidationReport `json:"validationReport"`
	FallbackUsed     string                   `json:"fallbackUsed,omitempty"`
	Metrics          Metrics                  `json:"metrics"`
}

// Metrics describes how an attempt was served.
type Metrics struct {
	TotalLatencyMs int64    `json:"totalLatencyMs"`
	ProvidersUsed  []string `json:"providersUsed"`
	CacheHits      int      `json:"cacheHits"`
}

// FailureBody is the 500 response for a failed generation.
type FailureBody struct {
	Error        domain.ErrorType `json:"error"`
	Message      string           `json:"message"`
	FallbackUsed string           `json:"fallbackUsed,omitempty"`
	Metrics      *Metrics         `json:"metrics,omitempty"`
}

// LimitBody is the 429 response when the monthly allowance is used up.
type LimitBody struct {
	Error   domain.ErrorType `json:"error"`
	Message string           `json:"message"`
	Usage   ports.Usage      `json:"usage"`
	Upgrade *Upgrade         `json:"upgrade,omitempty"`
}

// Upgrade is the offer shown with a limit error.
type Upgrade struct {
	Suggestion string `json:"suggestion"`
	Tier       string `json:"tier"`
	Price      string `json:"price,omitempty"`
}

// exposesMeta reports whether tier may see orchestration details.
func exposesMeta(tier domain.Tier) bool {
	return tier == domain.TierPro || tier == domain.TierPremium
}

func metricsOf(o *domain.GenerationOutcome) Metrics {
	providers := o.ProvidersUsed
	if providers == nil {
		providers = []string{}
	}
	return Metrics{
		TotalLatencyMs: o.TotalLatency.Milliseconds(),
		ProvidersUsed:  providers,
		CacheHits:      o.CacheHits,
	}
}

func successBody(tier domain.Tier, o *domain.GenerationOutcome, it *domain.GeneratedItinerary) *SuccessBody {
	body := &SuccessBody{Success: true, Itinerary: it}
	if exposesMeta(tier) {
		body.Meta = &Meta{
			QualityScore:     o.QualityScore,
			ValidationReport: o.ValidationReport,
			FallbackUsed:     o.FallbackUsed,
			Metrics:          metricsOf(o),
		}
	}
	return body
}

func failureBody(tier domain.Tier, o *domain.GenerationOutcome) *FailureBody {
	msg := o.Error
	if msg == "" {
		msg = "Failed to generate itinerary"
	}
	body := &FailureBody{Error: domain.ErrorTypeProvider, Message: msg}
	if exposesMeta(tier) {
		m := metricsOf(o)
		body.FallbackUsed = o.FallbackUsed
		body.Metrics = &m
	}
	return body
}

func limitBody(d *ports.UsageDecision, upgrades map[string]config.UpgradeConfig) *LimitBody {
	body := &LimitBody{
		Error:   domain.ErrorTypeLimitExceeded,
		Message: "Monthly itinerary limit reached",
		Usage:   d.Usage,
	}
	u, ok := upgrades[string(d.Tier)]
	if !ok || u.Tier == "" {
		next := nextTier(d.Tier)
		if next == "" {
			return body
		}
		u = config.UpgradeConfig{Tier: string(next)}
	}
	body.Upgrade = &Upgrade{Suggestion: u.Suggestion, Tier: u.Tier, Price: u.Price}
	if body.Upgrade.Suggestion == "" {
		body.Upgrade.Suggestion = "Upgrade to " + u.Tier + " for more itineraries"
	}
	return body
}

// nextTier is the tier above t, or "" for the top tier.
func nextTier(t domain.Tier) domain.Tier {
	switch t {
	case domain.TierFree:
		return domain.TierPro
	case domain.TierPro:
		return domain.TierPremium
	}
	return ""
}
