// Package storage defines the persistence surface of the gateway and the
// helpers shared by its SQLite and in-memory implementations.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

// UsageKindItinerary is the usage counter charged for one generation.
const UsageKindItinerary = "itinerary"

// SubscriptionStore resolves and records a user's tier. Unknown users are free.
type SubscriptionStore interface {
	GetTier(ctx context.Context, userID string) (domain.Tier, error)
	SetTier(ctx context.Context, userID string, tier domain.Tier) error
}

// ActivityLedger records side-effect events for single-instance deployments.
type ActivityLedger interface {
	RecordEvent(ctx context.Context, event *domain.ActivityEvent) error
	ListEvents(ctx context.Context, userID string, limit int) ([]*domain.ActivityEvent, error)
}

// Store is everything the gateway persists.
type Store interface {
	ports.ItineraryStore
	ports.UsageTracker
	SubscriptionStore
	ActivityLedger
}

// Limits holds monthly usage limits by tier. A missing or zero limit is unlimited.
type Limits map[domain.Tier]int

// Limit returns the limit for tier, 0 meaning unlimited.
func (l Limits) Limit(tier domain.Tier) int {
	return l[tier]
}

// LimitsFromConfig parses tier names from config. Unknown tier names are ignored.
func LimitsFromConfig(cfg config.UsageConfig) Limits {
	out := make(Limits, len(cfg.Limits))
	for name, n := range cfg.Limits {
		tier := domain.ParseTier(name)
		if string(tier) != strings.ToLower(strings.TrimSpace(name)) {
			continue
		}
		if n < 0 {
			n = 0
		}
		out[tier] = n
	}
	return out
}

// Period returns the usage period containing t (calendar month, UTC) and the
// time at which it resets.
func Period(t time.Time) (key string, resetAt time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start.Format("2006-01"), start.AddDate(0, 1, 0)
}

// DefaultListLimit bounds ListEvents when the caller passes 0.
const DefaultListLimit = 100
