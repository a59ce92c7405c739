package itinerary

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/sideeffects"
)

const xpReasonItinerary = "itinerary_generated"

// submitSideEffects queues the analytics and XP events. It never blocks; a
// full queue drops them.
func (h *Handler) submitSideEffects(req *domain.GenerationRequest, outcome *domain.GenerationOutcome, it *domain.GeneratedItinerary) {
	if h.events == nil || h.dispatcher == nil {
		return
	}
	now := time.Now().UTC()

	generated := &domain.ActivityEvent{
		ID:        uuid.NewString(),
		Type:      domain.ActivityItineraryGenerated,
		UserID:    req.UserID,
		RequestID: req.RequestID,
		Timestamp: now,
		Data: domain.GeneratedEventData{
			ItineraryID:   it.ID,
			City:          it.City,
			Days:          it.Days,
			Tier:          req.Tier,
			ProvidersUsed: append([]string(nil), outcome.ProvidersUsed...),
			FallbackUsed:  outcome.FallbackUsed,
			CacheHits:     outcome.CacheHits,
			LatencyMs:     outcome.TotalLatency.Milliseconds(),
		},
	}
	h.publish("analytics", generated)

	if xp := int(h.xpPerTrip.Load()); xp > 0 {
		h.publish("xp_award", &domain.ActivityEvent{
			ID:        uuid.NewString(),
			Type:      domain.ActivityXPAwarded,
			UserID:    req.UserID,
			RequestID: req.RequestID,
			Timestamp: now,
			Data:      domain.XPAwardedData{Points: xp, Reason: xpReasonItinerary},
		})
	}
}

func (h *Handler) publish(name string, ev *domain.ActivityEvent) {
	h.dispatcher.Submit(sideeffects.Task{
		Name: name,
		Run: func(ctx context.Context) error {
			return h.events.Publish(ctx, ev)
		},
	})
}
