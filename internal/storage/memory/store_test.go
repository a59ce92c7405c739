package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/storage"
)

func TestMemoryStore_SaveAndGetItinerary(t *testing.T) {
	store := New()
	ctx := context.Background()

	it := &domain.GeneratedItinerary{Title: "Lisbon", City: "Lisbon", Days: 1, DailyPlans: []domain.DailyPlan{{Day: 1}}}
	id, err := store.SaveItinerary(ctx, "user-1", it, &domain.GenerationRequest{City: "Lisbon", Interests: []string{"food"}}, nil)
	if err != nil {
		t.Fatalf("SaveItinerary() error = %v", err)
	}

	got, err := store.GetItinerary(ctx, id)
	if err != nil {
		t.Fatalf("GetItinerary() error = %v", err)
	}
	if got.Itinerary.ID != id || got.UserID != "user-1" {
		t.Errorf("unexpected record: %+v", got)
	}

	// Records are isolated from caller mutations.
	got.Itinerary.Title = "changed"
	again, _ := store.GetItinerary(ctx, id)
	if again.Itinerary.Title != "Lisbon" {
		t.Error("stored itinerary shared with caller")
	}

	if _, err := store.GetItinerary(ctx, "missing"); !errors.Is(err, domain.ErrNotFoundSentinel) {
		t.Errorf("err = %v, want ErrNotFoundSentinel", err)
	}
}

func TestMemoryStore_CheckAndTrackUsage(t *testing.T) {
	now := time.Date(2026, 10, 31, 23, 0, 0, 0, time.UTC)
	store := New(
		WithLimits(storage.Limits{domain.TierFree: 1}),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	d, _ := store.CheckAndTrackUsage(ctx, "user-1", storage.UsageKindItinerary)
	if !d.Allowed || d.Usage.Current != 1 {
		t.Fatalf("first call: %+v", d)
	}
	d, _ = store.CheckAndTrackUsage(ctx, "user-1", storage.UsageKindItinerary)
	if d.Allowed || d.Usage.Current != 1 || d.Usage.Limit != 1 {
		t.Fatalf("second call: %+v", d)
	}
	if !d.Usage.ResetAt.Equal(time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ResetAt = %v", d.Usage.ResetAt)
	}

	// Other kinds and users have their own counters.
	if d, _ := store.CheckAndTrackUsage(ctx, "user-2", storage.UsageKindItinerary); !d.Allowed {
		t.Error("user-2 should be allowed")
	}

	now = now.Add(2 * time.Hour)
	if d, _ := store.CheckAndTrackUsage(ctx, "user-1", storage.UsageKindItinerary); !d.Allowed {
		t.Error("new month should reset the counter")
	}
}

func TestMemoryStore_TiersAndEvents(t *testing.T) {
	store := New()
	ctx := context.Background()

	if tier, _ := store.GetTier(ctx, "user-1"); tier != domain.TierFree {
		t.Errorf("default tier = %q", tier)
	}
	store.SetTier(ctx, "user-1", domain.TierPremium)
	if tier, _ := store.GetTier(ctx, "user-1"); tier != domain.TierPremium {
		t.Errorf("tier = %q, want premium", tier)
	}

	base := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	store.RecordEvent(ctx, &domain.ActivityEvent{ID: "a", UserID: "user-1", Timestamp: base})
	store.RecordEvent(ctx, &domain.ActivityEvent{ID: "b", UserID: "user-1", Timestamp: base.Add(time.Minute), Data: domain.XPAwardedData{Points: 50}})

	events, err := store.ListEvents(ctx, "user-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].ID != "b" {
		t.Errorf("unexpected events: %+v", events)
	}
}
