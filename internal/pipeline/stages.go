package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/telemetry"
)

// Stage names used by the generation endpoint.
const (
	StageThumbnails = "thumbnails"
	StagePersist    = "persist"
)

// ThumbnailStage attaches images to every activity. When the primary provider
// fails or exceeds its timeout, the fallback (usually placeholders) is used
// instead.
type ThumbnailStage struct {
	primary  ports.ThumbnailProvider
	fallback ports.ThumbnailProvider
	timeout  time.Duration
}

// NewThumbnailStage creates a thumbnail stage. fallback may be nil. A positive
// timeout bounds only the primary provider.
func NewThumbnailStage(primary, fallback ports.ThumbnailProvider, timeout time.Duration) *ThumbnailStage {
	return &ThumbnailStage{primary: primary, fallback: fallback, timeout: timeout}
}

func (s *ThumbnailStage) Name() string { return StageThumbnails }

func (s *ThumbnailStage) Process(ctx context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	it := in.Itinerary
	plans, err := s.addPrimary(ctx, it)
	if err != nil {
		telemetry.ThumbnailsTotal.WithLabelValues("error").Inc()
		// Only the caller's cancellation skips the fallback.
		if s.fallback == nil || ctx.Err() != nil {
			return nil, err
		}
		plans, err = s.fallback.AddThumbnails(ctx, it.DailyPlans, it.City)
		if err != nil {
			return nil, fmt.Errorf("fallback thumbnails: %w", err)
		}
	}
	if len(plans) != len(it.DailyPlans) {
		return nil, fmt.Errorf("thumbnail provider returned %d days, want %d", len(plans), len(it.DailyPlans))
	}

	out := it.Clone()
	out.DailyPlans = plans
	return &ports.StageOutput{Action: ports.ActionMutate, Itinerary: out}, nil
}

func (s *ThumbnailStage) addPrimary(ctx context.Context, it *domain.GeneratedItinerary) ([]domain.DailyPlan, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.primary.AddThumbnails(ctx, it.DailyPlans, it.City)
}

// PersistStage saves the itinerary and stamps the stored ID on it.
type PersistStage struct {
	store ports.ItineraryStore
}

// NewPersistStage creates a persistence stage.
func NewPersistStage(store ports.ItineraryStore) *PersistStage {
	return &PersistStage{store: store}
}

func (s *PersistStage) Name() string { return StagePersist }

func (s *PersistStage) Process(ctx context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	if in.UserID == "" {
		return nil, errors.New("persist: missing user id")
	}

	meta := &ports.SaveMeta{}
	if o := in.Outcome; o != nil {
		meta.QualityScore = o.QualityScore
		meta.FallbackUsed = o.FallbackUsed
		meta.ProvidersUsed = o.ProvidersUsed
	}

	id, err := s.store.SaveItinerary(ctx, in.UserID, in.Itinerary, in.Request, meta)
	if err != nil {
		return nil, fmt.Errorf("save itinerary: %w", err)
	}

	out := in.Itinerary.Clone()
	out.ID = id
	return &ports.StageOutput{Action: ports.ActionMutate, Itinerary: out}, nil
}

// PostGenerationStages returns the endpoint's standard stages: thumbnails,
// which degrade on failure, then persistence, which is fatal. A nil thumbs
// skips the thumbnail stage. thumbTimeout bounds the primary thumbnail
// provider, not the fallback.
func PostGenerationStages(thumbs, fallback ports.ThumbnailProvider, store ports.ItineraryStore, thumbTimeout time.Duration) []StageConfig {
	var stages []StageConfig
	if thumbs != nil {
		stages = append(stages, StageConfig{
			Order:   10,
			Stage:   NewThumbnailStage(thumbs, fallback, thumbTimeout),
			OnError: ports.ActionAllow,
			Message: "Adding images",
			Percent: 92,
		})
	}
	return append(stages, StageConfig{
		Order:   20,
		Stage:   NewPersistStage(store),
		OnError: ports.ActionDeny,
		Message: "Saving itinerary",
		Percent: 96,
	})
}

var (
	_ ports.Stage = (*ThumbnailStage)(nil)
	_ ports.Stage = (*PersistStage)(nil)
)
