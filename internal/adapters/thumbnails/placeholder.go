// Package thumbnails attaches an image URL to every activity of an itinerary.
package thumbnails

import (
	"context"
	"net/url"
	"strings"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/telemetry"
)

// DefaultPlaceholderURL renders a text image; the activity name is appended.
const DefaultPlaceholderURL = "https://placehold.co/600x400?text="

// Placeholder fills missing images with a generated text image. It never fails.
type Placeholder struct {
	base string
}

var _ ports.ThumbnailProvider = (*Placeholder)(nil)

// NewPlaceholder creates a placeholder provider. Empty base uses DefaultPlaceholderURL.
func NewPlaceholder(base string) *Placeholder {
	if base == "" {
		base = DefaultPlaceholderURL
	}
	return &Placeholder{base: base}
}

// URL returns the placeholder image for an activity name.
func (p *Placeholder) URL(name string) string {
	return p.base + url.QueryEscape(strings.TrimSpace(name))
}

func (p *Placeholder) AddThumbnails(ctx context.Context, plans []domain.DailyPlan, city string) ([]domain.DailyPlan, error) {
	out := clonePlans(plans)
	for i := range out {
		for j := range out[i].Activities {
			a := &out[i].Activities[j]
			if a.ImageURL == "" {
				a.ImageURL = p.URL(a.Name)
				telemetry.ThumbnailsTotal.WithLabelValues("placeholder").Inc()
			}
		}
	}
	return out, nil
}

func clonePlans(plans []domain.DailyPlan) []domain.DailyPlan {
	it := (&domain.GeneratedItinerary{DailyPlans: plans}).Clone()
	return it.DailyPlans
}
