// Package fixture implements an offline backend that fabricates plausible
// responses. It backs local development and end-to-end tests.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/normalize"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/registry"
)

// BackendType is the type identifier used in configuration.
const BackendType = "fixture"

// Scenarios selectable through the provider's model setting.
const (
	ScenarioOK      = "ok"
	ScenarioSlow    = "slow"
	ScenarioFail    = "fail"
	ScenarioGarbage = "garbage"
)

// ErrUnavailable is returned by the fail scenario.
var ErrUnavailable = errors.New("fixture: backend unavailable")

// Option configures the backend.
type Option func(*Backend)

// WithDelay makes every call wait d or until the context ends.
func WithDelay(d time.Duration) Option {
	return func(b *Backend) {
		b.delay = d
	}
}

// WithError makes every call fail with err.
func WithError(err error) Option {
	return func(b *Backend) {
		b.err = err
	}
}

// WithQualityScore sets the score returned for QA calls.
func WithQualityScore(score float64) Option {
	return func(b *Backend) {
		b.score = score
	}
}

// WithCorrections replaces the corrections returned for validation calls.
func WithCorrections(c ...domain.LocationCorrection) Option {
	return func(b *Backend) {
		b.corrections = c
	}
}

// Backend fabricates responses from the request alone.
type Backend struct {
	name        string
	delay       time.Duration
	err         error
	garbage     bool
	score       float64
	corrections []domain.LocationCorrection
}

var _ ports.Backend = (*Backend)(nil)

// New creates a fixture backend.
func New(name string, opts ...Option) *Backend {
	b := &Backend{name: name, score: 8}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string { return b.name }

// Call returns a synthetic payload for role.
func (b *Backend) Call(ctx context.Context, role domain.Role, in *domain.StageInput) (*ports.BackendResponse, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.garbage {
		return nil, fmt.Errorf("%w: fixture garbage scenario", normalize.ErrParse)
	}
	if in == nil || in.Request == nil {
		return nil, fmt.Errorf("%w: missing request", normalize.ErrInvalidPayload)
	}

	switch role {
	case domain.RoleDrafting:
		return &ports.BackendResponse{Payload: domain.DraftPayload{Itinerary: Draft(in.Request)}, PromptTokens: 400, CompletionTokens: 900}, nil
	case domain.RoleValidation:
		return &ports.BackendResponse{Payload: b.validation(in.Draft), PromptTokens: 600, CompletionTokens: 120}, nil
	case domain.RoleQA:
		return &ports.BackendResponse{Payload: domain.QualityPayload{
			Score:       b.score,
			Suggestions: []string{"Book dinner on the last evening in advance"},
		}, PromptTokens: 600, CompletionTokens: 80}, nil
	default:
		return nil, fmt.Errorf("%w: unknown role %q", normalize.ErrInvalidPayload, role)
	}
}

func (b *Backend) validation(draft *domain.GeneratedItinerary) domain.ValidationPayload {
	if b.corrections != nil {
		return domain.ValidationPayload{Corrections: b.corrections, Confidence: 0.9}
	}
	out := domain.ValidationPayload{Confidence: 0.85}
	if draft == nil || len(draft.DailyPlans) == 0 || len(draft.DailyPlans[0].Activities) == 0 {
		return out
	}
	first := draft.DailyPlans[0].Activities[0]
	out.Corrections = []domain.LocationCorrection{
		{Day: 1, Index: 0, Address: first.Address + " (verified)", Note: "street number confirmed", Confidence: 0.92},
		{Day: 1, Index: 0, Name: first.Name + " Annex", Note: "possible rename", Confidence: 0.4},
	}
	return out
}

var slots = []struct {
	time string
	tod  domain.TimeOfDay
	kind string
}{
	{"09:00", domain.Morning, "walk"},
	{"13:00", domain.Afternoon, "food"},
	{"19:00", domain.Evening, "nightlife"},
}

// Draft builds a deterministic itinerary for req.
func Draft(req *domain.GenerationRequest) *domain.GeneratedItinerary {
	interests := req.NormalizedInterests()
	if len(interests) == 0 {
		interests = []string{"neighborhoods"}
	}

	it := &domain.GeneratedItinerary{
		Title:         fmt.Sprintf("%d Days of Local %s", req.Days, req.City),
		Subtitle:      fmt.Sprintf("A %s trip for %s travelers", req.Pace, req.GroupType),
		City:          req.City,
		Days:          req.Days,
		Highlights:    []string{fmt.Sprintf("Hidden %s corners of %s", interests[0], req.City)},
		EstimatedCost: estimatedCost(req.Budget, req.Days),
	}
	for d := 1; d <= req.Days; d++ {
		interest := interests[(d-1)%len(interests)]
		plan := domain.DailyPlan{
			Day:          d,
			Theme:        strings.ToUpper(interest[:1]) + interest[1:] + " day",
			LocalTip:     "Go early; locals queue before noon.",
			TransportTip: "Walk between stops where possible.",
		}
		for i, s := range slots {
			plan.Activities = append(plan.Activities, domain.Activity{
				Time:           s.time,
				TimeOfDay:      s.tod,
				Name:           fmt.Sprintf("%s %s stop %d-%d", req.City, interest, d, i+1),
				Address:        fmt.Sprintf("%d Market Street, %s", 10*d+i, req.City),
				Description:    fmt.Sprintf("A %s stop favored by locals.", s.kind),
				Category:       s.kind,
				LocalnessScore: req.LocalnessLevel,
				Duration:       "2h",
				Cost:           "$$",
			})
		}
		it.DailyPlans = append(it.DailyPlans, plan)
	}
	it.LocalScore = it.ComputeLocalScore()
	return it
}

func estimatedCost(budget string, days int) string {
	perDay := map[string]int{domain.BudgetLow: 60, domain.BudgetMid: 150, domain.BudgetLuxury: 400}[budget]
	if perDay == 0 {
		perDay = 150
	}
	return fmt.Sprintf("$%d", perDay*days)
}

// RegisterBackendFactory registers the fixture backend.
func RegisterBackendFactory() {
	if registry.IsRegistered(BackendType) {
		return
	}
	registry.RegisterFactory(registry.BackendFactory{
		Type:           BackendType,
		Description:    "Offline fixture responses for development and tests",
		Create:         CreateFromConfig,
		ValidateConfig: ValidateConfig,
	})
}

// CreateFromConfig creates a fixture backend; the model field selects a scenario.
func CreateFromConfig(cfg config.ProviderConfig) (ports.Backend, error) {
	b := New(cfg.Name)
	switch cfg.Model {
	case "", ScenarioOK:
	case ScenarioSlow:
		b.delay = 10 * time.Minute
	case ScenarioFail:
		b.err = ErrUnavailable
	case ScenarioGarbage:
		b.garbage = true
	}
	return b, nil
}

// ValidateConfig rejects unknown scenarios.
func ValidateConfig(cfg config.ProviderConfig) error {
	switch cfg.Model {
	case "", ScenarioOK, ScenarioSlow, ScenarioFail, ScenarioGarbage:
		return nil
	}
	return fmt.Errorf("unknown fixture scenario %q", cfg.Model)
}
