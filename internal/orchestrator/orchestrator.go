// Package orchestrator sequences the drafting, validation and quality-check
// adapters into one itinerary, degrading instead of failing whenever a draft
// exists.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/policy"
	"github.com/tjfontaine/polyglot-itinerary/internal/progress"
	"github.com/tjfontaine/polyglot-itinerary/internal/telemetry"
)

// Progress percentages emitted by the orchestrator. The endpoint owns the
// range above PercentMerging.
const (
	PercentDrafting  = 10
	PercentPhase1    = 40
	PercentEnriching = 50
	PercentEnriched  = 70
	PercentPhase2    = 85
	PercentMerging   = 90
)

// Caller-safe failure messages.
const (
	draftFailedMsg    = "We couldn't generate your itinerary right now. Please try again."
	draftCanceledMsg  = "Generation was canceled."
	invalidRequestMsg = "Invalid generation request."
)

const minStageBudget = time.Millisecond

// ErrNoDraftingAdapter is returned by New without a drafting adapter.
var ErrNoDraftingAdapter = errors.New("orchestrator: a drafting adapter is required")

// Orchestrator is safe for concurrent use. Each Generate call owns its own
// request and outcome; only the adapters and the cache are shared.
type Orchestrator struct {
	adapters map[domain.Role]ports.Adapter
	cache    ports.ResponseCache
	cacheTTL time.Duration

	settings atomic.Pointer[Settings]
	tiers    atomic.Pointer[policy.Table]

	logger *slog.Logger
	tracer trace.Tracer
}

// New creates an orchestrator.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		adapters: make(map[domain.Role]ports.Adapter, len(domain.Roles)),
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/tjfontaine/polyglot-itinerary/internal/orchestrator"),
	}
	defaults := DefaultSettings()
	o.settings.Store(&defaults)
	o.tiers.Store(policy.NewTable(nil))

	for _, opt := range opts {
		opt(o)
	}
	if o.adapters[domain.RoleDrafting] == nil {
		return nil, ErrNoDraftingAdapter
	}
	return o, nil
}

// UpdateSettings swaps budgets and threshold for subsequent attempts.
func (o *Orchestrator) UpdateSettings(s Settings) {
	o.settings.Store(&s)
}

// UpdateTiers swaps the tier table for subsequent attempts.
func (o *Orchestrator) UpdateTiers(t *policy.Table) {
	o.tiers.Store(t)
}

// Settings returns the current settings.
func (o *Orchestrator) Settings() Settings {
	return *o.settings.Load()
}

// Features returns what tier may run on this orchestrator.
func (o *Orchestrator) Features(tier domain.Tier) policy.Features {
	return o.tiers.Load().Features(tier)
}

// MultiProviderAvailable reports whether any enrichment adapter is configured.
func (o *Orchestrator) MultiProviderAvailable() bool {
	return o.adapters[domain.RoleValidation] != nil || o.adapters[domain.RoleQA] != nil
}

// attempt is the per-call working state.
type attempt struct {
	req      *domain.GenerationRequest
	settings Settings
	features policy.Features
	ch       *progress.Channel
	sm       *machine
	deadline time.Time
	used     []string
}

func (a *attempt) use(role domain.Role) {
	if !slices.Contains(a.used, string(role)) {
		a.used = append(a.used, string(role))
	}
}

// budget caps a stage budget by what is left of the overall one.
func (a *attempt) budget(stage time.Duration) time.Duration {
	left := time.Until(a.deadline)
	if stage <= 0 || stage > left {
		stage = left
	}
	return max(stage, minStageBudget)
}

// Generate runs one attempt. It never returns nil and never panics on adapter
// failure; the only unsuccessful outcomes are a failed draft, an invalid
// request, or cancellation by the caller. ch may be nil. Generate emits start,
// progress and phase events but never the terminal event, which belongs to the
// caller once the outcome is persisted.
func (o *Orchestrator) Generate(ctx context.Context, req *domain.GenerationRequest, ch *progress.Channel) *domain.GenerationOutcome {
	start := time.Now()
	settings := o.Settings()
	features := o.Features(req.Tier)

	ctx, span := o.tracer.Start(ctx, "orchestrator.generate", trace.WithAttributes(
		attribute.String("itinerary.request_id", req.RequestID),
		attribute.String("itinerary.tier", string(req.Tier)),
		attribute.Int("itinerary.days", req.Days),
		attribute.Bool("itinerary.multi_provider", features.MultiProvider),
	))
	defer span.End()

	// parent carries caller cancellation; ctx additionally carries the overall budget.
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, settings.OverallTimeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	logger := o.logger.With(
		slog.String("request_id", req.RequestID),
		slog.String("tier", string(req.Tier)),
	)
	a := &attempt{
		req:      req,
		settings: settings,
		features: features,
		ch:       ch,
		sm:       newMachine(logger),
		deadline: deadline,
		used:     []string{},
	}

	outcome := o.run(ctx, parent, a, logger)
	outcome.TotalLatency = time.Since(start)

	status := "success"
	if !outcome.Success {
		status = "failed"
		if outcome.ErrorKind == domain.ErrorKindCanceled {
			status = "canceled"
		}
		span.SetStatus(codes.Error, outcome.Error)
	}
	for _, m := range outcome.FallbackMarkers() {
		telemetry.FallbacksTotal.WithLabelValues(m).Inc()
	}
	telemetry.GenerationsTotal.WithLabelValues(string(req.Tier), status).Inc()
	telemetry.GenerationDuration.WithLabelValues(string(req.Tier)).Observe(outcome.TotalLatency.Seconds())
	span.SetAttributes(
		attribute.String("itinerary.status", status),
		attribute.String("itinerary.fallback_used", outcome.FallbackUsed),
		attribute.Int("itinerary.cache_hits", outcome.CacheHits),
	)

	logger.Info("generation finished",
		slog.String("status", status),
		slog.Any("providers_used", outcome.ProvidersUsed),
		slog.String("fallback_used", outcome.FallbackUsed),
		slog.Int("cache_hits", outcome.CacheHits),
		slog.Duration("latency", outcome.TotalLatency),
		slog.Any("states", stateNames(a.sm.path())),
	)
	return outcome
}

func (o *Orchestrator) run(ctx, parent context.Context, a *attempt, logger *slog.Logger) *domain.GenerationOutcome {
	req := a.req
	if req.Days < 1 || req.City == "" {
		a.sm.to(StateDrafting)
		a.sm.to(StateFailed)
		return &domain.GenerationOutcome{Error: invalidRequestMsg, ErrorKind: domain.ErrorKindInvalidPayload}
	}

	_ = a.ch.Start(fmt.Sprintf("Planning %d days in %s", req.Days, req.City))

	// Drafting
	a.sm.to(StateDrafting)
	_ = a.ch.Progress("Drafting your itinerary", PercentDrafting)
	draft, cached, res := o.draft(ctx, parent, a, logger)
	if draft == nil {
		a.sm.to(StateFailed)
		out := &domain.GenerationOutcome{Error: draftFailedMsg, ErrorKind: res.ErrorKind}
		if parent.Err() != nil {
			out.Error, out.ErrorKind = draftCanceledMsg, domain.ErrorKindCanceled
		}
		return out
	}

	outcome := &domain.GenerationOutcome{}
	if cached {
		outcome.CacheHits = 1
	} else {
		a.use(domain.RoleDrafting)
	}
	_ = a.ch.Phase1("Draft ready", PercentPhase1, domain.Phase1Data{
		Title:     draft.Title,
		Days:      len(draft.DailyPlans),
		Providers: slices.Clone(a.used),
		Cached:    cached,
	})

	// Enrichment
	var fallbacks []string
	var validation *domain.ValidationPayload
	vAdapter, qAdapter := o.adapters[domain.RoleValidation], o.adapters[domain.RoleQA]
	runValidation := a.features.RunsValidation() && vAdapter != nil
	runQA := a.features.RunsQA() && qAdapter != nil

	if runValidation || runQA {
		if parent.Err() != nil {
			return canceledOutcome(a)
		}
		_ = a.ch.Progress("Verifying locations and checking quality", PercentEnriching)

		in := &domain.StageInput{Request: req, Draft: draft.Clone(), QAMode: a.features.QAMode}
		var vRes, qRes domain.ProviderResult
		var g errgroup.Group
		if runValidation {
			g.Go(func() error {
				vRes = vAdapter.Invoke(ctx, in, a.budget(a.settings.ValidationTimeout))
				return nil
			})
		}
		if runQA {
			g.Go(func() error {
				qRes = qAdapter.Invoke(ctx, in, a.budget(a.settings.QATimeout))
				return nil
			})
		}
		_ = g.Wait()

		if parent.Err() != nil {
			return canceledOutcome(a)
		}

		if runValidation {
			a.sm.to(StateValidating)
			if v, ok := vRes.Payload.(domain.ValidationPayload); vRes.Usable() && ok {
				validation = &v
				a.use(domain.RoleValidation)
			} else {
				fallbacks = append(fallbacks, domain.FallbackValidationSkipped)
				logger.Warn("validation skipped",
					slog.String("provider", vRes.Provider),
					slog.String("error_kind", string(vRes.ErrorKind)),
					slog.String("detail", vRes.Detail),
				)
			}
		}
		if runQA {
			a.sm.to(StateQualityCheck)
			if q, ok := qRes.Payload.(domain.QualityPayload); qRes.Usable() && ok {
				score := q.Score
				outcome.QualityScore = &score
				outcome.QualityReport = &domain.QualityReport{
					Provider:    qRes.Provider,
					Mode:        a.features.QAMode,
					Score:       q.Score,
					Issues:      q.Issues,
					Suggestions: q.Suggestions,
				}
				a.use(domain.RoleQA)
			} else {
				fallbacks = append(fallbacks, domain.FallbackQASkipped)
				logger.Warn("quality check skipped",
					slog.String("provider", qRes.Provider),
					slog.String("error_kind", string(qRes.ErrorKind)),
					slog.String("detail", qRes.Detail),
				)
			}
		}
		outcome.FallbackUsed = domain.JoinFallbacks(fallbacks)
		_ = a.ch.Progress("Enrichment finished", PercentEnriched)
		_ = a.ch.Phase2("Itinerary reviewed", PercentPhase2, domain.Phase2Data{
			QualityScore: outcome.QualityScore,
			FallbackUsed: outcome.FallbackUsed,
		})
	}

	// Merging
	a.sm.to(StateMerging)
	_ = a.ch.Progress("Finalizing your itinerary", PercentMerging)
	merged, report := Merge(draft, validation, a.settings.ConfidenceThreshold)
	if report != nil {
		if vAdapter != nil {
			report.Provider = vAdapter.Name()
		}
		outcome.ValidationReport = report
	}
	a.sm.to(StateDone)

	outcome.Success = true
	outcome.Itinerary = merged
	outcome.ProvidersUsed = a.used
	return outcome
}

// draft returns the baseline itinerary from the cache or the drafting adapter.
// Transient failures are retried while budget and retries remain.
func (o *Orchestrator) draft(ctx, parent context.Context, a *attempt, logger *slog.Logger) (*domain.GeneratedItinerary, bool, domain.ProviderResult) {
	req := a.req
	key := Fingerprint(req)

	if it := o.cacheGet(ctx, key, req, logger); it != nil {
		return it, true, domain.ProviderResult{}
	}

	adapter := o.adapters[domain.RoleDrafting]
	in := &domain.StageInput{Request: req}
	var res domain.ProviderResult
	for try := 0; try <= a.settings.DraftingRetries; try++ {
		if parent.Err() != nil || ctx.Err() != nil {
			break
		}
		res = adapter.Invoke(ctx, in, a.budget(a.settings.DraftingTimeout))
		if res.Usable() {
			if d, ok := res.Payload.(domain.DraftPayload); ok && d.Itinerary != nil && len(d.Itinerary.DailyPlans) == req.Days {
				it := d.Itinerary.Clone()
				it.Days = req.Days
				o.cachePut(ctx, key, it, logger)
				return it, false, res
			}
			res.Success = false
			res.ErrorKind = domain.ErrorKindInvalidPayload
			res.Detail = "draft does not match requested day count"
		}
		if !retryable(res.ErrorKind) {
			break
		}
		logger.Warn("retrying drafting",
			slog.Int("attempt", try+1),
			slog.String("error_kind", string(res.ErrorKind)),
		)
	}
	if res.ErrorKind == domain.ErrorKindNone {
		// Never invoked: the caller or the overall budget ended first.
		res.ErrorKind = domain.ErrorKindCanceled
		if parent.Err() == nil {
			res.ErrorKind = domain.ErrorKindTimeout
		}
	}
	logger.Error("drafting failed",
		slog.String("provider", adapter.Name()),
		slog.String("error_kind", string(res.ErrorKind)),
		slog.String("detail", res.Detail),
	)
	return nil, false, res
}

func retryable(kind domain.ErrorKind) bool {
	switch kind {
	case domain.ErrorKindNetwork, domain.ErrorKindRateLimited, domain.ErrorKindUpstream, domain.ErrorKindParse:
		return true
	}
	return false
}

func (o *Orchestrator) cacheGet(ctx context.Context, key string, req *domain.GenerationRequest, logger *slog.Logger) *domain.GeneratedItinerary {
	if o.cache == nil {
		return nil
	}
	ctx, span := o.tracer.Start(ctx, "orchestrator.cache_get")
	defer span.End()

	it, ok, err := o.cache.Get(ctx, key)
	switch {
	case err != nil:
		telemetry.CacheLookupsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		logger.Warn("cache lookup failed", slog.String("error", err.Error()))
		return nil
	case !ok || it == nil || len(it.DailyPlans) != req.Days:
		telemetry.CacheLookupsTotal.WithLabelValues("miss").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil
	}
	telemetry.CacheLookupsTotal.WithLabelValues("hit").Inc()
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return it.Clone()
}

func (o *Orchestrator) cachePut(ctx context.Context, key string, it *domain.GeneratedItinerary, logger *slog.Logger) {
	if o.cache == nil {
		return
	}
	ctx, span := o.tracer.Start(ctx, "orchestrator.cache_put")
	defer span.End()

	stored, err := o.cache.PutIfAbsent(ctx, key, it.Clone(), o.cacheTTL)
	if err != nil {
		span.RecordError(err)
		logger.Warn("cache store failed", slog.String("error", err.Error()))
		return
	}
	span.SetAttributes(attribute.Bool("cache.stored", stored))
}

func canceledOutcome(a *attempt) *domain.GenerationOutcome {
	a.sm.to(StateFailed)
	return &domain.GenerationOutcome{Error: draftCanceledMsg, ErrorKind: domain.ErrorKindCanceled}
}

func stateNames(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = s.String()
	}
	return out
}
