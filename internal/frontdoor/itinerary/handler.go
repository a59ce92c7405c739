// Package itinerary is the HTTP frontdoor for itinerary generation. It
// authenticates and meters callers, runs the orchestrator through a buffered or
// streaming progress channel, post-processes and persists the result, and hands
// side effects to a detached dispatcher.
package itinerary

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/orchestrator"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/progress"
	"github.com/tjfontaine/polyglot-itinerary/internal/server"
	"github.com/tjfontaine/polyglot-itinerary/internal/sideeffects"
	"github.com/tjfontaine/polyglot-itinerary/internal/storage"
)

// Generator runs generation attempts. *orchestrator.Orchestrator implements it.
type Generator interface {
	Generate(ctx context.Context, req *domain.GenerationRequest, ch *progress.Channel) *domain.GenerationOutcome
	HealthStatus(ctx context.Context) orchestrator.HealthStatus
}

// Config holds the handler's collaborators. Pipeline, Events and Dispatcher
// are optional.
type Config struct {
	Generator  Generator
	Usage      ports.UsageTracker
	Store      ports.ItineraryStore
	Pipeline   ports.PipelineExecutor
	Events     ports.EventPublisher
	Dispatcher *sideeffects.Dispatcher
	Upgrades   map[string]config.UpgradeConfig
	XPPerTrip  int
	Logger     *slog.Logger
}

// Handler serves the itinerary endpoints.
type Handler struct {
	gen        Generator
	usage      ports.UsageTracker
	store      ports.ItineraryStore
	pipeline   ports.PipelineExecutor
	events     ports.EventPublisher
	dispatcher *sideeffects.Dispatcher
	logger     *slog.Logger

	upgrades  atomic.Pointer[map[string]config.UpgradeConfig]
	xpPerTrip atomic.Int64
}

// NewHandler creates a handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Generator == nil {
		return nil, errors.New("itinerary: generator is required")
	}
	if cfg.Usage == nil {
		return nil, errors.New("itinerary: usage tracker is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("itinerary: itinerary store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		gen:        cfg.Generator,
		usage:      cfg.Usage,
		store:      cfg.Store,
		pipeline:   cfg.Pipeline,
		events:     cfg.Events,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
	}
	h.UpdateOffers(cfg.Upgrades, cfg.XPPerTrip)
	return h, nil
}

// UpdateOffers swaps the upgrade offers and XP award. Safe for concurrent use.
func (h *Handler) UpdateOffers(upgrades map[string]config.UpgradeConfig, xpPerTrip int) {
	cp := make(map[string]config.UpgradeConfig, len(upgrades))
	for k, v := range upgrades {
		cp[k] = v
	}
	h.upgrades.Store(&cp)
	h.xpPerTrip.Store(int64(xpPerTrip))
}

// Routes returns the router to mount at /api/itineraries. The health check is
// public; everything else runs behind mw (authentication, rate limiting).
func (h *Handler) Routes(mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/generate-v2", h.Health)
	r.Group(func(r chi.Router) {
		r.Use(mw...)
		r.Post("/generate-v2", h.Generate)
		r.Post("/generate-v2/stream", h.Stream)
		r.Get("/{id}", h.Get)
	})
	return r
}

// Generate handles POST /generate-v2 and replies with a single JSON body.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false)
}

// Stream handles POST /generate-v2/stream and replies with server-sent events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, stream bool) {
	ctx := r.Context()
	auth := server.GetAuth(ctx)
	if auth == nil {
		server.WriteError(w, domain.ErrAuthentication("Authentication required"))
		return
	}

	decision, err := h.usage.CheckAndTrackUsage(ctx, auth.UserID, storage.UsageKindItinerary)
	if err != nil {
		server.AddError(ctx, err)
		server.WriteError(w, domain.ErrServer("Unable to check usage"))
		return
	}
	server.WriteUsageHeaders(w, decision.Usage)
	if !decision.Allowed {
		server.AddLogField(ctx, "limit_exceeded", "true")
		server.WriteJSON(w, http.StatusTooManyRequests, limitBody(decision, *h.upgrades.Load()))
		return
	}

	req, apiErr := decodeRequest(w, r)
	if apiErr != nil {
		server.AddError(ctx, apiErr)
		server.WriteError(w, apiErr)
		return
	}
	req.Tier = decision.Tier
	req.UserID = auth.UserID
	req.RequestID = server.GetRequestID(ctx)
	server.AddLogField(ctx, "tier", string(req.Tier))

	var sink progress.Sink
	var buf *progress.Buffer
	if stream {
		sse, err := progress.NewSSEWriter(w)
		if err != nil {
			server.AddError(ctx, err)
			server.WriteError(w, domain.ErrServer("Streaming is not supported"))
			return
		}
		sink = sse
	} else {
		buf = progress.NewBuffer()
		sink = buf
	}
	ch := progress.New(ctx, sink)

	outcome := h.gen.Generate(ctx, req, ch)
	if !outcome.Success {
		h.fail(w, r, ch, stream, req, outcome)
		return
	}

	it, err := h.postProcess(ctx, req, outcome, ch)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		server.AddError(ctx, err)
		apiErr := domain.ErrServer("Failed to save itinerary")
		_ = ch.Fail(apiErr.Message)
		if !stream {
			server.WriteError(w, apiErr)
		}
		return
	}
	server.AddLogField(ctx, "itinerary_id", it.ID)

	body := successBody(req.Tier, outcome, it)
	if err := ch.Complete(body); err != nil {
		server.AddError(ctx, err)
	}
	if !stream {
		server.WriteJSON(w, http.StatusOK, finalData(buf, body))
	}

	h.submitSideEffects(req, outcome, it)
}

// postProcess runs the post-generation stages (thumbnails, persistence). With
// no pipeline configured the itinerary is saved directly.
func (h *Handler) postProcess(ctx context.Context, req *domain.GenerationRequest, outcome *domain.GenerationOutcome, ch *progress.Channel) (*domain.GeneratedItinerary, error) {
	if h.pipeline != nil {
		return h.pipeline.Run(ctx, &ports.StageInput{
			UserID:    req.UserID,
			Request:   req,
			Outcome:   outcome,
			Itinerary: outcome.Itinerary,
		}, ch)
	}

	_ = ch.Progress("Saving itinerary", 96)
	id, err := h.store.SaveItinerary(ctx, req.UserID, outcome.Itinerary, req, &ports.SaveMeta{
		QualityScore:  outcome.QualityScore,
		FallbackUsed:  outcome.FallbackUsed,
		ProvidersUsed: outcome.ProvidersUsed,
	})
	if err != nil {
		return nil, err
	}
	it := outcome.Itinerary.Clone()
	it.ID = id
	return it, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, ch *progress.Channel, stream bool, req *domain.GenerationRequest, outcome *domain.GenerationOutcome) {
	ctx := r.Context()
	server.AddLogField(ctx, "error_kind", string(outcome.ErrorKind))
	if outcome.ErrorKind == domain.ErrorKindCanceled || ctx.Err() != nil {
		// Nobody is listening anymore.
		return
	}

	body := failureBody(req.Tier, outcome)
	_ = ch.Fail(body.Message)
	if !stream {
		server.WriteJSON(w, http.StatusInternalServerError, body)
	}
}

// finalData returns the complete event's data as delivered through the
// buffer, so the buffered body is exactly what a stream would carry.
func finalData(buf *progress.Buffer, fallback any) any {
	if buf != nil {
		if ev, ok := buf.Final(); ok && ev.Type == domain.EventComplete && ev.Data != nil {
			return ev.Data
		}
	}
	return fallback
}

// Health handles GET /generate-v2.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.gen.HealthStatus(r.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	server.WriteJSON(w, code, status)
}

// Get handles GET /{id}. Itineraries owned by someone else are reported as
// not found.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auth := server.GetAuth(ctx)
	if auth == nil {
		server.WriteError(w, domain.ErrAuthentication("Authentication required"))
		return
	}

	id := chi.URLParam(r, "id")
	stored, err := h.store.GetItinerary(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFoundSentinel) {
			server.AddError(ctx, err)
			server.WriteError(w, domain.ErrServer("Unable to load itinerary"))
			return
		}
		stored = nil
	}
	if stored == nil || stored.UserID != auth.UserID {
		server.WriteError(w, domain.ErrNotFound("Itinerary not found"))
		return
	}

	server.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"itinerary": stored.Itinerary,
		"params":    stored.Params,
		"createdAt": stored.CreatedAt,
	})
}
