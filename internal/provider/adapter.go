// Package provider turns vendor backends into role adapters with a uniform
// timeout, classification and accounting contract.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/telemetry"
)

// DefaultTimeout applies when Invoke is called without a budget.
const DefaultTimeout = 30 * time.Second

const maxDetailLen = 256

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithMaxTimeout caps the budget of every invocation.
func WithMaxTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.maxTimeout = d
	}
}

// Adapter binds a backend to one role.
type Adapter struct {
	backend    ports.Backend
	role       domain.Role
	maxTimeout time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

var _ ports.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter for role.
func NewAdapter(backend ports.Backend, role domain.Role, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		backend: backend,
		role:    role,
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/tjfontaine/polyglot-itinerary/internal/provider"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return a.backend.Name() }

func (a *Adapter) Role() domain.Role { return a.role }

// Ping delegates to the backend when it supports it.
func (a *Adapter) Ping(ctx context.Context) error {
	if p, ok := a.backend.(ports.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type callResult struct {
	resp *ports.BackendResponse
	err  error
}

// Invoke runs exactly one backend call bounded by timeout. A call that outlives
// its budget is abandoned, not awaited; its late result is discarded.
func (a *Adapter) Invoke(ctx context.Context, in *domain.StageInput, timeout time.Duration) domain.ProviderResult {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if a.maxTimeout > 0 && timeout > a.maxTimeout {
		timeout = a.maxTimeout
	}

	ctx, span := a.tracer.Start(ctx, "provider.invoke", trace.WithAttributes(
		attribute.String("provider.name", a.Name()),
		attribute.String("provider.role", string(a.role)),
		attribute.Int64("provider.timeout_ms", timeout.Milliseconds()),
	))
	defer span.End()

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		resp, err := a.backend.Call(callCtx, a.role, in)
		done <- callResult{resp: resp, err: err}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = callResult{err: callCtx.Err()}
	}

	result := domain.ProviderResult{
		Provider: a.Name(),
		Role:     a.role,
		Latency:  time.Since(start),
	}

	switch {
	case res.err != nil:
		result.ErrorKind = Classify(ctx, callCtx, res.err)
		result.Detail = truncate(res.err.Error())
	case res.resp == nil || res.resp.Payload == nil:
		result.ErrorKind = domain.ErrorKindInvalidPayload
		result.Detail = "backend returned no payload"
	case res.resp.Payload.PayloadRole() != a.role:
		result.ErrorKind = domain.ErrorKindInvalidPayload
		result.Detail = fmt.Sprintf("backend returned %s payload for %s", res.resp.Payload.PayloadRole(), a.role)
	default:
		result.Success = true
		result.Payload = res.resp.Payload
		result.PromptTokens = res.resp.PromptTokens
		result.CompletionTokens = res.resp.CompletionTokens
	}

	a.record(ctx, span, result)
	return result
}

func (a *Adapter) record(ctx context.Context, span trace.Span, r domain.ProviderResult) {
	status := "success"
	if !r.Success {
		status = string(r.ErrorKind)
		span.SetStatus(codes.Error, status)
		a.logger.WarnContext(ctx, "provider call failed",
			slog.String("provider", r.Provider),
			slog.String("role", string(r.Role)),
			slog.String("error_kind", status),
			slog.String("detail", r.Detail),
			slog.Duration("latency", r.Latency),
		)
	} else {
		a.logger.DebugContext(ctx, "provider call succeeded",
			slog.String("provider", r.Provider),
			slog.String("role", string(r.Role)),
			slog.Duration("latency", r.Latency),
			slog.Int("prompt_tokens", r.PromptTokens),
			slog.Int("completion_tokens", r.CompletionTokens),
		)
	}
	span.SetAttributes(
		attribute.String("provider.status", status),
		attribute.Int("provider.prompt_tokens", r.PromptTokens),
		attribute.Int("provider.completion_tokens", r.CompletionTokens),
	)

	role := string(r.Role)
	telemetry.ProviderCallsTotal.WithLabelValues(role, r.Provider, status).Inc()
	telemetry.ProviderCallDuration.WithLabelValues(role, r.Provider).Observe(r.Latency.Seconds())
	if r.PromptTokens > 0 {
		telemetry.ProviderTokensTotal.WithLabelValues(role, r.Provider, "prompt").Add(float64(r.PromptTokens))
	}
	if r.CompletionTokens > 0 {
		telemetry.ProviderTokensTotal.WithLabelValues(role, r.Provider, "completion").Add(float64(r.CompletionTokens))
	}
}

// truncate caps s at maxDetailLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	n := maxDetailLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
