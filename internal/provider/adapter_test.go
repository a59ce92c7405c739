package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	openaiapi "github.com/tjfontaine/polyglot-itinerary/internal/api/openai"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/fixture"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/normalize"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/registry"
)

func stageInput() *domain.StageInput {
	return &domain.StageInput{Request: &domain.GenerationRequest{City: "Seoul", Days: 1}}
}

func TestAdapter_Invoke_Success(t *testing.T) {
	b := &stubBackend{name: "stub", resp: &ports.BackendResponse{
		Payload:          domain.QualityPayload{Score: 9},
		PromptTokens:     10,
		CompletionTokens: 5,
	}}
	a := NewAdapter(b, domain.RoleQA)

	got := a.Invoke(context.Background(), stageInput(), time.Second)
	if !got.Success || !got.Usable() {
		t.Fatalf("result = %+v, want success", got)
	}
	if got.Provider != "stub" || got.Role != domain.RoleQA {
		t.Errorf("provider/role = %s/%s", got.Provider, got.Role)
	}
	if got.PromptTokens != 10 || got.CompletionTokens != 5 {
		t.Errorf("tokens = %d/%d", got.PromptTokens, got.CompletionTokens)
	}
	if got.ErrorKind != domain.ErrorKindNone {
		t.Errorf("ErrorKind = %q", got.ErrorKind)
	}
}

func TestAdapter_Invoke_TimeoutDoesNotWaitForBackend(t *testing.T) {
	b := &stubBackend{name: "stuck", delay: 2 * time.Second, resp: &ports.BackendResponse{Payload: domain.QualityPayload{}}}
	a := NewAdapter(b, domain.RoleQA)

	start := time.Now()
	got := a.Invoke(context.Background(), stageInput(), 50*time.Millisecond)
	elapsed := time.Since(start)

	if got.Success {
		t.Fatal("expected failure")
	}
	if got.ErrorKind != domain.ErrorKindTimeout {
		t.Errorf("ErrorKind = %q, want timeout", got.ErrorKind)
	}
	if elapsed > time.Second {
		t.Errorf("Invoke took %v, should return at the deadline", elapsed)
	}
	if b.calls.Load() != 1 {
		t.Errorf("calls = %d, want exactly one", b.calls.Load())
	}
}

func TestAdapter_Invoke_ParentCanceled(t *testing.T) {
	b := &stubBackend{name: "stuck", delay: time.Second}
	a := NewAdapter(b, domain.RoleDrafting)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	got := a.Invoke(ctx, stageInput(), 5*time.Second)
	if got.ErrorKind != domain.ErrorKindCanceled {
		t.Fatalf("ErrorKind = %q, want canceled", got.ErrorKind)
	}
}

func TestAdapter_Invoke_MaxTimeoutCaps(t *testing.T) {
	b := &stubBackend{name: "stuck", delay: time.Second}
	a := NewAdapter(b, domain.RoleQA, WithMaxTimeout(30*time.Millisecond))

	start := time.Now()
	got := a.Invoke(context.Background(), stageInput(), time.Minute)
	if got.ErrorKind != domain.ErrorKindTimeout || time.Since(start) > 500*time.Millisecond {
		t.Fatalf("result = %+v after %v", got, time.Since(start))
	}
}

func TestAdapter_Invoke_BadPayloads(t *testing.T) {
	tests := []struct {
		name string
		b    *stubBackend
		want domain.ErrorKind
	}{
		{"nil response", &stubBackend{name: "s"}, domain.ErrorKindInvalidPayload},
		{"wrong role", &stubBackend{name: "s", resp: &ports.BackendResponse{Payload: domain.QualityPayload{}}}, domain.ErrorKindInvalidPayload},
		{"panic", &stubBackend{name: "s", panics: true}, domain.ErrorKindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAdapter(tt.b, domain.RoleDrafting).Invoke(context.Background(), stageInput(), time.Second)
			if got.Success || got.ErrorKind != tt.want {
				t.Fatalf("result = %+v, want %s", got, tt.want)
			}
			if got.Detail == "" {
				t.Error("expected detail")
			}
		})
	}
}

func TestAdapter_Invoke_DoesNotMutateInput(t *testing.T) {
	in := stageInput()
	in.Request.Interests = []string{"Food"}
	b := &stubBackend{name: "s", resp: &ports.BackendResponse{Payload: domain.DraftPayload{Itinerary: &domain.GeneratedItinerary{}}}}

	NewAdapter(b, domain.RoleDrafting).Invoke(context.Background(), in, time.Second)
	if in.Request.City != "Seoul" || in.Request.Interests[0] != "Food" || in.Draft != nil {
		t.Errorf("input mutated: %+v", in.Request)
	}
}

func TestAdapter_Ping(t *testing.T) {
	if err := NewAdapter(&stubBackend{name: "s"}, domain.RoleQA).Ping(context.Background()); err != nil {
		t.Errorf("non-pinger Ping() = %v, want nil", err)
	}
	pb := &pingBackend{stubBackend: stubBackend{name: "p"}, pingErr: errors.New("down")}
	if err := NewAdapter(pb, domain.RoleQA).Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	bg := context.Background()
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, domain.ErrorKindNone},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), domain.ErrorKindTimeout},
		{"canceled", context.Canceled, domain.ErrorKindCanceled},
		{"unauthorized", &openaiapi.APIError{StatusCode: http.StatusUnauthorized}, domain.ErrorKindAuth},
		{"forbidden", &openaiapi.APIError{StatusCode: http.StatusForbidden}, domain.ErrorKindAuth},
		{"rate limited", fmt.Errorf("wrapped: %w", &openaiapi.APIError{StatusCode: http.StatusTooManyRequests}), domain.ErrorKindRateLimited},
		{"server error", &openaiapi.APIError{StatusCode: http.StatusBadGateway}, domain.ErrorKindUpstream},
		{"parse", fmt.Errorf("%w: junk", normalize.ErrParse), domain.ErrorKindParse},
		{"invalid payload", fmt.Errorf("%w: 2 days", normalize.ErrInvalidPayload), domain.ErrorKindInvalidPayload},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutErr{}}, domain.ErrorKindTimeout},
		{"net refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, domain.ErrorKindNetwork},
		{"unknown", errors.New("weird"), domain.ErrorKindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(bg, bg, tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewPoolFromConfig(t *testing.T) {
	registry.ClearFactories()
	t.Cleanup(registry.ClearFactories)
	fixture.RegisterBackendFactory()

	pool, err := NewPoolFromConfig([]config.ProviderConfig{
		{Name: "drafter", Type: "fixture", Role: "drafting"},
		{Name: "checker", Type: "fixture", Role: "qa"},
	}, nil)
	if err != nil {
		t.Fatalf("NewPoolFromConfig() error = %v", err)
	}
	if a, ok := pool.Get(domain.RoleDrafting); !ok || a.Name() != "drafter" {
		t.Errorf("drafting adapter = %v, %v", a, ok)
	}
	if _, ok := pool.Get(domain.RoleValidation); ok {
		t.Error("validation should be unconfigured")
	}
	if got := pool.Adapters(); len(got) != 2 || got[0].Role() != domain.RoleDrafting {
		t.Errorf("Adapters() = %v", got)
	}
	if got := strings.Join(pool.Names(), ","); got != "checker,drafter" {
		t.Errorf("Names() = %s", got)
	}
}

func TestNewPoolFromConfig_Errors(t *testing.T) {
	registry.ClearFactories()
	t.Cleanup(registry.ClearFactories)
	fixture.RegisterBackendFactory()

	tests := []struct {
		name string
		cfgs []config.ProviderConfig
	}{
		{"unknown role", []config.ProviderConfig{{Name: "a", Type: "fixture", Role: "translate"}}},
		{"duplicate role", []config.ProviderConfig{{Name: "a", Type: "fixture", Role: "drafting"}, {Name: "b", Type: "fixture", Role: "drafting"}}},
		{"unknown type", []config.ProviderConfig{{Name: "a", Type: "gemini", Role: "drafting"}}},
		{"no drafting", []config.ProviderConfig{{Name: "a", Type: "fixture", Role: "qa"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPoolFromConfig(tt.cfgs, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
	}{
		{"short", "timeout", len("timeout")},
		{"ascii", strings.Repeat("a", 300), maxDetailLen + 3},
		// 255 bytes of ASCII puts a 3-byte rune across the cut.
		{"multibyte boundary", strings.Repeat("a", 255) + strings.Repeat("서", 10), 255 + 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in)
			if !utf8.ValidString(got) {
				t.Errorf("truncate produced invalid UTF-8: %q", got)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}
