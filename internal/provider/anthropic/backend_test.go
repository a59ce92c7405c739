package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropicapi "github.com/tjfontaine/polyglot-itinerary/internal/api/anthropic"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

func validationInput() *domain.StageInput {
	return &domain.StageInput{
		Request: &domain.GenerationRequest{City: "Seoul", Days: 1, Budget: "mid", LocalnessLevel: 3},
		Draft: &domain.GeneratedItinerary{DailyPlans: []domain.DailyPlan{{
			Day:        1,
			Activities: []domain.Activity{{Name: "Gwangjang Market", Address: "Jongno"}},
		}}},
	}
}

func TestBackend_Call_Validation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key header to be 'test-key', got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("expected anthropic-version header to be set")
		}

		var req anthropicapi.MessagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System == "" {
			t.Error("expected system prompt")
		}
		if n := len(req.Messages); n != 2 || req.Messages[n-1].Role != "assistant" {
			t.Errorf("expected assistant prefill, got %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		// The reply continues the prefilled brace.
		fmt.Fprintln(w, `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "content": [{"type": "text", "text": "\"confidence\": 0.9, \"corrections\": [{\"day\": 1, \"index\": 0, \"address\": \"88 Changgyeonggung-ro, Jongno-gu\"}]}"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 321, "output_tokens": 40}
}`)
	}))
	defer ts.Close()

	b := New("validator", "test-key", WithBaseURL(ts.URL))
	resp, err := b.Call(context.Background(), domain.RoleValidation, validationInput())
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	v, ok := resp.Payload.(domain.ValidationPayload)
	if !ok {
		t.Fatalf("payload = %T", resp.Payload)
	}
	if len(v.Corrections) != 1 || v.Corrections[0].Confidence != 0.9 {
		t.Errorf("corrections = %+v", v.Corrections)
	}
	if resp.PromptTokens != 321 || resp.CompletionTokens != 40 {
		t.Errorf("tokens = %d/%d", resp.PromptTokens, resp.CompletionTokens)
	}
}

func TestBackend_Call_AuthError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprintln(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer ts.Close()

	_, err := New("validator", "bad", WithBaseURL(ts.URL)).Call(context.Background(), domain.RoleValidation, validationInput())
	var apiErr *anthropicapi.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatus() != http.StatusUnauthorized {
		t.Fatalf("Call() error = %v, want 401 APIError", err)
	}
}

func TestBackend_Ping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprintln(w, `{"data":[{"id":"claude-3-5-haiku-latest","type":"model"}],"has_more":false}`)
	}))
	defer ts.Close()

	if err := New("validator", "test-key", WithBaseURL(ts.URL)).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
