package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	openaiapi "github.com/tjfontaine/polyglot-itinerary/internal/api/openai"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/normalize"
	"github.com/tjfontaine/polyglot-itinerary/internal/testutil"
)

func draftInput(city string, days int) *domain.StageInput {
	return &domain.StageInput{Request: &domain.GenerationRequest{
		City: city, Days: days, Budget: "mid", LocalnessLevel: 4, Pace: "relaxed", GroupType: "couple", UserID: "user-1",
	}}
}

func TestBackend_Call_Replay(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: OPENAI_API_KEY not set")
	}

	recorder, cleanup := testutil.NewVCRRecorder(t, "openai_draft")
	defer cleanup()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = "test-key"
	}

	b := New("openai-draft", apiKey, WithHTTPClient(testutil.VCRHTTPClient(recorder)))

	resp, err := b.Call(context.Background(), domain.RoleDrafting, draftInput("Lisbon", 1))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	draft, ok := resp.Payload.(domain.DraftPayload)
	if !ok {
		t.Fatalf("payload = %T, want DraftPayload", resp.Payload)
	}
	if draft.Itinerary.Title != "Lisbon Beyond the Trams" {
		t.Errorf("Title = %q", draft.Itinerary.Title)
	}
	if got := len(draft.Itinerary.DailyPlans[0].Activities); got != 2 {
		t.Errorf("activities = %d, want 2", got)
	}
	if resp.PromptTokens != 412 || resp.CompletionTokens != 188 {
		t.Errorf("tokens = %d/%d, want 412/188", resp.PromptTokens, resp.CompletionTokens)
	}
}

func TestBackend_Call_SendsJSONMode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req openaiapi.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-test" || req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("request = %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("review temperature = %v", req.Temperature)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openaiapi.ChatCompletionResponse{
			Choices: []openaiapi.Choice{{Message: openaiapi.Message{Role: "assistant", Content: `{"score": 7.5, "issues": ["long transfer on day 2"]}`}}},
		})
	}))
	defer ts.Close()

	b := New("qa", "test-key", WithBaseURL(ts.URL), WithModel("gpt-test"))
	in := draftInput("Seoul", 1)
	in.Draft = &domain.GeneratedItinerary{DailyPlans: []domain.DailyPlan{{Day: 1, Activities: []domain.Activity{{Name: "Bukchon"}}}}}
	in.QAMode = domain.QAModeFull

	resp, err := b.Call(context.Background(), domain.RoleQA, in)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	q := resp.Payload.(domain.QualityPayload)
	if q.Score != 7.5 {
		t.Errorf("Score = %v", q.Score)
	}
	// No usage block in the response, so tokens are estimated.
	if resp.PromptTokens == 0 || resp.CompletionTokens == 0 {
		t.Errorf("expected estimated tokens, got %d/%d", resp.PromptTokens, resp.CompletionTokens)
	}
}

func TestBackend_Call_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr func(error) bool
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"slow down","type":"rate_limit_error"}}`,
			wantErr: func(err error) bool {
				var apiErr *openaiapi.APIError
				return errors.As(err, &apiErr) && apiErr.HTTPStatus() == http.StatusTooManyRequests
			},
		},
		{
			name:   "prose instead of json",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"role":"assistant","content":"Sorry, I can't do that."}}]}`,
			wantErr: func(err error) bool {
				return errors.Is(err, normalize.ErrParse)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			wantErr: func(err error) bool {
				return errors.Is(err, normalize.ErrInvalidPayload)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := New("draft", "k", WithBaseURL(ts.URL)).Call(context.Background(), domain.RoleDrafting, draftInput("Seoul", 1))
			if err == nil || !tt.wantErr(err) {
				t.Fatalf("Call() error = %v", err)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(config.ProviderConfig{Type: BackendType}); err == nil {
		t.Error("expected missing key error")
	}
	if err := ValidateCompatibleConfig(config.ProviderConfig{Type: BackendTypeCompatible}); err == nil {
		t.Error("expected missing base_url error")
	}
	if err := ValidateCompatibleConfig(config.ProviderConfig{BaseURL: "http://localhost:11434/v1"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
