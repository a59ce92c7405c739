package normalize

import (
	"errors"
	"strings"
	"testing"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

func request(days int) *domain.GenerationRequest {
	return &domain.GenerationRequest{City: "Seoul", Days: days, Budget: "mid", LocalnessLevel: 3, Pace: "moderate", GroupType: "solo"}
}

const threeDays = "```json\n" + `{
  "title": "Seoul Like a Local",
  "highlights": "Gwangjang Market",
  "dailyPlans": [
    {"day": 1, "theme": "Markets", "activities": [
      {"time": "09:00", "name": "Gwangjang Market", "address": "88 Changgyeonggung-ro", "category": "Food", "localnessScore": "5"},
      {"time": "7:30 PM", "name": "Euljiro Alleys", "localnessScore": 9}
    ]},
    {"day": 2, "theme": "Palaces", "activities": [{"timeOfDay": "Morning", "name": "Changdeokgung"}]},
    {"day": 3, "theme": "Han River", "activities": [{"time": "14:00", "name": "Yeouido Park"}]},
    {"day": 4, "theme": "Extra", "activities": [{"name": "Should be dropped"}]}
  ]
}` + "\n```"

func TestDraft_NormalizesAndTruncates(t *testing.T) {
	it, err := Draft(threeDays, request(3))
	if err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	if it.Days != 3 || len(it.DailyPlans) != 3 {
		t.Fatalf("days = %d plans = %d, want 3/3", it.Days, len(it.DailyPlans))
	}
	if it.City != "Seoul" {
		t.Errorf("City = %q, want fallback to request city", it.City)
	}
	if len(it.Highlights) != 1 || it.Highlights[0] != "Gwangjang Market" {
		t.Errorf("Highlights = %v", it.Highlights)
	}

	first := it.DailyPlans[0].Activities
	if first[0].LocalnessScore != 5 || first[0].Category != "food" || first[0].TimeOfDay != domain.Morning {
		t.Errorf("first activity = %+v", first[0])
	}
	if first[1].LocalnessScore != domain.MaxActivityLocalness {
		t.Errorf("localness not clamped: %d", first[1].LocalnessScore)
	}
	if first[1].TimeOfDay != domain.Evening {
		t.Errorf("7:30 PM bucket = %q, want evening", first[1].TimeOfDay)
	}
	if got := it.DailyPlans[1].Activities[0]; got.TimeOfDay != domain.Morning || got.LocalnessScore != 3 {
		t.Errorf("second day activity = %+v", got)
	}
	if it.LocalScore == 0 {
		t.Errorf("LocalScore should be computed when absent")
	}
}

func TestDraft_TooFewDays(t *testing.T) {
	_, err := Draft(threeDays, request(5))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("err = %v, want ErrInvalidPayload", err)
	}
}

func TestDraft_EmptyDay(t *testing.T) {
	_, err := Draft(`{"dailyPlans":[{"day":1,"activities":[]}]}`, request(1))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("err = %v, want ErrInvalidPayload", err)
	}
}

func TestDraft_Unparseable(t *testing.T) {
	for _, text := range []string{"I cannot help with that.", `{"dailyPlans": [}`} {
		if _, err := Draft(text, request(1)); !errors.Is(err, ErrParse) {
			t.Errorf("Draft(%q) err = %v, want ErrParse", text, err)
		}
	}
}

func TestDraft_AlternateDayKey(t *testing.T) {
	it, err := Draft(`{"itinerary":[{"activities":[{"name":"N Seoul Tower"}]}]}`, request(1))
	if err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	if it.Title != "1 days in Seoul" || it.DailyPlans[0].Day != 1 {
		t.Errorf("unexpected draft %+v", it)
	}
}

func TestValidation(t *testing.T) {
	p, err := Validation(`Here you go: {"confidence": "85%", "corrections": [
		{"day": 1, "index": 0, "address": "88 Changgyeonggung-ro, Jongno-gu", "confidence": 0.95},
		{"day": 1, "index": 1, "name": "Euljiro 3-ga"},
		{"day": 0, "index": 0, "name": "out of range"},
		{"day": 2, "index": 0}
	], "issues": ["Changdeokgung closed Mondays"]}`)
	if err != nil {
		t.Fatalf("Validation() error = %v", err)
	}
	if p.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", p.Confidence)
	}
	if len(p.Corrections) != 2 {
		t.Fatalf("Corrections = %+v, want 2", p.Corrections)
	}
	if p.Corrections[0].Confidence != 0.95 || p.Corrections[1].Confidence != 0.85 {
		t.Errorf("correction confidences = %v, %v", p.Corrections[0].Confidence, p.Corrections[1].Confidence)
	}
	if len(p.Issues) != 1 {
		t.Errorf("Issues = %v", p.Issues)
	}
}

func TestValidation_Empty(t *testing.T) {
	if _, err := Validation(`{"notes": "looks fine"}`); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("err = %v, want ErrInvalidPayload", err)
	}
}

func TestQuality(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{`{"score": 8.5}`, 8.5},
		{`{"score": "72"}`, 7.2},
		{`{"score": -3}`, 0},
		{`{"score": 400}`, 10},
	}
	for _, tt := range tests {
		p, err := Quality(tt.text)
		if err != nil {
			t.Fatalf("Quality(%s) error = %v", tt.text, err)
		}
		if p.Score != tt.want {
			t.Errorf("Quality(%s).Score = %v, want %v", tt.text, p.Score, tt.want)
		}
	}

	if _, err := Quality(`{"issues": ["x"]}`); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("missing score err = %v", err)
	}
}

func TestPayload_DispatchesByRole(t *testing.T) {
	in := &domain.StageInput{Request: request(1)}
	p, err := Payload(domain.RoleQA, `{"score": 9, "suggestions": "book ahead"}`, in)
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	q, ok := p.(domain.QualityPayload)
	if !ok || q.Suggestions[0] != "book ahead" {
		t.Fatalf("payload = %#v", p)
	}

	if _, err := Payload(domain.Role("x"), "{}", in); err == nil || !strings.Contains(err.Error(), "unknown role") {
		t.Errorf("unknown role err = %v", err)
	}
}
