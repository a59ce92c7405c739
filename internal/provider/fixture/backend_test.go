package fixture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

func TestDraft_Deterministic(t *testing.T) {
	req := &domain.GenerationRequest{City: "Seoul", Days: 3, Interests: []string{"Food", "art"}, Budget: "mid", LocalnessLevel: 4, Pace: "moderate", GroupType: "solo"}

	a, b := Draft(req), Draft(req)
	if a.Title != b.Title || a.DailyPlans[2].Activities[1].Name != b.DailyPlans[2].Activities[1].Name {
		t.Fatal("Draft is not deterministic")
	}
	if len(a.DailyPlans) != 3 || a.Days != 3 {
		t.Fatalf("days = %d, plans = %d", a.Days, len(a.DailyPlans))
	}
	if a.DailyPlans[0].Theme != "Art day" {
		t.Errorf("Theme = %q", a.DailyPlans[0].Theme)
	}
	if a.EstimatedCost != "$450" {
		t.Errorf("EstimatedCost = %q", a.EstimatedCost)
	}
	if a.LocalScore != 4 {
		t.Errorf("LocalScore = %v", a.LocalScore)
	}
}

func TestBackend_Roles(t *testing.T) {
	b := New("fx")
	req := &domain.GenerationRequest{City: "Seoul", Days: 1, LocalnessLevel: 3}

	resp, err := b.Call(context.Background(), domain.RoleDrafting, &domain.StageInput{Request: req})
	if err != nil {
		t.Fatalf("drafting error = %v", err)
	}
	draft := resp.Payload.(domain.DraftPayload).Itinerary

	resp, err = b.Call(context.Background(), domain.RoleValidation, &domain.StageInput{Request: req, Draft: draft})
	if err != nil {
		t.Fatalf("validation error = %v", err)
	}
	if v := resp.Payload.(domain.ValidationPayload); len(v.Corrections) != 2 {
		t.Errorf("corrections = %+v", v.Corrections)
	}

	resp, err = b.Call(context.Background(), domain.RoleQA, &domain.StageInput{Request: req, Draft: draft, QAMode: domain.QAModeBasic})
	if err != nil {
		t.Fatalf("qa error = %v", err)
	}
	if q := resp.Payload.(domain.QualityPayload); q.Score != 8 {
		t.Errorf("score = %v", q.Score)
	}
}

func TestBackend_DelayHonorsContext(t *testing.T) {
	b := New("slow", WithDelay(time.Minute))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Call(ctx, domain.RoleDrafting, &domain.StageInput{Request: &domain.GenerationRequest{City: "x", Days: 1}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestCreateFromConfig_Scenarios(t *testing.T) {
	b, err := CreateFromConfig(config.ProviderConfig{Name: "f", Model: ScenarioFail})
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.Call(context.Background(), domain.RoleDrafting, &domain.StageInput{Request: &domain.GenerationRequest{City: "x", Days: 1}})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("fail scenario err = %v", err)
	}

	if err := ValidateConfig(config.ProviderConfig{Model: "chaos"}); err == nil {
		t.Error("expected unknown scenario error")
	}
}
