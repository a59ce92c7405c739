package prompt

import (
	"strings"
	"testing"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

func seoulRequest() *domain.GenerationRequest {
	return &domain.GenerationRequest{
		City: "Seoul", Days: 3, Interests: []string{"Food", "markets"},
		Budget: "mid", LocalnessLevel: 4, Pace: "moderate", GroupType: "couple",
		TemplatePrompt: "avoid early mornings",
	}
}

func TestBuild_Drafting(t *testing.T) {
	system, user, err := Build(domain.RoleDrafting, &domain.StageInput{Request: seoulRequest()})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(system, `"dailyPlans"`) {
		t.Errorf("system prompt missing schema: %q", system)
	}
	for _, want := range []string{"City: Seoul", "exactly 3 dailyPlans", "food, markets", "avoid early mornings"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q: %q", want, user)
		}
	}
}

func TestBuild_ReviewRolesNeedDraft(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleValidation, domain.RoleQA} {
		if _, _, err := Build(role, &domain.StageInput{Request: seoulRequest()}); err == nil {
			t.Errorf("Build(%s) without draft: expected error", role)
		}
	}
}

func TestBuild_QualityModes(t *testing.T) {
	draft := &domain.GeneratedItinerary{DailyPlans: []domain.DailyPlan{{Day: 1, Activities: []domain.Activity{{Name: "Gwangjang Market"}}}}}

	basic, user, err := Build(domain.RoleQA, &domain.StageInput{Request: seoulRequest(), Draft: draft, QAMode: domain.QAModeBasic})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	full, _, err := Build(domain.RoleQA, &domain.StageInput{Request: seoulRequest(), Draft: draft, QAMode: domain.QAModeFull})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if basic == full {
		t.Errorf("basic and full QA prompts should differ")
	}
	if !strings.Contains(user, "Gwangjang Market") {
		t.Errorf("QA user prompt missing draft content")
	}
}

func TestBuild_UnknownRole(t *testing.T) {
	if _, _, err := Build(domain.Role("translate"), &domain.StageInput{Request: seoulRequest()}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
