package policy

import (
	"testing"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

func TestIsMultiProviderEnabled(t *testing.T) {
	tests := []struct {
		tier domain.Tier
		want bool
	}{
		{domain.TierFree, false},
		{domain.TierPro, true},
		{domain.TierPremium, true},
		{domain.Tier("enterprise"), false},
		{domain.Tier(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			if got := IsMultiProviderEnabled(tt.tier); got != tt.want {
				t.Errorf("IsMultiProviderEnabled(%q) = %v, want %v", tt.tier, got, tt.want)
			}
			// Deterministic across calls.
			if got := IsMultiProviderEnabled(tt.tier); got != tt.want {
				t.Errorf("second call IsMultiProviderEnabled(%q) = %v, want %v", tt.tier, got, tt.want)
			}
		})
	}
}

func TestTable_Defaults(t *testing.T) {
	var table *Table

	tests := []struct {
		tier           domain.Tier
		wantValidation bool
		wantQA         bool
		wantMode       domain.QAMode
	}{
		{domain.TierFree, false, false, domain.QAModeOff},
		{domain.TierPro, true, true, domain.QAModeBasic},
		{domain.TierPremium, true, true, domain.QAModeFull},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			f := table.Features(tt.tier)
			if f.RunsValidation() != tt.wantValidation {
				t.Errorf("RunsValidation() = %v, want %v", f.RunsValidation(), tt.wantValidation)
			}
			if f.RunsQA() != tt.wantQA {
				t.Errorf("RunsQA() = %v, want %v", f.RunsQA(), tt.wantQA)
			}
			if f.QAMode != tt.wantMode {
				t.Errorf("QAMode = %q, want %q", f.QAMode, tt.wantMode)
			}
		})
	}
}

func TestNewTable_Overrides(t *testing.T) {
	table := NewTable(map[string]config.TierConfig{
		"pro":  {MultiProvider: true, Validation: true, QA: "off"},
		"free": {MultiProvider: true, Validation: true, QA: "full"},
		"gold": {MultiProvider: true},
	})

	pro := table.Features(domain.TierPro)
	if pro.RunsQA() {
		t.Errorf("pro QA should be disabled by override")
	}
	if !pro.RunsValidation() {
		t.Errorf("pro validation should stay enabled")
	}

	if table.Features(domain.TierFree).MultiProvider {
		t.Errorf("free tier must never get multi-provider orchestration")
	}

	if got := table.Features(domain.Tier("gold")); got.MultiProvider {
		t.Errorf("unknown tier should resolve to free features, got %+v", got)
	}

	if got := table.Features(domain.TierPremium).QAMode; got != domain.QAModeFull {
		t.Errorf("premium QAMode = %q, want full", got)
	}
}
