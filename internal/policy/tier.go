// Package policy maps subscription tiers to orchestration features.
package policy

import (
	"strings"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

// Features is what a tier is allowed to run.
type Features struct {
	MultiProvider bool
	Validation    bool
	QAMode        domain.QAMode
}

// RunsQA reports whether the quality check phase is enabled.
func (f Features) RunsQA() bool {
	return f.MultiProvider && f.QAMode != domain.QAModeOff && f.QAMode != ""
}

// RunsValidation reports whether the validation phase is enabled.
func (f Features) RunsValidation() bool {
	return f.MultiProvider && f.Validation
}

var defaultTable = map[domain.Tier]Features{
	domain.TierFree:    {MultiProvider: false, QAMode: domain.QAModeOff},
	domain.TierPro:     {MultiProvider: true, Validation: true, QAMode: domain.QAModeBasic},
	domain.TierPremium: {MultiProvider: true, Validation: true, QAMode: domain.QAModeFull},
}

// IsMultiProviderEnabled reports whether tier may use more than the drafting
// provider. Free and unknown tiers may not.
func IsMultiProviderEnabled(tier domain.Tier) bool {
	return defaultTable[tier].MultiProvider
}

// Table resolves features per tier. The zero value uses the built-in defaults.
type Table struct {
	tiers map[domain.Tier]Features
}

// NewTable builds a table from config overrides layered on the defaults.
// The free tier can never be granted multi-provider orchestration.
func NewTable(overrides map[string]config.TierConfig) *Table {
	t := &Table{tiers: make(map[domain.Tier]Features, len(defaultTable))}
	for tier, f := range defaultTable {
		t.tiers[tier] = f
	}
	for name, o := range overrides {
		tier := domain.ParseTier(name)
		if tier == domain.TierFree || !strings.EqualFold(strings.TrimSpace(name), string(tier)) {
			continue
		}
		t.tiers[tier] = Features{
			MultiProvider: o.MultiProvider,
			Validation:    o.Validation,
			QAMode:        parseQAMode(o.QA),
		}
	}
	return t
}

// Features returns the features for tier. Unknown tiers get free-tier features.
func (t *Table) Features(tier domain.Tier) Features {
	if t == nil || t.tiers == nil {
		if f, ok := defaultTable[tier]; ok {
			return f
		}
		return defaultTable[domain.TierFree]
	}
	if f, ok := t.tiers[tier]; ok {
		return f
	}
	return t.tiers[domain.TierFree]
}

func parseQAMode(s string) domain.QAMode {
	switch domain.QAMode(strings.ToLower(strings.TrimSpace(s))) {
	case domain.QAModeBasic:
		return domain.QAModeBasic
	case domain.QAModeFull:
		return domain.QAModeFull
	default:
		return domain.QAModeOff
	}
}
