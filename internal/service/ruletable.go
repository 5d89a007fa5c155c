package service

import (
	"context"
	"strings"

	"github.com/mediguard-server/internal/domain"
)

// conditionProfile lists per-drug condition keywords by tier.
type conditionProfile struct {
	caution []string
	danger  []string
}

// ruleTable is the curated last-resort knowledge. Keys are lower-case drug
// names; keywords are matched by substring containment against the user's
// free-text conditions.
var ruleTable = map[string]conditionProfile{
	"ibuprofen": {
		caution: []string{"asthma", "hypertension"},
		danger:  []string{"ulcer", "pregnancy"},
	},
	"acetaminophen": {
		caution: []string{"alcohol"},
		danger:  []string{"liver"},
	},
	"naproxen": {
		caution: []string{"hypertension"},
		danger:  []string{"ulcer", "pregnancy"},
	},
}

// RuleTableAdapter is the guaranteed terminal fallback of the cascade: a
// static drug/condition table that always produces an assessment. It never
// returns nil.
type RuleTableAdapter struct{}

// NewRuleTableAdapter creates the rule-table adapter.
func NewRuleTableAdapter() *RuleTableAdapter {
	return &RuleTableAdapter{}
}

// Source identifies the adapter in logs and in the canonical result.
func (a *RuleTableAdapter) Source() domain.AdapterSource {
	return domain.SourceLocalRules
}

// Capability always reports available; the table has no preconditions.
func (a *RuleTableAdapter) Capability() domain.SkipReason {
	return domain.SkipNone
}

// Assess matches the patient's conditions against the table. Danger
// keywords are checked before caution keywords so danger wins when both
// match; an unknown drug or no match yields Safe. Tier indices are the
// fixed table values, never model-derived.
func (a *RuleTableAdapter) Assess(_ context.Context, drug string, patient domain.PatientContext, snippet *domain.LabelSnippet) (*domain.RiskAssessment, error) {
	conditions := strings.ToLower(patient.ConditionsText())

	tier := domain.RiskSafe
	summary := "No major issues detected."
	var signals []string

	if profile, ok := ruleTable[strings.ToLower(strings.TrimSpace(drug))]; ok {
		if matched := firstMatch(profile.danger, conditions); matched != "" {
			tier = domain.RiskDanger
			summary = "May worsen existing condition. Avoid unless prescribed."
			signals = []string{"condition match: " + matched}
		} else if matched := firstMatch(profile.caution, conditions); matched != "" {
			tier = domain.RiskCaution
			summary = "Monitor or seek advice before use."
			signals = []string{"condition match: " + matched}
		}
	}

	if text := snippet.Excerpt(100); text != "" {
		summary += " Label: " + text + "..."
	}

	return &domain.RiskAssessment{
		Risk:      tier,
		RiskIcon:  tier.Icon(),
		RiskIndex: tier.DefaultIndex(),
		Summary:   summary,
		Signals:   signals,
		Source:    domain.SourceLocalRules,
	}, nil
}

// firstMatch returns the first keyword contained in the conditions text.
func firstMatch(keywords []string, conditions string) string {
	for _, kw := range keywords {
		if strings.Contains(conditions, kw) {
			return kw
		}
	}
	return ""
}
