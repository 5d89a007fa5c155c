package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediguard-server/internal/domain"
)

func TestRuleTableAdapter_Assess(t *testing.T) {
	tests := []struct {
		name       string
		drug       string
		conditions []string
		wantTier   domain.RiskTier
		wantIndex  float64
		wantSignal string
	}{
		{
			name:      "unknown drug is safe",
			drug:      "unobtanium",
			wantTier:  domain.RiskSafe,
			wantIndex: 0.9,
		},
		{
			name:      "known drug with no conditions is safe",
			drug:      "ibuprofen",
			wantTier:  domain.RiskSafe,
			wantIndex: 0.9,
		},
		{
			name:       "ibuprofen with ulcer is danger",
			drug:       "ibuprofen",
			conditions: []string{"stomach ulcer"},
			wantTier:   domain.RiskDanger,
			wantIndex:  0.2,
			wantSignal: "condition match: ulcer",
		},
		{
			name:       "ibuprofen with asthma is caution",
			drug:       "ibuprofen",
			conditions: []string{"asthma"},
			wantTier:   domain.RiskCaution,
			wantIndex:  0.55,
			wantSignal: "condition match: asthma",
		},
		{
			name:       "danger wins when both tiers match",
			drug:       "ibuprofen",
			conditions: []string{"asthma", "pregnancy"},
			wantTier:   domain.RiskDanger,
			wantIndex:  0.2,
			wantSignal: "condition match: pregnancy",
		},
		{
			name:       "acetaminophen with liver disease is danger",
			drug:       "acetaminophen",
			conditions: []string{"liver disease"},
			wantTier:   domain.RiskDanger,
			wantIndex:  0.2,
			wantSignal: "condition match: liver",
		},
		{
			name:       "acetaminophen with alcohol use is caution",
			drug:       "acetaminophen",
			conditions: []string{"regular alcohol use"},
			wantTier:   domain.RiskCaution,
			wantIndex:  0.55,
			wantSignal: "condition match: alcohol",
		},
		{
			name:       "naproxen with hypertension is caution",
			drug:       "naproxen",
			conditions: []string{"hypertension"},
			wantTier:   domain.RiskCaution,
			wantIndex:  0.55,
			wantSignal: "condition match: hypertension",
		},
		{
			name:       "mixed case drug name still matches",
			drug:       " Ibuprofen ",
			conditions: []string{"Pregnancy"},
			wantTier:   domain.RiskDanger,
			wantIndex:  0.2,
			wantSignal: "condition match: pregnancy",
		},
	}

	adapter := NewRuleTableAdapter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patient := domain.NewPatientContext("40", "female", tt.conditions)
			assessment, err := adapter.Assess(context.Background(), tt.drug, patient, nil)
			require.NoError(t, err)
			require.NotNil(t, assessment, "rule table must always judge")

			assert.Equal(t, tt.wantTier, assessment.Risk)
			assert.InDelta(t, tt.wantIndex, assessment.RiskIndex, 1e-9)
			assert.Equal(t, domain.SourceLocalRules, assessment.Source)
			assert.NotEmpty(t, assessment.Summary)
			assert.NoError(t, assessment.Validate())

			if tt.wantSignal != "" {
				require.Len(t, assessment.Signals, 1)
				assert.Equal(t, tt.wantSignal, assessment.Signals[0])
			} else {
				assert.Empty(t, assessment.Signals)
			}
		})
	}
}

func TestRuleTableAdapter_SnippetExcerptInSummary(t *testing.T) {
	adapter := NewRuleTableAdapter()
	snippet := &domain.LabelSnippet{CombinedText: "warnings: Do not exceed the recommended dose."}

	assessment, err := adapter.Assess(context.Background(), "ibuprofen", domain.PatientContext{}, snippet)
	require.NoError(t, err)
	assert.Contains(t, assessment.Summary, "Label: warnings: Do not exceed")
}

func TestRuleTableAdapter_Capability(t *testing.T) {
	assert.Equal(t, domain.SkipNone, NewRuleTableAdapter().Capability())
}
