package service

import (
	"encoding/json"
	"strings"

	"github.com/mediguard-server/internal/domain"
)

// rawReasoning is the loosely-typed shape a reasoning source actually
// returns. Every field is optional except risk; some models answer with
// "reason" instead of "why"/"summary".
type rawReasoning struct {
	Risk      string          `json:"risk"`
	RiskIndex json.RawMessage `json:"risk_index"`
	Summary   string          `json:"summary"`
	Why       string          `json:"why"`
	Advice    string          `json:"advice"`
	Reason    string          `json:"reason"`
	Signals   []string        `json:"signals"`
}

// hasRisk reports whether the reply carried the one required field.
func (r *rawReasoning) hasRisk() bool {
	return strings.TrimSpace(r.Risk) != ""
}

// normalizeReasoning converts a raw reply into the canonical risk record.
// The rules are shared by all adapters:
//   - the risk string is matched case-insensitively against "danger", then
//     "caution", else defaults to Safe; the icon derives from the same match
//   - a numeric risk_index is read as a 0-100 score, divided by 100 and
//     clamped to [0,1]; an absent or non-numeric index takes the tier default
//   - signals are truncated to the cap
func normalizeReasoning(raw *rawReasoning, source domain.AdapterSource) *domain.RiskAssessment {
	tier := matchTier(raw.Risk)

	index := tier.DefaultIndex()
	if score, ok := numericIndex(raw.RiskIndex); ok {
		index = domain.ClampIndex(score / 100)
	}

	summary := strings.TrimSpace(raw.Summary)
	if summary == "" {
		summary = strings.TrimSpace(raw.Reason)
	}
	if summary == "" {
		summary = "No summary provided."
	}

	why := strings.TrimSpace(raw.Why)
	if why == "" {
		why = strings.TrimSpace(raw.Reason)
	}

	signals := raw.Signals
	if len(signals) > domain.MaxSignals {
		signals = signals[:domain.MaxSignals]
	}

	return &domain.RiskAssessment{
		Risk:      tier,
		RiskIcon:  tier.Icon(),
		RiskIndex: index,
		Summary:   summary,
		Why:       why,
		Advice:    strings.TrimSpace(raw.Advice),
		Signals:   signals,
		Source:    source,
	}
}

// matchTier maps free-text risk onto the canonical tier. Danger is checked
// before caution so a reply mentioning both lands on the stricter tier.
func matchTier(risk string) domain.RiskTier {
	lowered := strings.ToLower(risk)
	switch {
	case strings.Contains(lowered, "danger"):
		return domain.RiskDanger
	case strings.Contains(lowered, "caution"):
		return domain.RiskCaution
	default:
		return domain.RiskSafe
	}
}

// numericIndex extracts a numeric risk_index if one was supplied. Models
// occasionally quote the number; that still counts.
func numericIndex(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var quoted float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &quoted); err == nil {
			return quoted, true
		}
	}
	return 0, false
}
