package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PatientContext carries the user-supplied patient profile for one analysis.
// Immutable once built.
type PatientContext struct {
	// Age is kept as entered; AgeYears is the parsed value when the entry
	// is a plain non-negative integer.
	Age      string `json:"age,omitempty"`
	AgeYears *int   `json:"age_years,omitempty"`
	Gender   string `json:"gender,omitempty"`

	// Conditions holds the normalized condition strings in input order.
	Conditions []string `json:"conditions,omitempty"`
}

// NewPatientContext builds an immutable patient context from raw inputs.
// Age is accepted as free text; a parseable non-negative integer is also
// stored numerically.
func NewPatientContext(age, gender string, conditions []string) PatientContext {
	pc := PatientContext{
		Age:        strings.TrimSpace(age),
		Gender:     strings.TrimSpace(gender),
		Conditions: append([]string(nil), conditions...),
	}
	if n, err := strconv.Atoi(pc.Age); err == nil && n >= 0 {
		years := n
		pc.AgeYears = &years
	}
	return pc
}

// ConditionsText returns the free-text conditions string the rule-table
// adapter matches keywords against.
func (pc PatientContext) ConditionsText() string {
	return strings.Join(pc.Conditions, ", ")
}

// LabelSnippet is the extracted, concatenated text from select label fields
// of a drug-label record. A snippet is never partially trusted: either the
// combined text was fully assembled or the whole snippet is nil.
type LabelSnippet struct {
	// RawSections maps section name to the first value of that section.
	RawSections map[string]string `json:"raw_sections"`

	// CombinedText joins the non-empty sections with blank lines, each
	// prefixed by its human-readable section label.
	CombinedText string `json:"combined_text"`
}

// Excerpt returns at most n characters of the combined text for prompt
// embedding.
func (ls *LabelSnippet) Excerpt(n int) string {
	if ls == nil || ls.CombinedText == "" {
		return ""
	}
	runes := []rune(ls.CombinedText)
	if len(runes) <= n {
		return ls.CombinedText
	}
	return string(runes[:n])
}

// RiskAssessment is the canonical output of the reasoning cascade. Exactly
// one exists per completed analysis and it is immutable after creation;
// presentation views derive new text but never mutate the tier or index.
type RiskAssessment struct {
	Risk      RiskTier      `json:"risk"`
	RiskIcon  string        `json:"risk_icon"`
	RiskIndex float64       `json:"risk_index"`
	Summary   string        `json:"summary"`
	Why       string        `json:"why,omitempty"`
	Advice    string        `json:"advice,omitempty"`
	Signals   []string      `json:"signals,omitempty"`
	Source    AdapterSource `json:"source"`
}

// Validate ensures the assessment meets the canonical-record invariants
// before it leaves the cascade.
func (ra *RiskAssessment) Validate() error {
	if !ra.Risk.IsValid() {
		return fmt.Errorf("risk assessment validation: %w", ErrInvalidRiskTier)
	}
	if ra.RiskIndex < 0 || ra.RiskIndex > 1 {
		return fmt.Errorf("risk assessment validation: risk index %v out of [0,1]", ra.RiskIndex)
	}
	if strings.TrimSpace(ra.Summary) == "" {
		return fmt.Errorf("risk assessment validation: summary is required")
	}
	if len(ra.Signals) > MaxSignals {
		return fmt.Errorf("risk assessment validation: %d signals exceeds cap of %d", len(ra.Signals), MaxSignals)
	}
	if !ra.Source.IsValid() {
		return fmt.Errorf("risk assessment validation: %w", ErrInvalidSource)
	}
	return nil
}

// PlainText renders the assessment as the plain original view text.
func (ra *RiskAssessment) PlainText() string {
	return strings.TrimSpace(fmt.Sprintf("Summary: %s\nWhy: %s\nAdvice: %s", ra.Summary, ra.Why, ra.Advice))
}

// LogFields returns structured logging fields for the completed assessment.
func (ra *RiskAssessment) LogFields() map[string]any {
	return map[string]any{
		"risk":       ra.Risk.String(),
		"risk_index": ra.RiskIndex,
		"source":     ra.Source.String(),
		"signals":    len(ra.Signals),
	}
}

// PresentationState holds the three textual views of one assessment and the
// active view selector. Created fresh at the start of each analysis;
// simplified/translated fill in lazily on user request.
type PresentationState struct {
	Original   string   `json:"original"`
	Simplified string   `json:"simplified,omitempty"`
	Translated string   `json:"translated,omitempty"`
	ActiveView ViewKind `json:"active_view"`
}

// TextFor returns the displayed text for a view, falling back to the nearest
// previously populated view when the requested one is still empty:
// translated → simplified → original, simplified → original.
func (ps *PresentationState) TextFor(view ViewKind) string {
	switch view {
	case ViewTranslated:
		if ps.Translated != "" {
			return ps.Translated
		}
		fallthrough
	case ViewSimplified:
		if ps.Simplified != "" {
			return ps.Simplified
		}
		fallthrough
	default:
		return ps.Original
	}
}

// ActiveText returns the text of the currently selected view.
func (ps *PresentationState) ActiveText() string {
	return ps.TextFor(ps.ActiveView)
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AnalysisReport is a flattened, timestamped snapshot of the analysis taken
// the moment it completed. Write-once, read-only afterward.
type AnalysisReport struct {
	ID           string         `json:"id"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Drug         string         `json:"drug"`
	Patient      PatientContext `json:"patient"`
	HybridMode   bool           `json:"hybrid_mode"`
	Risk         RiskTier       `json:"risk"`
	Summary      string         `json:"summary"`
	LabelSnippet string         `json:"label_snippet,omitempty"`
	Source       AdapterSource  `json:"source"`
}
