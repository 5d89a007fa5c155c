// Package domain contains the core business entities and types for drug risk
// assessment: the canonical risk record produced by the reasoning cascade, the
// patient context it consumes, and the presentation views derived from it.
package domain

import (
	"errors"
	"fmt"
)

// RiskTier is the coarse output classification of an analysis.
// Exactly one of three values, never free text.
type RiskTier string

const (
	RiskSafe    RiskTier = "Safe"
	RiskCaution RiskTier = "Caution"
	RiskDanger  RiskTier = "Danger"
)

// AdapterSource identifies which reasoning source produced an assessment.
// Kept for diagnostics; not necessarily shown to the end user.
type AdapterSource string

const (
	SourceOnDevice   AdapterSource = "on-device"
	SourceCloud      AdapterSource = "cloud"
	SourceLocalRules AdapterSource = "local-rules"
)

// ViewKind is one of the three textual renderings of the same assessment.
type ViewKind string

const (
	ViewOriginal   ViewKind = "original"
	ViewSimplified ViewKind = "simplified"
	ViewTranslated ViewKind = "translated"
)

// SkipReason is the typed outcome of a capability check executed before an
// adapter is attempted. A non-empty reason means the adapter was never
// invoked, which the cascade treats identically to a nil assessment.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipNoSession SkipReason = "no-session"
	SkipNoKey     SkipReason = "no-key"
	SkipDisabled  SkipReason = "disabled"
)

// LookupStatus describes the label lookup stage for the status stream.
type LookupStatus string

const (
	LookupIdle     LookupStatus = "idle"
	LookupFetching LookupStatus = "fetching"
	LookupOK       LookupStatus = "ok"
	LookupNone     LookupStatus = "none"
	LookupError    LookupStatus = "error"
)

// MaxSignals is the cap on the signals list of an assessment.
const MaxSignals = 6

// Fixed per-tier risk indices used when an adapter supplies a tier but omits
// an index, and by the rule-table adapter unconditionally. This is the
// canonical table; indices are conventions, not clamped sub-ranges.
const (
	IndexSafe    = 0.9
	IndexCaution = 0.55
	IndexDanger  = 0.2
)

// Validation errors for assessment integrity.
var (
	ErrInvalidRiskTier = errors.New("invalid risk tier")
	ErrInvalidSource   = errors.New("invalid adapter source")
	ErrInvalidView     = errors.New("invalid view kind")
)

// IsValid reports whether the tier is one of the three allowed values.
// Adapters normalize free-text model output before a tier is ever stored,
// so an invalid tier here indicates a programming error, not bad input.
func (r RiskTier) IsValid() bool {
	switch r {
	case RiskSafe, RiskCaution, RiskDanger:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier.
func (r RiskTier) String() string {
	return string(r)
}

// Icon returns the status icon derived from the tier.
func (r RiskTier) Icon() string {
	switch r {
	case RiskDanger:
		return "🔴"
	case RiskCaution:
		return "🟠"
	default:
		return "🟢"
	}
}

// DefaultIndex returns the per-tier default risk index substituted when a
// reasoning source supplies a tier without a numeric index.
func (r RiskTier) DefaultIndex() float64 {
	switch r {
	case RiskDanger:
		return IndexDanger
	case RiskCaution:
		return IndexCaution
	default:
		return IndexSafe
	}
}

// Guidance returns the one-line recommended action shown under the tier.
func (r RiskTier) Guidance() string {
	switch r {
	case RiskDanger:
		return "Seek a doctor's advice before taking this."
	case RiskCaution:
		return "Check with a pharmacist before use."
	default:
		return "You can generally use this medication as directed."
	}
}

// Subtitle returns the short tier description shown with the risk label.
func (r RiskTier) Subtitle() string {
	switch r {
	case RiskDanger:
		return "🔴 Avoid unless prescribed."
	case RiskCaution:
		return "🟠 May need doctor advice."
	default:
		return "🟢 Low-risk for most people."
	}
}

// LogFields returns structured logging fields for audit trails.
func (r RiskTier) LogFields() map[string]any {
	return map[string]any{
		"risk_tier":     string(r),
		"is_valid":      r.IsValid(),
		"default_index": r.DefaultIndex(),
	}
}

// IsValid reports whether the source is a known reasoning adapter.
func (s AdapterSource) IsValid() bool {
	switch s {
	case SourceOnDevice, SourceCloud, SourceLocalRules:
		return true
	default:
		return false
	}
}

// String returns the string representation of the source.
func (s AdapterSource) String() string {
	return string(s)
}

// IsValid reports whether the view kind is one of the three views.
func (v ViewKind) IsValid() bool {
	switch v {
	case ViewOriginal, ViewSimplified, ViewTranslated:
		return true
	default:
		return false
	}
}

// ParseViewKind converts user input to a ViewKind.
func ParseViewKind(raw string) (ViewKind, error) {
	v := ViewKind(raw)
	if !v.IsValid() {
		return "", fmt.Errorf("parse view %q: %w", raw, ErrInvalidView)
	}
	return v, nil
}

// ClampIndex forces a risk index into [0, 1] regardless of what a reasoning
// source supplied. NaN collapses to 0.
func ClampIndex(x float64) float64 {
	if x != x { // NaN
		return 0
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
