package domain

import (
	"context"
)

// RiskAdapter is a pluggable reasoning source. Assess returns nil when the
// source could not produce a judgement; errors are reserved for genuinely
// exceptional conditions and are absorbed by the cascade controller, never
// propagated to the user.
type RiskAdapter interface {
	// Source identifies the adapter in logs and in the canonical result.
	Source() AdapterSource

	// Capability reports whether the adapter's preconditions hold right
	// now; a non-empty SkipReason means the adapter must not be attempted.
	Capability() SkipReason

	Assess(ctx context.Context, drug string, patient PatientContext, snippet *LabelSnippet) (*RiskAssessment, error)
}

// LabelSource looks up the external drug-label record for a drug name.
// A nil snippet with a nil error means "no label evidence", never a fatal
// condition.
type LabelSource interface {
	Lookup(ctx context.Context, drug string) (*LabelSnippet, error)
}

// ModelSession is a started text-generation session. Prompt returns the raw
// reply text, which for structured calls is expected to contain a JSON
// object.
type ModelSession interface {
	Ready() bool
	Prompt(ctx context.Context, text string) (string, error)
}

// GrammarCorrector is the optional best-effort input-correction capability.
type GrammarCorrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

// VisionModel extracts drug names from product photos.
type VisionModel interface {
	DetectDrugName(ctx context.Context, apiKey, mimeType string, imageData []byte) (*DrugDetection, error)
}

// DrugDetection is the structured reply of a photo detection call.
type DrugDetection struct {
	Brand      string   `json:"brand"`
	Generic    string   `json:"generic"`
	Candidates []string `json:"candidates"`
}

// BestName returns the preferred detected name: generic, then brand, then
// the first candidate, lower-cased. Empty when nothing was detected.
func (d *DrugDetection) BestName() string {
	for _, s := range []string{d.Generic, d.Brand} {
		if name := lowerTrim(s); name != "" {
			return name
		}
	}
	if len(d.Candidates) > 0 {
		return lowerTrim(d.Candidates[0])
	}
	return ""
}

// Preferences is the user-controlled settings record the core reads as
// inputs to an analysis. Persistence is owned by the store, not the core.
type Preferences struct {
	HybridEnabled     bool   `json:"hybrid_enabled"`
	PreferredLanguage string `json:"preferred_language"`
	CloudAPIKey       string `json:"cloud_api_key"`
}

// PreferenceStore is the async key/value preference surface.
type PreferenceStore interface {
	Get(ctx context.Context) (*Preferences, error)
	Set(ctx context.Context, prefs *Preferences) error
	Close() error
}

// StagePublisher receives analysis stage events for the status stream.
// Implementations must tolerate slow or absent consumers.
type StagePublisher interface {
	Publish(event StageEvent)
}

// StageEvent is one status-badge update: the local model state, hybrid mode,
// or the label lookup stage.
type StageEvent struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
