package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mediguard-server/internal/domain"
	"github.com/mediguard-server/pkg/modeltext"
)

// Cloud reasoning generation settings.
const (
	cloudTemperature = 0.2
	cloudMaxTokens   = 350
)

// cloudTexter is the slice of the resilient client the cloud adapter needs.
type cloudTexter interface {
	GenerateText(ctx context.Context, apiKey, prompt string, temperature float64, maxTokens int) (string, error)
}

// CloudAdapter produces a risk judgement from the cloud generative endpoint.
// One adapter is built per analysis because the API key comes from the user
// preference store, not server configuration.
type CloudAdapter struct {
	client cloudTexter
	apiKey string
	logger *logrus.Logger
}

// NewCloudAdapter creates a cloud reasoning adapter bound to one API key.
// The key is the adapter's only precondition; hybrid mode gates the label
// lookup, not cloud reasoning.
func NewCloudAdapter(client cloudTexter, apiKey string, logger *logrus.Logger) *CloudAdapter {
	return &CloudAdapter{
		client: client,
		apiKey: strings.TrimSpace(apiKey),
		logger: logger,
	}
}

// Source identifies the adapter in logs and in the canonical result.
func (a *CloudAdapter) Source() domain.AdapterSource {
	return domain.SourceCloud
}

// Capability requires a configured API key.
func (a *CloudAdapter) Capability() domain.SkipReason {
	if a.apiKey == "" {
		return domain.SkipNoKey
	}
	return domain.SkipNone
}

// Assess sends the shared reasoning schema to the cloud endpoint. Same
// fall-through contract as the on-device adapter: unusable replies return
// nil, not an error.
func (a *CloudAdapter) Assess(ctx context.Context, drug string, patient domain.PatientContext, snippet *domain.LabelSnippet) (*domain.RiskAssessment, error) {
	reply, err := a.client.GenerateText(ctx, a.apiKey, buildCloudAssessPrompt(drug, patient, snippet), cloudTemperature, cloudMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("cloud reasoning failed: %w", err)
	}

	raw := &rawReasoning{}
	if err := modeltext.DecodeFirst(reply, raw); err != nil || !raw.hasRisk() {
		a.logger.WithField("source", a.Source().String()).Debug("Reply had no usable risk record, falling through")
		return nil, nil
	}

	return normalizeReasoning(raw, domain.SourceCloud), nil
}
