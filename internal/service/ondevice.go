package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mediguard-server/internal/domain"
	"github.com/mediguard-server/pkg/modeltext"
)

// OnDeviceAdapter produces a risk judgement from the local model session.
// It is the highest-priority reasoning source: nothing the patient typed
// leaves the machine when it succeeds.
type OnDeviceAdapter struct {
	session domain.ModelSession
	logger  *logrus.Logger
}

// NewOnDeviceAdapter creates the on-device reasoning adapter.
func NewOnDeviceAdapter(session domain.ModelSession, logger *logrus.Logger) *OnDeviceAdapter {
	return &OnDeviceAdapter{
		session: session,
		logger:  logger,
	}
}

// Source identifies the adapter in logs and in the canonical result.
func (a *OnDeviceAdapter) Source() domain.AdapterSource {
	return domain.SourceOnDevice
}

// Capability requires a previously-initialized, still-reachable session.
func (a *OnDeviceAdapter) Capability() domain.SkipReason {
	if a.session == nil || !a.session.Ready() {
		return domain.SkipNoSession
	}
	return domain.SkipNone
}

// Assess prompts the session for the strict-JSON reasoning record. A reply
// with no parseable JSON or a missing risk field returns nil so the cascade
// falls through, not an error.
func (a *OnDeviceAdapter) Assess(ctx context.Context, drug string, patient domain.PatientContext, snippet *domain.LabelSnippet) (*domain.RiskAssessment, error) {
	reply, err := a.session.Prompt(ctx, buildAssessPrompt(drug, patient, snippet))
	if err != nil {
		return nil, fmt.Errorf("on-device reasoning failed: %w", err)
	}

	raw := &rawReasoning{}
	if err := modeltext.DecodeFirst(reply, raw); err != nil || !raw.hasRisk() {
		a.logger.WithField("source", a.Source().String()).Debug("Reply had no usable risk record, falling through")
		return nil, nil
	}

	return normalizeReasoning(raw, domain.SourceOnDevice), nil
}
