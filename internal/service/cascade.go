package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mediguard-server/internal/domain"
)

// AnalyzerService runs one drug-safety analysis: label lookup first, then a
// strict first-success walk over the reasoning adapters. Exactly one
// assessment always comes out; the rule-table tail guarantees it.
type AnalyzerService struct {
	labels         domain.LabelSource
	publisher      domain.StagePublisher
	adapterTimeout time.Duration
	logger         *logrus.Logger
}

// AnalysisInput is one fully normalized analysis request plus the adapter
// chain built for it. The cloud adapter is constructed per request because
// the API key lives in preferences, not in the service.
type AnalysisInput struct {
	Drug    string
	Patient domain.PatientContext

	// Hybrid gates the external label lookup; the pipeline is fully
	// on-device when off.
	Hybrid   bool
	Adapters []domain.RiskAdapter
}

// AnalysisResult bundles the single winning assessment with the label
// evidence gathered for it.
type AnalysisResult struct {
	Assessment *domain.RiskAssessment
	Snippet    *domain.LabelSnippet
}

// NewAnalyzerService creates the cascade controller.
func NewAnalyzerService(labels domain.LabelSource, publisher domain.StagePublisher, adapterTimeout time.Duration, logger *logrus.Logger) *AnalyzerService {
	if adapterTimeout <= 0 {
		adapterTimeout = 60 * time.Second
	}
	return &AnalyzerService{
		labels:         labels,
		publisher:      publisher,
		adapterTimeout: adapterTimeout,
		logger:         logger,
	}
}

// Analyze runs the full pipeline. It never returns an error to the caller:
// every failure mode along the way downgrades to the next adapter, and the
// rule table always answers.
func (s *AnalyzerService) Analyze(ctx context.Context, input AnalysisInput) *AnalysisResult {
	start := time.Now()
	var snippet *domain.LabelSnippet
	if input.Hybrid {
		snippet = s.lookupLabel(ctx, input.Drug)
	} else {
		s.publish("lookup", string(domain.LookupIdle))
	}

	var assessment *domain.RiskAssessment
	for _, adapter := range input.Adapters {
		if reason := adapter.Capability(); reason != domain.SkipNone {
			s.logger.WithFields(logrus.Fields{
				"adapter": adapter.Source().String(),
				"skip":    string(reason),
			}).Debug("Adapter skipped by capability check")
			s.publish("adapter", adapter.Source().String()+": skipped ("+string(reason)+")")
			continue
		}
		s.publish("adapter", adapter.Source().String()+": trying")
		assessment = s.attempt(ctx, adapter, input.Drug, input.Patient, snippet)
		if assessment != nil {
			break
		}
	}

	if assessment == nil {
		// Unreachable when the chain is built correctly; the rule table
		// always judges. Guard anyway so a handler never sees nil.
		s.logger.WithField("drug", input.Drug).Error("Adapter chain produced no assessment, falling back to rule table")
		assessment, _ = NewRuleTableAdapter().Assess(ctx, input.Drug, input.Patient, snippet)
	}

	s.logger.WithFields(logrus.Fields{
		"drug":        input.Drug,
		"source":      assessment.Source.String(),
		"risk":        assessment.Risk.String(),
		"risk_index":  assessment.RiskIndex,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Analysis complete")
	s.publish("adapter", assessment.Source.String()+": answered")

	return &AnalysisResult{Assessment: assessment, Snippet: snippet}
}

// lookupLabel fetches the label evidence. Lookup failure is reported on the
// status stream and then forgotten; the cascade proceeds without evidence.
func (s *AnalyzerService) lookupLabel(ctx context.Context, drug string) *domain.LabelSnippet {
	if s.labels == nil {
		return nil
	}
	s.publish("lookup", string(domain.LookupFetching))
	snippet, err := s.labels.Lookup(ctx, drug)
	switch {
	case err != nil:
		s.logger.WithError(err).WithField("drug", drug).Warn("Label lookup failed, continuing without evidence")
		s.publish("lookup", string(domain.LookupError))
		return nil
	case snippet == nil:
		s.publish("lookup", string(domain.LookupNone))
		return nil
	default:
		s.publish("lookup", string(domain.LookupOK))
		return snippet
	}
}

// attempt runs one adapter under the per-adapter timeout. A panic or error
// inside an adapter downgrades to nil so the cascade moves on.
func (s *AnalyzerService) attempt(ctx context.Context, adapter domain.RiskAdapter, drug string, patient domain.PatientContext, snippet *domain.LabelSnippet) (result *domain.RiskAssessment) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"adapter": adapter.Source().String(),
				"panic":   r,
			}).Error("Adapter panicked, downgrading to next source")
			result = nil
		}
	}()

	assessment, err := adapter.Assess(attemptCtx, drug, patient, snippet)
	if err != nil {
		s.logger.WithError(err).WithField("adapter", adapter.Source().String()).Warn("Adapter failed, downgrading to next source")
		return nil
	}
	if assessment == nil {
		s.logger.WithField("adapter", adapter.Source().String()).Debug("Adapter declined to judge")
		return nil
	}
	if err := assessment.Validate(); err != nil {
		s.logger.WithError(err).WithField("adapter", adapter.Source().String()).Warn("Adapter produced invalid assessment, downgrading")
		return nil
	}
	return assessment
}

func (s *AnalyzerService) publish(kind, detail string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(domain.StageEvent{Kind: kind, Detail: detail})
}
