package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediguard-server/internal/domain"
)

type stubAdapter struct {
	source     domain.AdapterSource
	skip       domain.SkipReason
	assessment *domain.RiskAssessment
	err        error
	panics     bool
	calls      int
}

func (a *stubAdapter) Source() domain.AdapterSource { return a.source }
func (a *stubAdapter) Capability() domain.SkipReason {
	return a.skip
}
func (a *stubAdapter) Assess(context.Context, string, domain.PatientContext, *domain.LabelSnippet) (*domain.RiskAssessment, error) {
	a.calls++
	if a.panics {
		panic("adapter exploded")
	}
	return a.assessment, a.err
}

type stubLabels struct {
	snippet *domain.LabelSnippet
	err     error
	calls   int
}

func (l *stubLabels) Lookup(context.Context, string) (*domain.LabelSnippet, error) {
	l.calls++
	return l.snippet, l.err
}

type recordingPublisher struct {
	events []domain.StageEvent
}

func (p *recordingPublisher) Publish(e domain.StageEvent) {
	p.events = append(p.events, e)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func okAssessment(source domain.AdapterSource, tier domain.RiskTier) *domain.RiskAssessment {
	return &domain.RiskAssessment{
		Risk:      tier,
		RiskIcon:  tier.Icon(),
		RiskIndex: tier.DefaultIndex(),
		Summary:   "summary",
		Source:    source,
	}
}

func TestAnalyzerService_FirstSuccessWins(t *testing.T) {
	first := &stubAdapter{source: domain.SourceOnDevice, assessment: okAssessment(domain.SourceOnDevice, domain.RiskCaution)}
	second := &stubAdapter{source: domain.SourceCloud, assessment: okAssessment(domain.SourceCloud, domain.RiskSafe)}

	svc := NewAnalyzerService(nil, nil, time.Second, testLogger())
	result := svc.Analyze(context.Background(), AnalysisInput{
		Drug:     "ibuprofen",
		Adapters: []domain.RiskAdapter{first, second, NewRuleTableAdapter()},
	})

	require.NotNil(t, result.Assessment)
	assert.Equal(t, domain.SourceOnDevice, result.Assessment.Source)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "later adapters must not run after a success")
}

func TestAnalyzerService_FallsThroughOnDecline(t *testing.T) {
	declined := &stubAdapter{source: domain.SourceOnDevice}
	failed := &stubAdapter{source: domain.SourceCloud, err: errors.New("upstream 500")}

	svc := NewAnalyzerService(nil, nil, time.Second, testLogger())
	result := svc.Analyze(context.Background(), AnalysisInput{
		Drug:     "ibuprofen",
		Patient:  domain.NewPatientContext("30", "male", []string{"asthma"}),
		Adapters: []domain.RiskAdapter{declined, failed, NewRuleTableAdapter()},
	})

	require.NotNil(t, result.Assessment)
	assert.Equal(t, domain.SourceLocalRules, result.Assessment.Source)
	assert.Equal(t, domain.RiskCaution, result.Assessment.Risk)
	assert.Equal(t, 1, declined.calls)
	assert.Equal(t, 1, failed.calls)
}

func TestAnalyzerService_PanicDowngrades(t *testing.T) {
	exploding := &stubAdapter{source: domain.SourceOnDevice, panics: true}

	svc := NewAnalyzerService(nil, nil, time.Second, testLogger())
	result := svc.Analyze(context.Background(), AnalysisInput{
		Drug:     "naproxen",
		Adapters: []domain.RiskAdapter{exploding, NewRuleTableAdapter()},
	})

	require.NotNil(t, result.Assessment)
	assert.Equal(t, domain.SourceLocalRules, result.Assessment.Source)
}

func TestAnalyzerService_CapabilitySkipNeverInvokesAdapter(t *testing.T) {
	skipped := &stubAdapter{source: domain.SourceCloud, skip: domain.SkipNoKey, assessment: okAssessment(domain.SourceCloud, domain.RiskSafe)}

	svc := NewAnalyzerService(nil, nil, time.Second, testLogger())
	result := svc.Analyze(context.Background(), AnalysisInput{
		Drug:     "ibuprofen",
		Adapters: []domain.RiskAdapter{skipped, NewRuleTableAdapter()},
	})

	assert.Equal(t, 0, skipped.calls)
	assert.Equal(t, domain.SourceLocalRules, result.Assessment.Source)
}

func TestAnalyzerService_LabelLookup(t *testing.T) {
	t.Run("failure never blocks the cascade", func(t *testing.T) {
		labels := &stubLabels{err: errors.New("openFDA down")}
		svc := NewAnalyzerService(labels, nil, time.Second, testLogger())

		result := svc.Analyze(context.Background(), AnalysisInput{
			Drug:     "ibuprofen",
			Hybrid:   true,
			Adapters: []domain.RiskAdapter{NewRuleTableAdapter()},
		})

		require.NotNil(t, result.Assessment)
		assert.Nil(t, result.Snippet)
		assert.Equal(t, 1, labels.calls)
	})

	t.Run("skipped entirely when hybrid off", func(t *testing.T) {
		labels := &stubLabels{snippet: &domain.LabelSnippet{CombinedText: "warnings: text"}}
		svc := NewAnalyzerService(labels, nil, time.Second, testLogger())

		result := svc.Analyze(context.Background(), AnalysisInput{
			Drug:     "ibuprofen",
			Hybrid:   false,
			Adapters: []domain.RiskAdapter{NewRuleTableAdapter()},
		})

		assert.Equal(t, 0, labels.calls)
		assert.Nil(t, result.Snippet)
	})

	t.Run("snippet carried into the result", func(t *testing.T) {
		labels := &stubLabels{snippet: &domain.LabelSnippet{CombinedText: "warnings: text"}}
		svc := NewAnalyzerService(labels, nil, time.Second, testLogger())

		result := svc.Analyze(context.Background(), AnalysisInput{
			Drug:     "ibuprofen",
			Hybrid:   true,
			Adapters: []domain.RiskAdapter{NewRuleTableAdapter()},
		})

		require.NotNil(t, result.Snippet)
		assert.Contains(t, result.Snippet.CombinedText, "warnings")
	})
}

func TestAnalyzerService_PublishesStageEvents(t *testing.T) {
	publisher := &recordingPublisher{}
	labels := &stubLabels{snippet: &domain.LabelSnippet{CombinedText: "warnings: text"}}
	svc := NewAnalyzerService(labels, publisher, time.Second, testLogger())

	svc.Analyze(context.Background(), AnalysisInput{
		Drug:     "ibuprofen",
		Hybrid:   true,
		Adapters: []domain.RiskAdapter{NewRuleTableAdapter()},
	})

	kinds := map[string]bool{}
	for _, e := range publisher.events {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds["lookup"])
	assert.True(t, kinds["adapter"])
}

func TestAnalyzerService_CloudRunsWithHybridOff(t *testing.T) {
	// Hybrid mode gates the label lookup only. With a key configured and
	// no local session, cloud must still be attempted.
	labels := &stubLabels{snippet: &domain.LabelSnippet{CombinedText: "warnings: text"}}
	texter := &stubTexter{reply: `{"risk":"caution","summary":"Careful."}`}

	svc := NewAnalyzerService(labels, nil, time.Second, testLogger())
	result := svc.Analyze(context.Background(), AnalysisInput{
		Drug:    "ibuprofen",
		Patient: domain.NewPatientContext("30", "female", nil),
		Hybrid:  false,
		Adapters: []domain.RiskAdapter{
			NewOnDeviceAdapter(nil, testLogger()),
			NewCloudAdapter(texter, "key", testLogger()),
			NewRuleTableAdapter(),
		},
	})

	assert.Equal(t, 0, labels.calls, "lookup stays gated behind hybrid")
	require.NotNil(t, result.Assessment)
	assert.Equal(t, domain.SourceCloud, result.Assessment.Source)
	assert.Equal(t, domain.RiskCaution, result.Assessment.Risk)
}

func TestAnalyzerService_AlwaysTerminatesWithOneAssessment(t *testing.T) {
	// Even a chain with no rule-table tail gets the guard fallback.
	svc := NewAnalyzerService(nil, nil, time.Second, testLogger())
	result := svc.Analyze(context.Background(), AnalysisInput{
		Drug:     "ibuprofen",
		Adapters: []domain.RiskAdapter{&stubAdapter{source: domain.SourceOnDevice}},
	})

	require.NotNil(t, result.Assessment)
	assert.True(t, result.Assessment.Risk.IsValid())
}
