package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mediguard-server/internal/domain"
)

// Session errors surfaced to the HTTP layer.
var (
	ErrNoActiveSession = errors.New("no analysis session active")
	ErrAnalysisStale   = errors.New("result discarded, a newer analysis replaced this session")
	ErrModelRequired   = errors.New("language model unavailable")
)

// simplifyMaxLines caps the simplified rendering.
const simplifyMaxLines = 3

// SessionManager owns the single mutable analysis session. A new analysis
// replaces the previous session wholesale; simplify and translate results
// that land after the replacement are discarded via the generation counter.
type SessionManager struct {
	mu         sync.Mutex
	generation uint64
	session    *analysisSession

	rewriter     domain.ModelSession
	baseLanguage string
	logger       *logrus.Logger
}

// analysisSession is the per-analysis state slot.
type analysisSession struct {
	drug         string
	patient      domain.PatientContext
	hybridMode   bool
	assessment   *domain.RiskAssessment
	snippet      *domain.LabelSnippet
	presentation domain.PresentationState
	report       *domain.AnalysisReport
}

// NewSessionManager creates the manager. rewriter is the on-device session
// used for simplify/translate; it may be nil, in which case both transitions
// surface the setup-help path.
func NewSessionManager(rewriter domain.ModelSession, baseLanguage string, logger *logrus.Logger) *SessionManager {
	if baseLanguage == "" {
		baseLanguage = "en"
	}
	return &SessionManager{
		rewriter:     rewriter,
		baseLanguage: baseLanguage,
		logger:       logger,
	}
}

// Begin installs a fresh session for a completed analysis, resetting all
// presentation state and invalidating any in-flight simplify or translate.
func (m *SessionManager) Begin(drug string, patient domain.PatientContext, hybridMode bool, result *AnalysisResult) *domain.AnalysisReport {
	report := BuildReport(drug, patient, hybridMode, result)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.session = &analysisSession{
		drug:       drug,
		patient:    patient,
		hybridMode: hybridMode,
		assessment: result.Assessment,
		snippet:    result.Snippet,
		presentation: domain.PresentationState{
			Original:   result.Assessment.PlainText(),
			ActiveView: domain.ViewOriginal,
		},
		report: report,
	}
	return report
}

// visibleText assembles the full text the user currently sees, including the
// risk headline and the cleaned label snippet. Simplify and translate rewrite
// this, not just the assessment body.
func (as *analysisSession) visibleText() string {
	parts := []string{
		as.assessment.Risk.Icon() + " " + as.assessment.Risk.String(),
		as.presentation.Original,
	}
	if as.snippet != nil {
		if cleaned := CleanLabelText(as.snippet.CombinedText); cleaned != "" {
			parts = append(parts, "Label: "+cleaned)
		}
	}
	return strings.Join(parts, "\n")
}

// Simplify rewrites the visible text into at most three plain-language
// sentences and switches the active view to it. On any failure the session
// state is unchanged and the caller gets the setup-help path.
func (m *SessionManager) Simplify(ctx context.Context) (string, error) {
	gen, visible, err := m.snapshot()
	if err != nil {
		return "", err
	}
	if m.rewriter == nil || !m.rewriter.Ready() {
		return "", ErrModelRequired
	}

	reply, err := m.rewriter.Prompt(ctx, buildSimplifyPrompt(visible))
	if err != nil {
		m.logger.WithError(err).Warn("Simplify failed, presentation unchanged")
		return "", ErrModelRequired
	}
	simplified := condenseLines(reply, simplifyMaxLines)
	if simplified == "" {
		return "", ErrModelRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen || m.session == nil {
		return "", ErrAnalysisStale
	}
	m.session.presentation.Simplified = simplified
	m.session.presentation.ActiveView = domain.ViewSimplified
	return simplified, nil
}

// Translate renders the visible text in the target language and switches
// the active view. Translating into the base language is a pure no-op that
// returns the active text without touching the session.
func (m *SessionManager) Translate(ctx context.Context, language string) (string, error) {
	gen, visible, err := m.snapshot()
	if err != nil {
		return "", err
	}

	language = strings.TrimSpace(strings.ToLower(language))
	if language == "" || language == m.baseLanguage {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.generation != gen || m.session == nil {
			return "", ErrAnalysisStale
		}
		// Requesting the base language leaves the session untouched and
		// hands back whatever the user is already looking at.
		return m.session.presentation.ActiveText(), nil
	}

	if m.rewriter == nil || !m.rewriter.Ready() {
		return "", ErrModelRequired
	}
	reply, err := m.rewriter.Prompt(ctx, buildTranslatePrompt(language, visible))
	if err != nil {
		m.logger.WithError(err).Warn("Translate failed, presentation unchanged")
		return "", ErrModelRequired
	}
	translated := strings.TrimSpace(reply)
	if translated == "" {
		return "", ErrModelRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen || m.session == nil {
		return "", ErrAnalysisStale
	}
	m.session.presentation.Translated = translated
	m.session.presentation.ActiveView = domain.ViewTranslated
	return translated, nil
}

// SwitchView changes the active view; the returned text follows the
// fallback chain when the requested rendering was never produced.
func (m *SessionManager) SwitchView(view domain.ViewKind) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return "", ErrNoActiveSession
	}
	m.session.presentation.ActiveView = view
	return m.session.presentation.ActiveText(), nil
}

// ActiveText returns the text of the active view, for the read-aloud sink.
func (m *SessionManager) ActiveText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return "", ErrNoActiveSession
	}
	return m.session.presentation.ActiveText(), nil
}

// Report returns the write-once report of the current session.
func (m *SessionManager) Report() (*domain.AnalysisReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNoActiveSession
	}
	return m.session.report, nil
}

// snapshot captures the generation and the visible text under the lock.
func (m *SessionManager) snapshot() (uint64, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return 0, "", ErrNoActiveSession
	}
	return m.generation, m.session.visibleText(), nil
}

// condenseLines keeps the first max non-empty lines of text, joined with a
// single space, with runs of whitespace collapsed.
func condenseLines(text string, max int) string {
	kept := make([]string, 0, max)
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
		if len(kept) == max {
			break
		}
	}
	return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}
