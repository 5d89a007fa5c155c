package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mediguard-server/internal/domain"
	"github.com/mediguard-server/internal/service"
)

// analyzeRequest is the popup's analysis form.
type analyzeRequest struct {
	Drug       string `json:"drug"`
	Age        string `json:"age"`
	Gender     string `json:"gender"`
	Conditions string `json:"conditions"`
}

// detectRequest carries a base64 product photo.
type detectRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

type translateRequest struct {
	Language string `json:"language"`
}

type viewRequest struct {
	View string `json:"view"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Drug) == "" {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "drug name is required", "")
		return
	}

	select {
	case s.analyzing <- struct{}{}:
		defer func() { <-s.analyzing }()
	default:
		s.fail(c, http.StatusConflict, domain.ErrAnalysisInFlight, "an analysis is already running", "")
		return
	}

	prefs := s.loadPreferences(c)
	s.hub.Publish(domain.StageEvent{Kind: "hybrid", Detail: onOff(prefs.HybridEnabled)})
	s.hub.Publish(domain.StageEvent{Kind: "model", Detail: readyState(s.localModel.Ready())})

	drug, conditions := s.normalizer.Normalize(c.Request.Context(), req.Drug, req.Conditions)
	patient := domain.NewPatientContext(req.Age, req.Gender, conditions)

	result := s.analyzer.Analyze(c.Request.Context(), service.AnalysisInput{
		Drug:    drug,
		Patient: patient,
		Hybrid:  prefs.HybridEnabled,
		Adapters: []domain.RiskAdapter{
			service.NewOnDeviceAdapter(s.localModel, s.logger),
			service.NewCloudAdapter(s.cloud, prefs.CloudAPIKey, s.logger),
			service.NewRuleTableAdapter(),
		},
	})

	report := s.sessions.Begin(drug, patient, prefs.HybridEnabled, result)
	a := result.Assessment

	snippetText := ""
	if result.Snippet != nil {
		snippetText = service.CleanLabelText(result.Snippet.CombinedText)
	}

	c.JSON(http.StatusOK, gin.H{
		"report_id":     report.ID,
		"drug":          drug,
		"risk":          a.Risk,
		"risk_icon":     a.Risk.Icon(),
		"risk_index":    a.RiskIndex,
		"subtitle":      a.Risk.Subtitle(),
		"guidance":      a.Risk.Guidance(),
		"summary":       a.Summary,
		"why":           a.Why,
		"advice":        a.Advice,
		"signals":       a.Signals,
		"source":        a.Source,
		"label_snippet": snippetText,
		"text":          a.PlainText(),
	})
}

func (s *Server) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "a product photo is required", "")
		return
	}

	prefs := s.loadPreferences(c)
	if strings.TrimSpace(prefs.CloudAPIKey) == "" {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "photo detection needs a cloud API key in preferences", "")
		return
	}

	raw := req.Image
	if i := strings.Index(raw, ";base64,"); i >= 0 {
		raw = raw[i+len(";base64,"):]
	}
	imageData, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "image must be base64 encoded", err.Error())
		return
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	detection, err := s.vision.DetectDrugName(c.Request.Context(), prefs.CloudAPIKey, mimeType, imageData)
	if err != nil {
		s.logger.WithError(err).Warn("Photo detection failed")
		s.fail(c, http.StatusBadGateway, domain.ErrExternalAPI, "photo detection failed", err.Error())
		return
	}

	best := detection.BestName()
	if best == "" {
		s.fail(c, http.StatusUnprocessableEntity, domain.ErrAnalysisFailed, "could not identify a drug name in the photo", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"best":       best,
		"brand":      detection.Brand,
		"generic":    detection.Generic,
		"candidates": detection.Candidates,
	})
}

func (s *Server) handleSimplify(c *gin.Context) {
	text, err := s.sessions.Simplify(c.Request.Context())
	if err != nil {
		s.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": domain.ViewSimplified, "text": text})
}

func (s *Server) handleTranslate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid request body", err.Error())
		return
	}

	text, err := s.sessions.Translate(c.Request.Context(), req.Language)
	if err != nil {
		s.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": domain.ViewTranslated, "text": text})
}

func (s *Server) handleSwitchView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid request body", err.Error())
		return
	}
	view, err := domain.ParseViewKind(req.View)
	if err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "view must be original, simplified, or translated", err.Error())
		return
	}

	text, err := s.sessions.SwitchView(view)
	if err != nil {
		s.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": view, "text": text})
}

func (s *Server) handleSessionText(c *gin.Context) {
	text, err := s.sessions.ActiveText()
	if err != nil {
		s.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (s *Server) handleReport(c *gin.Context) {
	report, err := s.sessions.Report()
	if err != nil {
		s.sessionError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ReportFileName(report)))
	c.String(http.StatusOK, service.RenderReportText(report))
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	prefs, err := s.prefs.Get(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, domain.ErrPreferenceStorage, "failed to load preferences", err.Error())
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(c *gin.Context) {
	var prefs domain.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		s.fail(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid request body", err.Error())
		return
	}
	if err := s.prefs.Set(c.Request.Context(), &prefs); err != nil {
		s.fail(c, http.StatusInternalServerError, domain.ErrPreferenceStorage, "failed to save preferences", err.Error())
		return
	}
	s.hub.Publish(domain.StageEvent{Kind: "hybrid", Detail: onOff(prefs.HybridEnabled)})
	c.JSON(http.StatusOK, &prefs)
}

// loadPreferences reads the stored record, falling back to defaults so a
// storage hiccup never blocks an analysis.
func (s *Server) loadPreferences(c *gin.Context) *domain.Preferences {
	prefs, err := s.prefs.Get(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Warn("Preference read failed, using defaults")
		return &domain.Preferences{HybridEnabled: true, PreferredLanguage: "en"}
	}
	return prefs
}

// sessionError maps session-manager errors onto the response taxonomy.
func (s *Server) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveSession):
		s.fail(c, http.StatusNotFound, domain.ErrNoActiveSession, "run an analysis first", "")
	case errors.Is(err, service.ErrAnalysisStale):
		s.fail(c, http.StatusConflict, domain.ErrAnalysisInFlight, "a newer analysis replaced this session", "")
	case errors.Is(err, service.ErrModelRequired):
		s.fail(c, http.StatusServiceUnavailable, domain.ErrModelUnavailable, domain.SetupHelp("Local language model"), "")
	default:
		s.fail(c, http.StatusInternalServerError, domain.ErrInternalServer, "unexpected error", err.Error())
	}
}

func (s *Server) fail(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, domain.NewAPIError(code, message, details, c.GetString("correlation_id")))
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func readyState(ready bool) string {
	if ready {
		return "ready"
	}
	return "unavailable"
}
