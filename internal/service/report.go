package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediguard-server/internal/domain"
)

var (
	fenceRe       = regexp.MustCompile("```json|```")
	spaceRunRe    = regexp.MustCompile(`\s+`)
	sentenceGapRe = regexp.MustCompile(`([a-z])([A-Z])`)
	punctGapRe    = regexp.MustCompile(`([.,])([A-Za-z])`)
)

// CleanLabelText repairs the formatting artifacts of label text for display:
// markdown fences removed, whitespace runs collapsed, missing sentence breaks
// inserted at lowercase-to-uppercase boundaries, missing spaces added after
// punctuation. Adapters always receive the untouched snippet; cleanup is a
// presentation concern only.
func CleanLabelText(text string) string {
	if text == "" {
		return ""
	}
	text = fenceRe.ReplaceAllString(text, "")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = sentenceGapRe.ReplaceAllString(text, "$1. $2")
	text = punctGapRe.ReplaceAllString(text, "$1 $2")
	return strings.TrimSpace(text)
}

// BuildReport snapshots a completed analysis into the write-once report.
func BuildReport(drug string, patient domain.PatientContext, hybridMode bool, result *AnalysisResult) *domain.AnalysisReport {
	a := result.Assessment

	summary := a.Summary
	if a.Why != "" {
		summary += " — " + a.Why
	}
	if a.Advice != "" {
		summary += " | " + a.Advice
	}

	snippet := ""
	if result.Snippet != nil {
		snippet = CleanLabelText(result.Snippet.CombinedText)
	}
	if snippet == "" {
		if hybridMode {
			snippet = "No FDA data."
		} else {
			snippet = "Offline."
		}
	}

	return &domain.AnalysisReport{
		ID:           uuid.New().String(),
		GeneratedAt:  time.Now(),
		Drug:         drug,
		Patient:      patient,
		HybridMode:   hybridMode,
		Risk:         a.Risk,
		Summary:      strings.TrimSpace(summary),
		LabelSnippet: snippet,
		Source:       a.Source,
	}
}

// RenderReportText lays the report out as the downloadable plain-text file.
func RenderReportText(r *domain.AnalysisReport) string {
	hybrid := "OFF"
	if r.HybridMode {
		hybrid = "ON"
	}
	return fmt.Sprintf(`🧠 MediGuard AI Safety Report
Generated: %s

👤 Profile
• Age: %s
• Gender: %s
• Conditions: %s
• Hybrid Mode: %s

💊 Drug: %s
⚠️ Risk: %s
🩺 Summary: %s

📄 FDA Snippet:
%s
`,
		r.GeneratedAt.Format("1/2/2006, 3:04:05 PM"),
		orNA(r.Patient.Age),
		orNA(r.Patient.Gender),
		orNone(r.Patient.ConditionsText()),
		hybrid,
		r.Drug,
		r.Risk.String(),
		r.Summary,
		r.LabelSnippet,
	)
}

// ReportFileName names the export file after the analyzed drug.
func ReportFileName(r *domain.AnalysisReport) string {
	drug := strings.ReplaceAll(strings.TrimSpace(r.Drug), " ", "_")
	if drug == "" {
		drug = "unknown"
	}
	return fmt.Sprintf("MediGuard_%s_Report.txt", drug)
}
