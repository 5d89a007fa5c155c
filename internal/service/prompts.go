package service

import (
	"fmt"
	"strings"

	"github.com/mediguard-server/internal/domain"
)

// labelExcerptLimit caps how much label text is embedded in a reasoning
// prompt. Labels run to thousands of characters; the first sections carry
// the warnings.
const labelExcerptLimit = 600

// reasoningSchema is the strict JSON shape every reasoning source is asked
// to return. Both the on-device and cloud adapters use it verbatim so their
// replies normalize identically.
const reasoningSchema = `{
 "risk": "Safe|Caution|Danger",
 "risk_index": 0-100,
 "summary": "1-line headline (human-readable)",
 "why": "short explanation why it's rated this way",
 "advice": "action user should take",
 "signals": ["condition match","label warnings","known interactions"]
}`

// buildAssessPrompt renders the reasoning prompt for the on-device session.
func buildAssessPrompt(drug string, patient domain.PatientContext, snippet *domain.LabelSnippet) string {
	var b strings.Builder
	b.WriteString("Return STRICT JSON only:\n")
	b.WriteString(reasoningSchema)
	b.WriteString("\n\nPatient:\n")
	fmt.Fprintf(&b, "- Age: %s\n", orNA(patient.Age))
	fmt.Fprintf(&b, "- Gender: %s\n", orNA(patient.Gender))
	fmt.Fprintf(&b, "- Conditions: %s\n", orNone(patient.ConditionsText()))
	fmt.Fprintf(&b, "Drug: %s\n", drug)
	fmt.Fprintf(&b, "Label excerpt: %s\n", orNone(snippet.Excerpt(labelExcerptLimit)))
	b.WriteString("Be concise, factual, and conservative. Prefer the label text. Never invent label content.")
	return b.String()
}

// buildCloudAssessPrompt renders the same schema in the compact form sent to
// the cloud endpoint.
func buildCloudAssessPrompt(drug string, patient domain.PatientContext, snippet *domain.LabelSnippet) string {
	var b strings.Builder
	b.WriteString("Return STRICT JSON ONLY:\n")
	b.WriteString(reasoningSchema)
	fmt.Fprintf(&b, "\nAge:%s, Gender:%s, Conditions:%s, Drug:%s\n",
		orNA(patient.Age), orNA(patient.Gender), orNone(patient.ConditionsText()), drug)
	fmt.Fprintf(&b, "Label:%s\n", orNone(snippet.Excerpt(labelExcerptLimit)))
	b.WriteString("Conservative if conflicts; prefer the label text; never invent label content.")
	return b.String()
}

// buildSimplifyPrompt asks for a plain-language rewrite of the visible text.
func buildSimplifyPrompt(text string) string {
	return fmt.Sprintf(`Simplify the following medical information into plain language for the general public.
Rules:
- Use short, clear sentences.
- Avoid jargon or technical terms.
- Keep it under 3 lines total.
- Maintain all safety meaning.

Text:
%s`, text)
}

// buildTranslatePrompt asks for a translation of the visible text.
func buildTranslatePrompt(lang, text string) string {
	return fmt.Sprintf("Translate to %s:\n%s\nReturn only the translation.", lang, text)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
