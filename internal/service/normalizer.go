package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mediguard-server/internal/domain"
)

// InputNormalizer prepares the free-text drug name and condition list for
// the cascade: trim, lower-case, and an optional best-effort pass through
// the grammar-correction capability. Normalization never fails an analysis;
// a correction error is swallowed and the uncorrected string passes through.
type InputNormalizer struct {
	corrector domain.GrammarCorrector
	logger    *logrus.Logger
}

// NewInputNormalizer creates a normalizer. corrector may be nil when the
// capability is absent.
func NewInputNormalizer(corrector domain.GrammarCorrector, logger *logrus.Logger) *InputNormalizer {
	return &InputNormalizer{
		corrector: corrector,
		logger:    logger,
	}
}

// Normalize returns the cleaned drug name and condition list.
func (n *InputNormalizer) Normalize(ctx context.Context, rawDrug, rawConditions string) (string, []string) {
	drug := n.clean(ctx, strings.ToLower(strings.TrimSpace(rawDrug)))
	conditionsText := n.clean(ctx, strings.ToLower(strings.TrimSpace(rawConditions)))
	return drug, splitConditions(conditionsText)
}

// clean applies the optional grammar correction to one string.
func (n *InputNormalizer) clean(ctx context.Context, text string) string {
	if n.corrector == nil || text == "" {
		return text
	}
	corrected, err := n.corrector.Correct(ctx, text)
	if err != nil {
		n.logger.WithError(err).Debug("Grammar correction unavailable, using raw input")
		return text
	}
	corrected = strings.ToLower(strings.TrimSpace(corrected))
	if corrected == "" {
		return text
	}
	return corrected
}

// splitConditions breaks the free-text condition list on commas and
// semicolons, preserving order and dropping empties.
func splitConditions(text string) []string {
	if text == "" {
		return nil
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';'
	})
	conditions := make([]string, 0, len(fields))
	for _, f := range fields {
		if c := strings.TrimSpace(f); c != "" {
			conditions = append(conditions, c)
		}
	}
	return conditions
}
