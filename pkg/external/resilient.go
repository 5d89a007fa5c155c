package external

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mediguard-server/internal/domain"
)

// ResilientClient wraps the external API clients with the circuit-breaker
// pattern. A tripped breaker is reported as an ordinary error, which the
// cascade downgrades to "no evidence" / "try next source"; nothing here
// aborts an analysis. There is deliberately no response cache: repeated
// queries are answered fresh every time.
type ResilientClient struct {
	labelClient *DrugLabelClient
	cloudClient *CloudModelClient
	logger      *logrus.Logger

	labelBreaker *gobreaker.CircuitBreaker
	cloudBreaker *gobreaker.CircuitBreaker
}

// NewResilientClient creates breakers around the label-lookup and cloud
// model clients. The local model client is not wrapped: it is loopback-only
// and its own readiness flag already gates calls.
func NewResilientClient(labelClient *DrugLabelClient, cloudClient *CloudModelClient, logger *logrus.Logger) *ResilientClient {
	r := &ResilientClient{
		labelClient: labelClient,
		cloudClient: cloudClient,
		logger:      logger,
	}

	r.labelBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "DrugLabel",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: r.logStateChange,
	})

	r.cloudBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "CloudModel",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 2 && failureRatio >= 0.5
		},
		OnStateChange: r.logStateChange,
	})

	return r
}

func (r *ResilientClient) logStateChange(name string, from, to gobreaker.State) {
	r.logger.WithFields(logrus.Fields{
		"breaker": name,
		"from":    from.String(),
		"to":      to.String(),
	}).Warn("Circuit breaker state changed")
}

// Lookup queries the drug-label API through its breaker.
func (r *ResilientClient) Lookup(ctx context.Context, drug string) (*domain.LabelSnippet, error) {
	result, err := r.labelBreaker.Execute(func() (interface{}, error) {
		return r.labelClient.Lookup(ctx, drug)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("drug-label service unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("drug-label query failed: %w", err)
	}
	snippet, _ := result.(*domain.LabelSnippet)
	return snippet, nil
}

// GenerateText calls the cloud model through its breaker.
func (r *ResilientClient) GenerateText(ctx context.Context, apiKey, prompt string, temperature float64, maxTokens int) (string, error) {
	result, err := r.cloudBreaker.Execute(func() (interface{}, error) {
		return r.cloudClient.GenerateText(ctx, apiKey, prompt, temperature, maxTokens)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return "", fmt.Errorf("cloud model unavailable (circuit breaker open)")
		}
		return "", fmt.Errorf("cloud model query failed: %w", err)
	}
	return result.(string), nil
}

// DetectDrugName calls the vision model through the cloud breaker; photo
// detection shares the cloud endpoint's health.
func (r *ResilientClient) DetectDrugName(ctx context.Context, apiKey, mimeType string, imageData []byte) (*domain.DrugDetection, error) {
	result, err := r.cloudBreaker.Execute(func() (interface{}, error) {
		return r.cloudClient.DetectDrugName(ctx, apiKey, mimeType, imageData)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("cloud model unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("photo detection failed: %w", err)
	}
	return result.(*domain.DrugDetection), nil
}

// BreakerStates returns the current state of all circuit breakers.
func (r *ResilientClient) BreakerStates() map[string]gobreaker.State {
	return map[string]gobreaker.State{
		"DrugLabel":  r.labelBreaker.State(),
		"CloudModel": r.cloudBreaker.State(),
	}
}

// BreakerCounts returns statistics for all circuit breakers.
func (r *ResilientClient) BreakerCounts() map[string]gobreaker.Counts {
	return map[string]gobreaker.Counts{
		"DrugLabel":  r.labelBreaker.Counts(),
		"CloudModel": r.cloudBreaker.Counts(),
	}
}
