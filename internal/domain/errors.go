package domain

import (
	"fmt"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput      = "INVALID_INPUT"
	ErrExternalAPI       = "EXTERNAL_API_ERROR"
	ErrAnalysisFailed    = "ANALYSIS_ERROR"
	ErrNoActiveSession   = "NO_ACTIVE_SESSION"
	ErrModelUnavailable  = "MODEL_UNAVAILABLE"
	ErrAnalysisInFlight  = "ANALYSIS_IN_FLIGHT"
	ErrPreferenceStorage = "PREFERENCE_STORAGE_ERROR"
	ErrInternalServer    = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// SetupHelp is the user-facing message surfaced when a simplify or translate
// request has no reachable model session. It must not change existing
// presentation state.
func SetupHelp(which string) string {
	return fmt.Sprintf(`%s not available.
Make sure:
1) The local model runtime is installed and running.
2) The configured model is fully downloaded (status: ready).
3) Restart the runtime after pulling a new model.`, which)
}
