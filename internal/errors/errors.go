package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a class of search failures
type ErrorCode string

const (
	// Configuration errors
	ErrCodeUnknownStrategy ErrorCode = "UNKNOWN_STRATEGY"
	ErrCodeUnknownStage    ErrorCode = "UNKNOWN_STAGE"
	ErrCodeChainTooDeep    ErrorCode = "STAGE_CHAIN_TOO_DEEP"
	ErrCodeNotFitted       ErrorCode = "NOT_FITTED"
	ErrCodeInvalidConfig   ErrorCode = "INVALID_CONFIG"

	// Assembly and training errors
	ErrCodeNoFeasibleStrategy  ErrorCode = "NO_FEASIBLE_STRATEGY"
	ErrCodeMissingPrerequisite ErrorCode = "MISSING_PREREQUISITE"
	ErrCodeEmptyTrainingSlice  ErrorCode = "EMPTY_TRAINING_SLICE"
	ErrCodeTrainingFailed      ErrorCode = "TRAINING_FAILED"

	// Data errors
	ErrCodeMissingRole   ErrorCode = "MISSING_ROLE"
	ErrCodeMissingColumn ErrorCode = "MISSING_COLUMN"
	ErrCodeMetricFailed  ErrorCode = "METRIC_FAILED"
)

// ErrorSeverity grades how bad a failure is
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// SearchError is the error type produced by the uplift search
type SearchError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *SearchError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is matches SearchErrors by code so sentinels work with errors.Is
func (e *SearchError) Is(target error) bool {
	var se *SearchError
	if errors.As(target, &se) {
		return e.Code == se.Code
	}
	return false
}

// New creates a new search error
func New(code ErrorCode, message string, cause error) *SearchError {
	return &SearchError{
		Code:      code,
		Message:   message,
		Severity:  severityByCode(code),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// Newf creates a new search error with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *SearchError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithDetails creates a new search error carrying extra detail text
func WithDetails(code ErrorCode, message, details string, cause error) *SearchError {
	err := New(code, message, cause)
	err.Details = details
	return err
}

// WithContext attaches a key/value pair to the error
func (e *SearchError) WithContext(key string, value interface{}) *SearchError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func severityByCode(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeMissingPrerequisite, ErrCodeTrainingFailed:
		return SeverityCritical
	case ErrCodeNoFeasibleStrategy, ErrCodeEmptyTrainingSlice, ErrCodeUnknownStage, ErrCodeUnknownStrategy, ErrCodeChainTooDeep:
		return SeverityHigh
	case ErrCodeNotFitted, ErrCodeInvalidConfig, ErrCodeMissingRole, ErrCodeMissingColumn:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Predefined sentinels for errors.Is checks
var (
	ErrUnknownStrategy     = New(ErrCodeUnknownStrategy, "unknown strategy type", nil)
	ErrUnknownStage        = New(ErrCodeUnknownStage, "unknown stage name", nil)
	ErrChainTooDeep        = New(ErrCodeChainTooDeep, "stage chain deeper than two levels is unsupported", nil)
	ErrNotFitted           = New(ErrCodeNotFitted, "call Fit before requesting predictions or the best strategy", nil)
	ErrNoFeasibleStrategy  = New(ErrCodeNoFeasibleStrategy, "no strategy has all required stages trained", nil)
	ErrMissingPrerequisite = New(ErrCodeMissingPrerequisite, "prerequisite stage has no trained record", nil)
	ErrEmptyTrainingSlice  = New(ErrCodeEmptyTrainingSlice, "stage training slice contains no rows", nil)
)

// Wrap wraps a plain error into a SearchError, passing through existing ones
func Wrap(err error, code ErrorCode, message string) *SearchError {
	if err == nil {
		return nil
	}
	var se *SearchError
	if errors.As(err, &se) {
		return se
	}
	return New(code, message, err)
}

// IsSearchError reports whether err is a SearchError
func IsSearchError(err error) bool {
	var se *SearchError
	return errors.As(err, &se)
}
