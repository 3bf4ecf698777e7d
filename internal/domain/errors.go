package domain

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Engine error codes
const (
	CodeInsufficientData     = "INSUFFICIENT_DATA"
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
	CodeCalculationFailed    = "CALCULATION_FAILED"
	CodeNoProductsFound      = "NO_PRODUCTS_FOUND"
	CodeTimeout              = "TIMEOUT"
	CodeInternal             = "INTERNAL_ERROR"
)

// EngineError is the error type returned by the forecasting and replenishment engine
type EngineError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches any EngineError carrying the same code, so callers can write
// errors.Is(err, domain.ErrInsufficientData).
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a single detail to the error
func (e *EngineError) WithDetail(key string, value any) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Wrap wraps an existing error
func (e *EngineError) Wrap(err error) *EngineError {
	e.Err = err
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrInsufficientData     = &EngineError{Code: CodeInsufficientData}
	ErrInvalidConfiguration = &EngineError{Code: CodeInvalidConfiguration}
	ErrCalculationFailed    = &EngineError{Code: CodeCalculationFailed}
	ErrNoProductsFound      = &EngineError{Code: CodeNoProductsFound}
	ErrTimeout              = &EngineError{Code: CodeTimeout}
)

func newEngineError(code, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewInsufficientDataError reports a missing product or too little history.
func NewInsufficientDataError(format string, args ...any) *EngineError {
	return newEngineError(CodeInsufficientData, format, args...)
}

// NewInvalidConfigurationError reports a configuration rejected at construction time.
func NewInvalidConfigurationError(format string, args ...any) *EngineError {
	return newEngineError(CodeInvalidConfiguration, format, args...)
}

// NewCalculationFailedError reports non-finite arithmetic. The stack is
// recorded so zerolog's pkgerrors marshaler can print where it happened.
func NewCalculationFailedError(format string, args ...any) *EngineError {
	e := newEngineError(CodeCalculationFailed, format, args...)
	e.Err = pkgerrors.New("non-finite value")
	return e
}

// NewNoProductsFoundError reports an empty filter result.
func NewNoProductsFoundError(format string, args ...any) *EngineError {
	return newEngineError(CodeNoProductsFound, format, args...)
}

// NewTimeoutError reports work abandoned because the batch deadline passed.
func NewTimeoutError(format string, args ...any) *EngineError {
	return newEngineError(CodeTimeout, format, args...)
}

// ErrorCode extracts the machine-readable code of err, or CodeInternal.
func ErrorCode(err error) string {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return CodeInternal
}
