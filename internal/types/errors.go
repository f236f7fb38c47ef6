package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All stages MUST use these constants instead of hardcoded strings.
const (
	// Configuration
	ErrCodeConfigInvalid ErrorCode = "config_invalid"

	// Input (fatal)
	ErrCodeInputMissing ErrorCode = "input_missing"
	ErrCodeInputInvalid ErrorCode = "input_invalid"

	// Empty datasets (fatal)
	ErrCodeNoBuildings      ErrorCode = "no_buildings"
	ErrCodeNoRoads          ErrorCode = "no_roads"
	ErrCodeNoShadowPolygons ErrorCode = "no_shadow_polygons"

	// Geometry
	ErrCodeInvalidGeometry  ErrorCode = "invalid_geometry"
	ErrCodeProjectionFailed ErrorCode = "projection_failed"
	ErrCodeGeometryEngine   ErrorCode = "geometry_engine_failed"

	// Output
	ErrCodeOutputWrite ErrorCode = "output_write_failed"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// Process exit statuses. Zero is success; each fatal condition has its own
// status so wrapping scripts can branch on it.
const (
	ExitOK            = 0
	ExitGeneric       = 1
	ExitInputError    = 2
	ExitNoBuildings   = 3
	ExitNoRoads       = 4
	ExitNoShadows     = 5
	ExitGeometryError = 6
	ExitOutputError   = 7
)

// ExitCode maps an ErrorCode to the process exit status reported by the CLI.
// Returns ExitGeneric for unrecognized codes.
func (c ErrorCode) ExitCode() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "input_"):
		return ExitInputError
	case c == ErrCodeNoBuildings:
		return ExitNoBuildings
	case c == ErrCodeNoRoads:
		return ExitNoRoads
	case c == ErrCodeNoShadowPolygons:
		return ExitNoShadows
	case c == ErrCodeInvalidGeometry, c == ErrCodeProjectionFailed, c == ErrCodeGeometryEngine:
		return ExitGeometryError
	case c == ErrCodeOutputWrite:
		return ExitOutputError
	default:
		return ExitGeneric
	}
}

// AppError is the standard application error type used throughout the module.
// All stage errors should be expressed as AppError to enable consistent
// reporting, exit status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit status corresponding to this error's code.
func (e *AppError) ExitCode() int {
	return e.Code.ExitCode()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for stage errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf extracts the ErrorCode from an error chain. Errors that carry no
// AppError report ErrCodeInternalUnexpected.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}

// ExitCodeOf returns the process exit status for err. A nil error is ExitOK.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	return ErrCodeInternalUnexpected.ExitCode()
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
