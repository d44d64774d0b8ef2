// Package errors provides the unified error type and factory functions for
// antimet.  Every layer (domain, application, infrastructure, interfaces)
// uses AppError as the single carrier for structured error information, so
// that the spec'd error taxonomy — configuration, data, solver infeasibility,
// connectivity, invariant violation — can be checked by code rather than by
// string matching.
package errors

import (
	"errors"
	"fmt"
)

// AppError is the single structured error type used throughout antimet.
// It satisfies the standard error interface and supports Go 1.13+ error
// wrapping so that errors.Is / errors.As / errors.Unwrap work transparently
// across all layers.
//
// Usage:
//
//	return errors.New(errors.ErrCodeSolubilityBucket, "unknown solubility bucket")
//	return errors.Wrap(err, errors.ErrCodeChunkFailed, "chunk [2000, 3000) failed")
type AppError struct {
	// Code is the typed error code that identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description of the error.
	Message string

	// Detail carries supplementary context (invalid values, entity IDs,
	// chunk ranges) that aids debugging.
	Detail string

	// Cause is the underlying error, enabling errors.Is / errors.As
	// traversal of the full chain.
	Cause error
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>"; the detail segment is omitted
// when Detail is empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// Safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithDetailf is WithDetail with fmt.Sprintf formatting.
func (e *AppError) WithDetailf(format string, args ...interface{}) *AppError {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf constructs an AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an AppError that wraps an existing error.  If err is nil,
// Wrap returns nil so it can be used inline.  When err is already an
// *AppError and code is ErrCodeUnknown the original code is preserved,
// preventing loss of the original classification during propagation.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == ErrCodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.  It is the idiomatic way to check failure modes:
//
//	if errors.IsCode(err, errors.ErrCodeSolverInfeasible) { ... }
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsInfeasible reports whether err marks solver infeasibility, the expected
// recoverable outcome of evaluating an over-constrained candidate.
func IsInfeasible(err error) bool {
	return IsCode(err, ErrCodeSolverInfeasible)
}

// IsConfiguration reports whether err belongs to the configuration error
// family (fail-fast errors raised before any expensive work).
func IsConfiguration(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		switch ae.Code {
		case ErrCodeConfigInvalid, ErrCodeSolubilityBucket, ErrCodeFingerprintFormat,
			ErrCodeFractionCoverage, ErrCodeFingerprintDimMismatch, ErrCodeValidation:
			return true
		}
	}
	return false
}

// GetCode extracts the ErrorCode from the first *AppError in err's chain.
// If no *AppError is present, ErrCodeUnknown is returned; nil yields
// ErrCodeOK.  Useful in logging layers that emit a single code as a label.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeUnknown
}

// InvalidParam constructs an ErrCodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidParam, Message: message}
}

// NotFound constructs an ErrCodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Internal constructs an ErrCodeInternal AppError.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Invariant constructs an ErrCodeInvariant AppError.  Reserve for
// programming errors at the call site: wrong argument types, violated
// preconditions, impossible states.
func Invariant(message string) *AppError {
	return &AppError{Code: ErrCodeInvariant, Message: message}
}

// Infeasible constructs the distinguished solver-infeasibility error.
func Infeasible(message string) *AppError {
	return &AppError{Code: ErrCodeSolverInfeasible, Message: message}
}
