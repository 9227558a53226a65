package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies an error for programmatic handling.
type ErrorType int

const (
	// ErrValidation is local input validation.
	ErrValidation ErrorType = iota + 1000
	// ErrNetwork is a transport or remote service failure.
	ErrNetwork
	// ErrConfiguration is an invalid configuration.
	ErrConfiguration
	// ErrState is an operation invoked in a state that does not accept it.
	ErrState
	// ErrInternal is everything else.
	ErrInternal
)

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "validation"
	case ErrNetwork:
		return "network"
	case ErrConfiguration:
		return "configuration"
	case ErrState:
		return "state"
	case ErrInternal:
		return "internal"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// AppError is an error carrying a type, a stable code and optional details.
type AppError struct {
	Type     ErrorType
	Code     string
	Message  string
	Details  string
	Original error
}

// NewError creates a new application error.
func NewError(errorType ErrorType, code, message, details string) *AppError {
	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewErrorWithCause creates a new application error wrapping original.
func NewErrorWithCause(errorType ErrorType, code, message, details string, original error) *AppError {
	err := NewError(errorType, code, message, details)
	err.Original = original
	return err
}

// Error implements the error interface.
func (e *AppError) Error() string {
	var result strings.Builder

	fmt.Fprintf(&result, "[%s] %s", e.Code, e.Message)

	if e.Details != "" {
		fmt.Fprintf(&result, ": %s", e.Details)
	}

	if e.Original != nil {
		fmt.Fprintf(&result, "; caused by: %v", e.Original)
	}

	return result.String()
}

// Unwrap returns the original error.
func (e *AppError) Unwrap() error {
	return e.Original
}

// Is matches another *AppError by code, or by type when the target has no code.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if !errors.As(target, &appErr) {
		return false
	}

	if appErr.Code != "" {
		return e.Code == appErr.Code
	}

	return e.Type == appErr.Type
}

// IsType reports whether the error has the given type.
func (e *AppError) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

// NewValidationError creates a validation error.
func NewValidationError(code, message, details string) *AppError {
	return NewError(ErrValidation, code, message, details)
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message, details string) *AppError {
	return NewError(ErrNetwork, code, message, details)
}

// NewNetworkErrorWithCause creates a network error wrapping original.
func NewNetworkErrorWithCause(code, message, details string, original error) *AppError {
	return NewErrorWithCause(ErrNetwork, code, message, details, original)
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(code, message, details string) *AppError {
	return NewError(ErrConfiguration, code, message, details)
}

// NewStateError creates a state error.
func NewStateError(code, message, details string) *AppError {
	return NewError(ErrState, code, message, details)
}

// NewInternalErrorWithCause creates an internal error wrapping original.
func NewInternalErrorWithCause(code, message, details string, original error) *AppError {
	return NewErrorWithCause(ErrInternal, code, message, details, original)
}

// WrapError wraps err into an AppError unless it already is one.
func WrapError(err error, errorType ErrorType, code, message, details string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return NewErrorWithCause(errorType, code, message, details, err)
}

func isType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.IsType(errorType)
	}

	return false
}

// IsValidationError reports whether err is a validation error.
func IsValidationError(err error) bool {
	return isType(err, ErrValidation)
}

// IsNetworkError reports whether err is a network error.
func IsNetworkError(err error) bool {
	return isType(err, ErrNetwork)
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return isType(err, ErrConfiguration)
}

// IsStateError reports whether err is a state error.
func IsStateError(err error) bool {
	return isType(err, ErrState)
}
