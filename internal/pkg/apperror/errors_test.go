package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewValidationError("VAL_001", "repository URL is required", "field is empty")
	assert.Equal(t, "[VAL_001] repository URL is required: field is empty", err.Error())

	cause := errors.New("connection refused")
	netErr := NewNetworkErrorWithCause("NET_001", "request failed", "", cause)
	assert.Equal(t, "[NET_001] request failed; caused by: connection refused", netErr.Error())
	assert.ErrorIs(t, netErr, cause)
}

func TestAppErrorIs(t *testing.T) {
	busy := NewStateError("FLOW_002", "operation already pending", "")

	wrapped := fmt.Errorf("create: %w", NewStateError("FLOW_002", "operation already pending", "connect"))
	assert.ErrorIs(t, wrapped, busy)

	other := NewStateError("FLOW_003", "state does not accept input", "")
	assert.False(t, errors.Is(wrapped, other))

	// A code-less target matches by type.
	assert.ErrorIs(t, wrapped, &AppError{Type: ErrState})
}

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		check  func(error) bool
		expect bool
	}{
		{"validation", NewValidationError("V", "m", ""), IsValidationError, true},
		{"wrapped validation", fmt.Errorf("x: %w", NewValidationError("V", "m", "")), IsValidationError, true},
		{"network", NewNetworkError("N", "m", ""), IsNetworkError, true},
		{"configuration", NewConfigurationError("C", "m", ""), IsConfigurationError, true},
		{"state", NewStateError("S", "m", ""), IsStateError, true},
		{"plain error", errors.New("plain"), IsValidationError, false},
		{"wrong type", NewNetworkError("N", "m", ""), IsValidationError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.check(tt.err))
		})
	}
}

func TestWrapError(t *testing.T) {
	original := NewValidationError("VAL_001", "m", "")
	require.Same(t, original, WrapError(original, ErrInternal, "X", "y", ""))

	plain := errors.New("boom")
	wrapped := WrapError(plain, ErrNetwork, "NET_009", "failed", "")
	assert.True(t, wrapped.IsType(ErrNetwork))
	assert.ErrorIs(t, wrapped, plain)
}
