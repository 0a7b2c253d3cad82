package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorIsMatchable(t *testing.T) {
	verr := &ValidationError{}
	require.NoError(t, verr.OrNil())

	verr.Add(2, "quantity", "must be greater than zero")
	verr.Add(-1, "currentStock", "must not be negative")
	err := fmt.Errorf("inventory: %w", verr.OrNil())

	require.ErrorIs(t, err, ErrValidation)
	var target *ValidationError
	require.True(t, errors.As(err, &target))
	require.Equal(t, map[string]string{
		"lines[2].quantity": "must be greater than zero",
		"currentStock":      "must not be negative",
	}, target.Map())
	require.Contains(t, err.Error(), "lines[2].quantity: must be greater than zero")
}

func TestNewFieldError(t *testing.T) {
	err := NewFieldError("amount", "must be positive")
	require.Equal(t, "validation failed: amount: must be positive", err.Error())
	require.NotErrorIs(t, err, ErrRejected)
}
