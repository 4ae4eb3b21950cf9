package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrors_UnwrapsToErrValidation(t *testing.T) {
	var err error = ValidationErrors{
		{Field: "interestRate", Message: "must be between 0.10 and 0.50"},
		{Field: "numberOfInstallment", Message: "must be one of 6, 9, 12, 24"},
	}

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "interestRate")
	assert.Contains(t, err.Error(), "numberOfInstallment")
}

func TestAppError_Error(t *testing.T) {
	err := &AppError{Code: "DB_ERROR", Message: "insert failed"}
	assert.Equal(t, "[DB_ERROR] insert failed", err.Error())

	err = &AppError{Message: "plain"}
	assert.Equal(t, "plain", err.Error())
}

func TestWrapDatabaseError(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapDatabaseError(cause, "saving loan")

	assert.True(t, errors.Is(err, ErrDatabase))
	assert.True(t, errors.Is(err, cause))
}

func TestSentinelWrapping(t *testing.T) {
	err := fmt.Errorf("%w: loan with ID %d not found", ErrNotFound, 42)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
}
