package common_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/common"
)

func TestAppErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	appErr := &common.AppError{
		Code:       "BACKOFFICE_ERROR",
		Message:    "back office request failed",
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Err:        cause,
	}

	require.EqualError(t, appErr, "back office request failed: connection refused")
	require.ErrorIs(t, appErr, cause)

	wrapped := fmt.Errorf("proxy: %w", appErr)
	got, ok := common.AsAppError(wrapped)
	require.True(t, ok)
	require.Equal(t, "BACKOFFICE_ERROR", got.Code)
	require.True(t, got.Retryable)
}

func TestAsAppErrorRejectsPlainErrors(t *testing.T) {
	_, ok := common.AsAppError(errors.New("boom"))
	require.False(t, ok)
}
