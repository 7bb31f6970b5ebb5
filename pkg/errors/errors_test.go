package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryabilityByCode(t *testing.T) {
	assert.False(t, ErrValidation.IsRetryable())
	assert.False(t, ErrConfig.IsRetryable())
	assert.True(t, ErrParse.IsRetryable())
	assert.True(t, ErrMissingField.IsRetryable())
	assert.True(t, ErrStorageWrite.IsRetryable())
	assert.True(t, ErrSecretFetch.IsRetryable())
}

func TestAsFatalOverridesDefault(t *testing.T) {
	err := ErrInternal.AsFatal()
	assert.False(t, err.IsRetryable())
	assert.True(t, err.IsFatal())

	// the base error is untouched
	assert.True(t, ErrInternal.IsRetryable())
}

func TestWithDetailDoesNotMutateBase(t *testing.T) {
	err := ErrValidation.WithDetail("field", "session-id")

	assert.Equal(t, "session-id", err.Details["field"])
	assert.NotContains(t, ErrValidation.Details, "field")
}

func TestWithCausePreservesCode(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := ErrStorageWrite.WithCause(cause)

	assert.True(t, Is(err, ErrStorageWrite))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestToErrorResponseHidesCause(t *testing.T) {
	err := ErrInternal.WithCause(fmt.Errorf("password=hunter2"))
	response := ToErrorResponse(err)

	assert.Equal(t, "INTERNAL_ERROR", response["error_code"])
	assert.NotContains(t, fmt.Sprintf("%v", response), "hunter2")
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusBadGateway, ToHTTPStatus(ErrEnrichment))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(fmt.Errorf("plain")))
}
