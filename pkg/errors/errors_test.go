package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		fatal     bool
		retryable bool
	}{
		{name: "decode errors are fatal", err: ErrDecode, fatal: true, retryable: false},
		{name: "parse errors are fatal", err: ErrParse, fatal: true, retryable: false},
		{name: "validation errors are fatal", err: ErrValidation, fatal: true, retryable: false},
		{name: "not found is fatal", err: ErrNotFound, fatal: true, retryable: false},
		{name: "downstream errors are retryable", err: ErrDownstream, fatal: false, retryable: true},
		{name: "internal errors are retryable", err: ErrInternal, fatal: false, retryable: true},
		{name: "timeouts are retryable", err: ErrTimeout, fatal: false, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, tt.err.IsFatal())
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
		})
	}
}

func TestAsFatalOverridesCode(t *testing.T) {
	err := ErrInternal.AsFatal()

	assert.True(t, err.IsFatal())
	assert.False(t, err.IsRetryable())

	// The override is on the copy only.
	assert.False(t, ErrInternal.IsFatal())
}

func TestClassificationFollowsCause(t *testing.T) {
	err := ErrInternal.WithCause(ErrDecode)

	assert.True(t, err.IsFatal())
	assert.False(t, err.IsRetryable())
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	derived := ErrParse.WithCause(fmt.Errorf("unexpected end of input")).WithDetail("message", "record is not valid JSON")

	assert.Contains(t, derived.Error(), "record is not valid JSON")
	assert.Empty(t, ErrParse.Details)
	assert.Equal(t, "PARSE_ERROR: payload parsing failed", ErrParse.Error())
}

func TestErrorMessage(t *testing.T) {
	err := ErrDecode.WithCause(fmt.Errorf("illegal base64 data"))
	assert.Equal(t, "DECODE_ERROR: payload decoding failed (caused by: illegal base64 data)", err.Error())

	assert.True(t, stderrors.Is(err, err.Cause))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusBadGateway, ToHTTPStatus(ErrDownstream))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(fmt.Errorf("plain failure")))
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrValidation.WithDetail("field", "transactionId"))

	assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, "transactionId", resp.Details["field"])
}

func TestToErrorResponseWrapsPlainErrors(t *testing.T) {
	resp := ToErrorResponse(fmt.Errorf("plain failure"))

	assert.Equal(t, "INTERNAL_ERROR", resp.ErrorCode)
}

func TestRecoverPanic(t *testing.T) {
	assert.NoError(t, RecoverPanic(nil))

	err := RecoverPanic("boom")
	require.Error(t, err)

	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.True(t, appErr.IsFatal())
	assert.Equal(t, true, appErr.Details["panic"])
	assert.NotEmpty(t, appErr.Details["stack_trace"])
}

func TestRecoverPanicKeepsErrorCause(t *testing.T) {
	cause := fmt.Errorf("nil map write")
	err := RecoverPanic(cause)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, cause))
}
