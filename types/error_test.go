package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrSynthesisFailed, "all credentials failed")
	assert.Equal(t, "[SYNTHESIS_FAILED] all credentials failed", err.Error())

	cause := errors.New("status=429")
	err = err.WithCause(cause)
	assert.Contains(t, err.Error(), "status=429")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Builders(t *testing.T) {
	err := NewError(ErrRateLimited, "quota exceeded").
		WithHTTPStatus(429).
		WithRetryable(true).
		WithProvider("elevenlabs")

	assert.Equal(t, ErrRateLimited, err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
	assert.True(t, err.Retryable)
	assert.Equal(t, "elevenlabs", err.Provider)
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrUpstreamError, GetErrorCode(NewError(ErrUpstreamError, "boom")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(nil))
}
