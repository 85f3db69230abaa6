package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/types"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrAuthentication, http.StatusUnauthorized},
		{types.ErrSessionNotFound, http.StatusNotFound},
		{types.ErrNotFound, http.StatusNotFound},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrQuotaExceeded, http.StatusPaymentRequired},
		{types.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{types.ErrNoCredentials, http.StatusServiceUnavailable},
		{types.ErrProviderExhausted, http.StatusBadGateway},
		{types.ErrSynthesisFailed, http.StatusBadGateway},
		{types.ErrTranscriptionFailed, http.StatusBadGateway},
		{types.ErrGenerationFailed, http.StatusBadGateway},
		{types.ErrInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteError(rec, types.NewError(tt.code, "boom"), zap.NewNop())
		assert.Equal(t, tt.status, rec.Code, "code %s", tt.code)

		var resp Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(tt.code), resp.Error.Code)
	}
}

func TestWriteError_PlainErrorBecomesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("plain failure"), zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
	// 内部错误细节不外泄
	assert.NotContains(t, resp.Error.Message, "plain failure")
}

func TestDecodeJSONBody_RejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"text":"hi","bogus":1}`))

	var dst struct {
		Text string `json:"text"`
	}
	err := DecodeJSONBody(rec, req, &dst, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", sanitizeText("  hello  "))
	assert.Equal(t, "", sanitizeText("   "))

	long := strings.Repeat("x", maxTextLength+100)
	assert.Len(t, sanitizeText(long), maxTextLength)
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, validateSessionID("abcd-1234"))
	assert.NoError(t, validateSessionID("550e8400-e29b-41d4-a716-446655440000"))

	assert.Error(t, validateSessionID("short"))
	assert.Error(t, validateSessionID(strings.Repeat("a", 65)))
	assert.Error(t, validateSessionID("invalid/../chars"))
}
