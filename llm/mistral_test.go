package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/types"
)

func TestMistralProvider_Completion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mistral-large-latest", req.Model)

		_ = json.NewEncoder(w).Encode(ChatResponse{
			ID:    "cmpl-1",
			Model: req.Model,
			Choices: []ChatChoice{
				{Message: ChatMessage{Role: "assistant", Content: "bonjour"}},
			},
			Usage: &ChatUsage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
		})
	}))
	defer srv.Close()

	p := NewMistralProvider(MistralConfig{APIKey: "sk-test", BaseURL: srv.URL}, zap.NewNop())

	resp, err := p.Completion(context.Background(), &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "salut"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "mistral", resp.Provider)
	assert.Equal(t, "bonjour", resp.Text())
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestMistralProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		code   types.ErrorCode
	}{
		{http.StatusTooManyRequests, types.ErrRateLimited},
		{http.StatusUnauthorized, types.ErrUnauthorized},
		{http.StatusBadGateway, types.ErrUpstreamError},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))

		p := NewMistralProvider(MistralConfig{APIKey: "sk", BaseURL: srv.URL}, zap.NewNop())
		_, err := p.Completion(context.Background(), &ChatRequest{
			Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		})
		srv.Close()

		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.code, types.GetErrorCode(err), "status %d", tt.status)
	}
}
