package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/conversation"
	"github.com/BaSui01/voxflow/internal/cache"
	"github.com/BaSui01/voxflow/llm"
	"github.com/BaSui01/voxflow/types"
)

type echoProvider struct {
	calls int
}

func (e *echoProvider) Name() string { return "echo" }

func (e *echoProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	e.calls++
	last := req.Messages[len(req.Messages)-1]
	return &llm.ChatResponse{
		Provider: "echo",
		Model:    "echo-1",
		Choices: []llm.ChatChoice{
			{Message: llm.ChatMessage{Role: "assistant", Content: "echo: " + last.Content}},
		},
		Usage: &llm.ChatUsage{TotalTokens: 3},
	}, nil
}

func newChatMux(t *testing.T) (*http.ServeMux, *conversation.Store, *echoProvider) {
	t.Helper()

	store := cache.NewMemoryStore(time.Minute)
	sessions := conversation.NewStore(store, time.Minute, zap.NewNop())
	provider := &echoProvider{}
	generator := llm.NewGenerator(provider, store, llm.GeneratorConfig{}, zap.NewNop())

	h := NewChatHandler(sessions, generator, nil, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", h.HandleChat)
	return mux, sessions, provider
}

func postChat(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler_NewSession(t *testing.T) {
	mux, sessions, _ := newChatMux(t)

	rec := postChat(t, mux, `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "echo: hello", data["response"])

	sessionID := data["session_id"].(string)
	require.NotEmpty(t, sessionID)

	conv, ok := sessions.Get(context.Background(), sessionID)
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, types.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, types.RoleAssistant, conv.Messages[1].Role)
}

func TestChatHandler_ContinuesSession(t *testing.T) {
	mux, sessions, _ := newChatMux(t)
	ctx := context.Background()

	id, err := sessions.Create(ctx)
	require.NoError(t, err)

	rec := postChat(t, mux, fmt.Sprintf(`{"text":"first","session_id":%q}`, id))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postChat(t, mux, fmt.Sprintf(`{"text":"second","session_id":%q}`, id))
	require.Equal(t, http.StatusOK, rec.Code)

	conv, ok := sessions.Get(ctx, id)
	require.True(t, ok)
	require.Len(t, conv.Messages, 4)
	assert.Equal(t, "first", conv.Messages[0].Content)
	assert.Equal(t, "echo: first", conv.Messages[1].Content)
	assert.Equal(t, "second", conv.Messages[2].Content)
}

func TestChatHandler_EmptyText(t *testing.T) {
	mux, _, provider := newChatMux(t)

	rec := postChat(t, mux, `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, provider.calls)
}

func TestChatHandler_InvalidSessionID(t *testing.T) {
	mux, _, _ := newChatMux(t)

	rec := postChat(t, mux, `{"text":"hi","session_id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_GenerationFailure(t *testing.T) {
	store := cache.NewMemoryStore(time.Minute)
	sessions := conversation.NewStore(store, time.Minute, zap.NewNop())
	generator := llm.NewGenerator(&failingProvider{}, store, llm.GeneratorConfig{}, zap.NewNop())

	h := NewChatHandler(sessions, generator, nil, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", h.HandleChat)

	rec := postChat(t, mux, `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrGenerationFailed), resp.Error.Code)
}

type failingProvider struct{}

func (f *failingProvider) Name() string { return "failing" }

func (f *failingProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, types.NewError(types.ErrUpstreamError, "down")
}
