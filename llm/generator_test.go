package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/internal/cache"
	"github.com/BaSui01/voxflow/types"
)

type fakeProvider struct {
	calls int
	reply string
	err   error
	usage *ChatUsage
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.reply == "" {
		return &ChatResponse{Provider: "fake", Model: "fake-1"}, nil
	}
	return &ChatResponse{
		Provider: "fake",
		Model:    "fake-1",
		Choices: []ChatChoice{
			{Message: ChatMessage{Role: "assistant", Content: f.reply}},
		},
		Usage: f.usage,
	}, nil
}

func newTestGenerator(p Provider) *Generator {
	return NewGenerator(p, cache.NewMemoryStore(time.Minute), GeneratorConfig{}, zap.NewNop())
}

func history(contents ...string) []types.Message {
	msgs := make([]types.Message, len(contents))
	for i, c := range contents {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		msgs[i] = types.NewMessage(role, c)
	}
	return msgs
}

func TestGenerator_Generate(t *testing.T) {
	p := &fakeProvider{reply: "hi there", usage: &ChatUsage{TotalTokens: 12}}
	gen := newTestGenerator(p)

	result, err := gen.Generate(context.Background(), history("hello"), true)
	require.NoError(t, err)

	assert.Equal(t, "hi there", result.Reply)
	assert.False(t, result.CacheHit)
	assert.Equal(t, 12, result.Metadata["tokens_used"])
	assert.Equal(t, "fake-1", result.Metadata["model"])
	assert.Equal(t, 1, p.calls)
}

func TestGenerator_SystemPromptInjected(t *testing.T) {
	var gotMessages []ChatMessage
	p := &capturingProvider{reply: "ok", capture: &gotMessages}
	gen := newTestGenerator(p)

	_, err := gen.Generate(context.Background(), history("hello", "hi", "bye"), true)
	require.NoError(t, err)

	require.Len(t, gotMessages, 4)
	assert.Equal(t, "system", gotMessages[0].Role)
	assert.Equal(t, defaultSystemPrompt, gotMessages[0].Content)
	assert.Equal(t, "hello", gotMessages[1].Content)
	assert.Equal(t, "bye", gotMessages[3].Content)
}

type capturingProvider struct {
	reply   string
	capture *[]ChatMessage
}

func (c *capturingProvider) Name() string { return "capturing" }

func (c *capturingProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	*c.capture = req.Messages
	return &ChatResponse{
		Choices: []ChatChoice{{Message: ChatMessage{Role: "assistant", Content: c.reply}}},
	}, nil
}

func TestGenerator_CacheHit(t *testing.T) {
	p := &fakeProvider{reply: "cached answer"}
	gen := newTestGenerator(p)
	ctx := context.Background()

	first, err := gen.Generate(ctx, history("same question"), true)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := gen.Generate(ctx, history("same question"), true)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Reply, second.Reply)
	assert.Equal(t, 1, p.calls)
}

func TestGenerator_DifferentHistoryDifferentKey(t *testing.T) {
	p := &fakeProvider{reply: "answer"}
	gen := newTestGenerator(p)
	ctx := context.Background()

	_, err := gen.Generate(ctx, history("question a"), true)
	require.NoError(t, err)
	_, err = gen.Generate(ctx, history("question a", "answer", "question b"), true)
	require.NoError(t, err)

	assert.Equal(t, 2, p.calls)
}

func TestGenerator_CacheBypass(t *testing.T) {
	p := &fakeProvider{reply: "fresh"}
	gen := newTestGenerator(p)
	ctx := context.Background()

	_, err := gen.Generate(ctx, history("q"), true)
	require.NoError(t, err)
	_, err = gen.Generate(ctx, history("q"), false)
	require.NoError(t, err)

	assert.Equal(t, 2, p.calls)
}

func TestGenerator_EmptyHistory(t *testing.T) {
	gen := newTestGenerator(&fakeProvider{reply: "x"})

	_, err := gen.Generate(context.Background(), nil, true)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestGenerator_NoChoices(t *testing.T) {
	gen := newTestGenerator(&fakeProvider{})

	_, err := gen.Generate(context.Background(), history("q"), true)
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))
}

func TestGenerator_ProviderError(t *testing.T) {
	upstream := types.NewError(types.ErrRateLimited, "slow down")
	gen := newTestGenerator(&fakeProvider{err: upstream})

	_, err := gen.Generate(context.Background(), history("q"), true)
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))
	assert.ErrorIs(t, err, upstream)
}
