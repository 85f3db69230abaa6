package stt

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/fallback"
	"github.com/BaSui01/voxflow/internal/cache"
	"github.com/BaSui01/voxflow/storage"
	"github.com/BaSui01/voxflow/types"
)

type fakeTranscriber struct {
	calls   int
	keys    []string
	text    string
	failFor map[string]error
}

func (f *fakeTranscriber) Name() string { return "fake-stt" }

func (f *fakeTranscriber) Transcribe(ctx context.Context, apiKey string, audio io.Reader, filename string) (string, error) {
	f.calls++
	f.keys = append(f.keys, apiKey)
	if err, ok := f.failFor[apiKey]; ok {
		return "", err
	}
	return f.text, nil
}

func newTestService(t *testing.T, client Transcriber, creds []fallback.Credential) (*Service, *storage.LocalStore) {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	svc := NewService(client, creds, cache.NewMemoryStore(time.Minute), store, time.Hour, zap.NewNop())
	return svc, store
}

func writeAudio(t *testing.T, store *storage.LocalStore, content string) string {
	t.Helper()
	ref, w, err := store.Create("wav")
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return ref
}

func creds(secrets ...string) []fallback.Credential {
	out := make([]fallback.Credential, len(secrets))
	for i, s := range secrets {
		out[i] = fallback.Credential{Label: s, Secret: s}
	}
	return out
}

func TestService_Transcribe(t *testing.T) {
	client := &fakeTranscriber{text: "hello world"}
	svc, store := newTestService(t, client, creds("primary"))
	ref := writeAudio(t, store, "wav-bytes")

	text, hit, err := svc.Transcribe(context.Background(), ref, true)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.False(t, hit)
	assert.Equal(t, []string{"primary"}, client.keys)
}

func TestService_CacheHitByContent(t *testing.T) {
	client := &fakeTranscriber{text: "same words"}
	svc, store := newTestService(t, client, creds("primary"))
	ctx := context.Background()

	ref1 := writeAudio(t, store, "identical-audio")
	ref2 := writeAudio(t, store, "identical-audio")

	_, hit, err := svc.Transcribe(ctx, ref1, true)
	require.NoError(t, err)
	assert.False(t, hit)

	// 不同文件、相同内容,第二次应命中缓存
	text, hit, err := svc.Transcribe(ctx, ref2, true)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "same words", text)
	assert.Equal(t, 1, client.calls)
}

func TestService_NoCredentialsHardFailure(t *testing.T) {
	client := &fakeTranscriber{text: "never"}
	svc, store := newTestService(t, client, nil)
	ref := writeAudio(t, store, "x")

	_, _, err := svc.Transcribe(context.Background(), ref, true)
	require.Error(t, err)
	assert.Equal(t, types.ErrNoCredentials, types.GetErrorCode(err))
	assert.Zero(t, client.calls)
}

func TestService_FallbackToBackupKey(t *testing.T) {
	client := &fakeTranscriber{
		text: "rescued",
		failFor: map[string]error{
			"primary": types.NewError(types.ErrRateLimited, "quota exceeded"),
		},
	}
	svc, store := newTestService(t, client, creds("primary", "backup"))
	ref := writeAudio(t, store, "x")

	text, _, err := svc.Transcribe(context.Background(), ref, true)
	require.NoError(t, err)
	assert.Equal(t, "rescued", text)
	assert.Equal(t, []string{"primary", "backup"}, client.keys)
}

func TestService_ExhaustionWrapped(t *testing.T) {
	upstream := types.NewError(types.ErrUnauthorized, "bad key")
	client := &fakeTranscriber{
		failFor: map[string]error{"a": upstream, "b": upstream},
	}
	svc, store := newTestService(t, client, creds("a", "b"))
	ref := writeAudio(t, store, "x")

	_, _, err := svc.Transcribe(context.Background(), ref, true)
	require.Error(t, err)
	assert.Equal(t, types.ErrTranscriptionFailed, types.GetErrorCode(err))
	assert.Equal(t, 2, client.calls)
}

func TestService_MissingFile(t *testing.T) {
	svc, _ := newTestService(t, &fakeTranscriber{}, creds("primary"))

	_, _, err := svc.Transcribe(context.Background(), "no-such-ref.wav", true)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestService_EmptyTranscriptIsSoftFailure(t *testing.T) {
	client := &fakeTranscriber{text: "   "}
	svc, store := newTestService(t, client, creds("a", "b"))
	ref := writeAudio(t, store, "x")

	_, _, err := svc.Transcribe(context.Background(), ref, true)
	require.Error(t, err)
	assert.Equal(t, types.ErrTranscriptionFailed, types.GetErrorCode(err))
	assert.Equal(t, 2, client.calls)
}
