package tts

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
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

type fakeSynthesizer struct {
	mu      sync.Mutex
	calls   int
	keys    []string
	texts   []string
	audio   string
	failFor map[string]error
}

func (f *fakeSynthesizer) Name() string { return "fake-tts" }

func (f *fakeSynthesizer) Synthesize(ctx context.Context, apiKey, text string, w io.Writer) (int64, error) {
	f.mu.Lock()
	f.calls++
	f.keys = append(f.keys, apiKey)
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if err, ok := f.failFor[apiKey]; ok {
		return 0, err
	}
	n, err := w.Write([]byte(f.audio))
	return int64(n), err
}

func newTestService(t *testing.T, client Synthesizer, creds []fallback.Credential) (*Service, *storage.LocalStore) {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	svc := NewService(client, creds, cache.NewMemoryStore(time.Minute), store, time.Hour, zap.NewNop())
	return svc, store
}

func storagePathEntries(store *storage.LocalStore, ref string) (int, error) {
	path, err := store.Path(ref)
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func creds(secrets ...string) []fallback.Credential {
	out := make([]fallback.Credential, len(secrets))
	for i, s := range secrets {
		out[i] = fallback.Credential{Label: s, Secret: s}
	}
	return out
}

func TestService_Synthesize(t *testing.T) {
	client := &fakeSynthesizer{audio: "mp3-bytes"}
	svc, store := newTestService(t, client, creds("primary"))

	ref, hit, err := svc.Synthesize(context.Background(), "hello", true)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, store.Exists(ref))

	r, err := store.Open(ref)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))
}

func TestService_MarkdownStripped(t *testing.T) {
	client := &fakeSynthesizer{audio: "a"}
	svc, _ := newTestService(t, client, creds("primary"))

	_, _, err := svc.Synthesize(context.Background(), "**bold** and `code` and __under__", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"bold and code and under"}, client.texts)
}

func TestService_EmptyAfterStripping(t *testing.T) {
	client := &fakeSynthesizer{audio: "a"}
	svc, _ := newTestService(t, client, creds("primary"))

	_, _, err := svc.Synthesize(context.Background(), "** ** ``", true)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Zero(t, client.calls)
}

func TestService_CacheHit(t *testing.T) {
	client := &fakeSynthesizer{audio: "mp3"}
	svc, _ := newTestService(t, client, creds("primary"))
	ctx := context.Background()

	ref1, hit, err := svc.Synthesize(ctx, "same text", true)
	require.NoError(t, err)
	assert.False(t, hit)

	ref2, hit, err := svc.Synthesize(ctx, "same text", true)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, ref1, ref2)
	assert.Equal(t, 1, client.calls)
}

func TestService_RegeneratesWhenArtifactDeleted(t *testing.T) {
	client := &fakeSynthesizer{audio: "mp3"}
	svc, store := newTestService(t, client, creds("primary"))
	ctx := context.Background()

	ref1, _, err := svc.Synthesize(ctx, "ephemeral", true)
	require.NoError(t, err)
	require.NoError(t, store.Remove(ref1))

	ref2, hit, err := svc.Synthesize(ctx, "ephemeral", true)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotEqual(t, ref1, ref2)
	assert.True(t, store.Exists(ref2))
	assert.Equal(t, 2, client.calls)
}

func TestService_FallbackCleansUpFailedAttempts(t *testing.T) {
	client := &fakeSynthesizer{
		audio: "mp3",
		failFor: map[string]error{
			"primary": types.NewError(types.ErrRateLimited, "quota exceeded"),
		},
	}
	svc, store := newTestService(t, client, creds("primary", "backup"))

	ref, _, err := svc.Synthesize(context.Background(), "hello", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"primary", "backup"}, client.keys)
	assert.True(t, store.Exists(ref))

	// 失败尝试创建的文件应已被清理,目录里只剩成功产物
	dir, err := storagePathEntries(store, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, dir)
}

func TestService_EmptyAudioIsSoftFailure(t *testing.T) {
	client := &fakeSynthesizer{audio: ""}
	svc, _ := newTestService(t, client, creds("a", "b"))

	_, _, err := svc.Synthesize(context.Background(), "hello", true)
	require.Error(t, err)
	assert.Equal(t, types.ErrSynthesisFailed, types.GetErrorCode(err))
	assert.Equal(t, 2, client.calls)
}

func TestService_NoCredentials(t *testing.T) {
	client := &fakeSynthesizer{audio: "mp3"}
	svc, _ := newTestService(t, client, nil)

	_, _, err := svc.Synthesize(context.Background(), "hello", true)
	require.Error(t, err)
	assert.Equal(t, types.ErrNoCredentials, types.GetErrorCode(err))
	assert.Zero(t, client.calls)
}

func TestService_ConcurrentRequestsCoalesce(t *testing.T) {
	client := &fakeSynthesizer{audio: "mp3"}
	svc, _ := newTestService(t, client, creds("primary"))
	ctx := context.Background()

	var wg sync.WaitGroup
	refs := make([]string, 8)
	for i := range refs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref, _, err := svc.Synthesize(ctx, "shared text", false)
			assert.NoError(t, err)
			refs[i] = ref
		}(i)
	}
	wg.Wait()

	for _, ref := range refs[1:] {
		assert.Equal(t, refs[0], ref)
	}
	assert.LessOrEqual(t, client.calls, 2)
}
