package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestLocalStore_CreateWriteRead(t *testing.T) {
	store := newTestStore(t)

	ref, w, err := store.Create("mp3")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".mp3"))

	_, err = w.Write([]byte("audio-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.True(t, store.Exists(ref))

	r, err := store.Open(ref)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
}

func TestLocalStore_RemoveIdempotent(t *testing.T) {
	store := newTestStore(t)

	ref, w, err := store.Create(".mp3")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, store.Remove(ref))
	assert.False(t, store.Exists(ref))
	require.NoError(t, store.Remove(ref))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, ref := range []string{"", "../etc/passwd", "a/b.mp3", ".hidden"} {
		_, err := store.Path(ref)
		assert.Error(t, err, "ref %q", ref)
		assert.False(t, store.Exists(ref))
	}
}

func TestLocalStore_UniqueRefs(t *testing.T) {
	store := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		ref, w, err := store.Create("mp3")
		require.NoError(t, err)
		require.NoError(t, w.Close())
		assert.False(t, seen[ref])
		seen[ref] = true
	}
}
