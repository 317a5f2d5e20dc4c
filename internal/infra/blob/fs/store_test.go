package fs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"strata/internal/blob/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	assert.Equal(t, core.DriverFilesystem, store.Driver())

	info, err := store.Put(ctx, "alpha/test.txt", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "text/plain", Metadata: map[string]string{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, "alpha/test.txt", info.Key)
	assert.Equal(t, int64(5), info.Size)

	_, err = store.Put(ctx, "alpha/test.txt", bytes.NewReader([]byte("x")), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	head, err := store.Head(ctx, "alpha/test.txt")
	require.NoError(t, err)
	assert.Equal(t, "v", head.Metadata["k"])
	assert.Equal(t, "text/plain", head.ContentType)

	got, rc, err := store.Get(ctx, "alpha/test.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, head.ETag, got.ETag)

	_, err = store.Put(ctx, "beta/other.txt", bytes.NewReader(nil), core.PutOptions{})
	require.NoError(t, err)
	list, err := store.List(ctx, "alpha/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alpha/test.txt", list[0].Key)
	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ok, err := store.Delete(ctx, "alpha/test.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Delete(ctx, "alpha/test.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = store.Head(ctx, "alpha/test.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = store.Get(ctx, "alpha/test.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "  ", "../escape", "/abs", "a/../../b", "x.meta"} {
		_, err := store.Put(ctx, key, bytes.NewReader(nil), core.PutOptions{})
		assert.Error(t, err, "key %q", key)
	}
}

func TestStoreCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	_, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), core.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.root, "k.meta"), []byte("{"), 0o644))
	_, err = store.Head(ctx, "k")
	assert.ErrorContains(t, err, "decode")
	_, err = store.List(ctx, "")
	assert.Error(t, err)
}

func TestNewDefaultsRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	store, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "./blobdata", store.root)
	_, err = os.Stat("blobdata")
	assert.NoError(t, err)
}
