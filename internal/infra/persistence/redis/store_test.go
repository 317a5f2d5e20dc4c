package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strata/internal/codec"
	"strata/pkg/domain"
)

func open(t *testing.T, mr *miniredis.Miniredis, c codec.Codec) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), &redis.Options{Addr: mr.Addr()}, "test", c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorePersistsToHash(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := open(t, mr, nil)
	assert.Equal(t, "test:state", store.Key())

	ws, err := store.CreateWorkspace(ctx)
	require.NoError(t, err)
	_, err = store.CreateCollection(ctx, ws)
	require.NoError(t, err)

	keys, err := mr.HKeys("test:state")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"codec", "transaction", "resources", "links"}, keys)
	assert.Equal(t, "json", mr.HGet("test:state", "codec"))
	assert.Equal(t, "2", mr.HGet("test:state", "transaction"))
}

func TestStoreReloadsAcrossClients(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cbor, err := codec.NewCBOR()
	require.NoError(t, err)

	store := open(t, mr, cbor)
	ws, err := store.CreateWorkspace(ctx)
	require.NoError(t, err)
	col, err := store.CreateCollection(ctx, ws)
	require.NoError(t, err)
	current, ok := store.FindWorkspace(ws.ID())
	require.True(t, ok)
	_, err = store.DeleteWorkspace(ctx, current, true)
	require.NoError(t, err)
	want := store.Export()

	reloaded := open(t, mr, cbor)
	assert.Equal(t, want, reloaded.Export())
	assert.Equal(t, domain.Transaction(3), reloaded.Transaction())
	_, ok = reloaded.FindTombstoneOfType(col.ID(), domain.TypeCollection)
	assert.True(t, ok)
}

func TestStoreWriteFailureAbortsCommit(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := open(t, mr, nil)
	ws, err := store.CreateWorkspace(ctx)
	require.NoError(t, err)

	mr.SetError("READONLY replica")
	_, err = store.CreateCollection(ctx, ws)
	require.Error(t, err)
	mr.SetError("")
	assert.Equal(t, domain.Transaction(1), store.Transaction())
	assert.Equal(t, "1", mr.HGet("test:state", "transaction"))
}

func TestNewStoreErrors(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	require.NoError(t, mr.Set("test:state", "not a hash"))
	_, err := NewStore(ctx, &redis.Options{Addr: mr.Addr()}, "test", nil)
	assert.ErrorContains(t, err, "read test:state")

	mr.FlushAll()
	mr.HSet("test:state", "codec", "cbor")
	_, err = NewStore(ctx, &redis.Options{Addr: mr.Addr()}, "test", nil)
	assert.ErrorContains(t, err, "written with codec")

	mr.FlushAll()
	mr.HSet("test:state", "transaction", "1", "resources", "[]", "links", "[]")
	_, err = NewStore(ctx, &redis.Options{Addr: mr.Addr()}, "test", nil)
	assert.ErrorContains(t, err, "bucket codec missing")

	addr := mr.Addr()
	mr.Close()
	_, err = NewStore(ctx, &redis.Options{Addr: addr, MaxRetries: -1}, "", nil)
	assert.ErrorContains(t, err, "ping redis")
}
