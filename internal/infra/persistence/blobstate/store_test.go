package blobstate

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strata/internal/blob"
	"strata/internal/codec"
	"strata/pkg/domain"
)

func newStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), cfg)
	require.NoError(t, err)
	return store
}

func TestStoreWritesOneBlobPerTransaction(t *testing.T) {
	for name, blobs := range map[string]blob.Store{
		"memory": blob.NewMemory(),
		"s3":     blob.NewMockS3ForTests(),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t, Config{Blobs: blobs, Prefix: "tenants/a/"})
			ws, err := store.CreateWorkspace(ctx)
			require.NoError(t, err)
			_, err = store.CreateCollection(ctx, ws)
			require.NoError(t, err)

			infos, err := blobs.List(ctx, "tenants/a/")
			require.NoError(t, err)
			require.Len(t, infos, 2)
			assert.Equal(t, store.Key(1), infos[0].Key)
			assert.Equal(t, "tenants/a/gen-00000000000000000002", infos[1].Key)

			head, err := blobs.Head(ctx, store.Key(2))
			require.NoError(t, err)
			assert.Equal(t, "application/json", head.ContentType)
			assert.Equal(t, "json", head.Metadata["codec"])
			assert.Equal(t, "2", head.Metadata["transaction"])

			want := store.Export()
			reloaded := newStore(t, Config{Blobs: blobs, Prefix: "tenants/a"})
			assert.Equal(t, want, reloaded.Export())
		})
	}
}

func TestStoreReloadWithCBOR(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	cbor, err := codec.NewCBOR()
	require.NoError(t, err)

	store := newStore(t, Config{Blobs: blobs, Codec: cbor})
	ws, err := store.CreateWorkspace(ctx)
	require.NoError(t, err)
	_, err = store.DeleteWorkspace(ctx, ws, false)
	require.NoError(t, err)

	reloaded := newStore(t, Config{Blobs: blobs, Codec: cbor})
	assert.Equal(t, domain.Transaction(2), reloaded.Transaction())
	_, ok := reloaded.FindTombstoneOfType(ws.ID(), domain.TypeWorkspace)
	assert.True(t, ok)

	_, err = NewStore(ctx, Config{Blobs: blobs})
	assert.ErrorContains(t, err, "written with codec")
}

func TestConcurrentWritersCollide(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	first := newStore(t, Config{Blobs: blobs})
	second := newStore(t, Config{Blobs: blobs})

	_, err := first.CreateWorkspace(ctx)
	require.NoError(t, err)
	_, err = second.CreateWorkspace(ctx)
	assert.ErrorIs(t, err, ErrConcurrentWriter)
	assert.Equal(t, domain.Transaction(0), second.Transaction())
}

func TestRetentionPrunesOldestBlobs(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	store := newStore(t, Config{Blobs: blobs, Retain: 2, Logger: zerolog.Nop()})
	for range 4 {
		_, err := store.CreateWorkspace(ctx)
		require.NoError(t, err)
	}
	infos, err := blobs.List(ctx, defaultPrefix+"/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, store.Key(3), infos[0].Key)
	assert.Equal(t, store.Key(4), infos[1].Key)

	reloaded := newStore(t, Config{Blobs: blobs})
	assert.Equal(t, domain.Transaction(4), reloaded.Transaction())
	assert.Equal(t, 4, reloaded.State().Len())
	assert.Equal(t, uint64(4), reloaded.Generation())
}

func TestImportOfEarlierSnapshotSurvivesReload(t *testing.T) {
	for name, retain := range map[string]int{"keep all": 0, "retain one": 1} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			blobs := blob.NewMemory()
			store := newStore(t, Config{Blobs: blobs, Retain: retain})

			ws, err := store.CreateWorkspace(ctx)
			require.NoError(t, err)
			earlier := store.Export()
			for range 2 {
				_, err = store.CreateWorkspace(ctx)
				require.NoError(t, err)
			}
			require.Equal(t, domain.Transaction(3), store.Transaction())

			require.NoError(t, store.Import(ctx, earlier))
			assert.Equal(t, domain.Transaction(1), store.Transaction())
			assert.Equal(t, uint64(4), store.Generation())

			added, err := store.CreateWorkspace(ctx)
			require.NoError(t, err)
			assert.Equal(t, domain.Transaction(2), store.Transaction())
			assert.Equal(t, uint64(5), store.Generation())

			reloaded := newStore(t, Config{Blobs: blobs, Retain: retain})
			assert.Equal(t, store.Export(), reloaded.Export())
			assert.Equal(t, 2, reloaded.State().Len())
			_, ok := reloaded.FindWorkspace(ws.ID())
			assert.True(t, ok)
			_, ok = reloaded.FindWorkspace(added.ID())
			assert.True(t, ok)

			_, err = reloaded.CreateWorkspace(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(6), reloaded.Generation())

			infos, err := blobs.List(ctx, defaultPrefix+"/")
			require.NoError(t, err)
			if retain == 1 {
				require.Len(t, infos, 1)
				assert.Equal(t, reloaded.Key(6), infos[0].Key)
			} else {
				assert.Len(t, infos, 6)
			}
		})
	}
}

func TestUnrecognisedKeysAreIgnored(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	store := newStore(t, Config{Blobs: blobs})
	_, err := store.CreateWorkspace(ctx)
	require.NoError(t, err)
	_, err = blobs.Put(ctx, defaultPrefix+"/gen-latest", bytes.NewReader([]byte("{not json")), blob.PutOptions{})
	require.NoError(t, err)

	reloaded := newStore(t, Config{Blobs: blobs})
	assert.Equal(t, domain.Transaction(1), reloaded.Transaction())
	assert.Equal(t, uint64(1), reloaded.Generation())
}

func TestNewStoreErrors(t *testing.T) {
	ctx := context.Background()
	_, err := NewStore(ctx, Config{})
	assert.ErrorContains(t, err, "blob store required")

	_, err = NewStore(ctx, Config{Blobs: blob.NewMemory(), Retain: -1})
	assert.ErrorContains(t, err, "retain must be")

	blobs := blob.NewMemory()
	_, err = blobs.Put(ctx, defaultPrefix+"/gen-00000000000000000001", bytes.NewReader([]byte("{not json")), blob.PutOptions{})
	require.NoError(t, err)
	_, err = NewStore(ctx, Config{Blobs: blobs})
	assert.ErrorContains(t, err, "decode")
}
