package blob

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strata/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	fsStore, err := Open(ctx, config.BlobConfig{Driver: "fs", FSRoot: filepath.Join(t.TempDir(), "blobs")})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, fsStore.Driver())

	mem, err := Open(ctx, config.BlobConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, mem.Driver())

	s3Store, err := Open(ctx, config.BlobConfig{Driver: "s3", S3Bucket: "states", S3Region: "eu-west-1", S3Endpoint: "http://localhost:9000", PathStyle: true})
	require.NoError(t, err)
	assert.Equal(t, DriverS3, s3Store.Driver())

	_, err = Open(ctx, config.BlobConfig{Driver: "s3"})
	assert.ErrorContains(t, err, "bucket required")

	_, err = Open(ctx, config.BlobConfig{Driver: "ftp"})
	assert.ErrorContains(t, err, "unknown blob driver ftp")
}

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Chdir(t.TempDir())
	store, err := Open(context.Background(), config.BlobConfig{})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, store.Driver())
}

func TestStoresShareWriteOnceContract(t *testing.T) {
	ctx := context.Background()
	stores := map[string]Store{
		"memory": NewMemory(),
		"s3":     NewMockS3ForTests(),
	}
	fsStore, err := Open(ctx, config.BlobConfig{Driver: "fs", FSRoot: t.TempDir()})
	require.NoError(t, err)
	stores["fs"] = fsStore

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := store.Put(ctx, "state/tx-1", bytes.NewReader([]byte("one")), PutOptions{ContentType: "application/json"})
			require.NoError(t, err)
			_, err = store.Put(ctx, "state/tx-1", bytes.NewReader([]byte("again")), PutOptions{})
			assert.ErrorIs(t, err, ErrExists)

			info, rc, err := store.Get(ctx, "state/tx-1")
			require.NoError(t, err)
			body, err := io.ReadAll(rc)
			require.NoError(t, rc.Close())
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), body)
			assert.Equal(t, int64(3), info.Size)

			_, err = store.Head(ctx, "state/tx-2")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
