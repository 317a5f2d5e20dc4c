package core

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"strata/internal/blob"
	"strata/internal/codec"
	"strata/internal/config"
	"strata/internal/infra/persistence/blobstate"
	"strata/internal/infra/persistence/memory"
	"strata/internal/infra/persistence/postgres"
	"strata/internal/infra/persistence/redis"
	"strata/internal/infra/persistence/sqlite"
	"strata/pkg/domain"
)

// PersistentStore is a domain.Store that can export and import its state and
// must be closed when done.
type PersistentStore interface {
	domain.Store
	Export() memory.Snapshot
	Import(ctx context.Context, snap memory.Snapshot) error
	Close() error
}

var (
	_ PersistentStore = (*memory.Store)(nil)
	_ PersistentStore = (*sqlite.Store)(nil)
	_ PersistentStore = (*postgres.Store)(nil)
	_ PersistentStore = (*redis.Store)(nil)
	_ PersistentStore = (*blobstate.Store)(nil)
)

// OpenPersistentStore builds the engine cfg.Storage.Driver selects. opts are
// passed to the memory store every engine is built on; the logger is attached
// to it as well.
func OpenPersistentStore(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts ...memory.Option) (PersistentStore, error) {
	c, err := codec.New(cfg.Codec)
	if err != nil {
		return nil, err
	}
	opts = append([]memory.Option{memory.WithLogger(logger)}, opts...)
	st := cfg.Storage
	switch st.Driver {
	case config.StorageMemory:
		return memory.NewStore(opts...), nil
	case config.StorageSQLite:
		return sqlite.NewStore(ctx, st.SQLitePath, c, opts...)
	case config.StoragePostgres:
		return postgres.NewStore(ctx, st.PostgresDSN, c, opts...)
	case config.StorageRedis:
		return redis.NewStore(ctx, &goredis.Options{Addr: st.RedisAddr}, st.RedisPrefix, c, opts...)
	case config.StorageBlob:
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, err
		}
		return blobstate.NewStore(ctx, blobstate.Config{
			Blobs:  blobs,
			Prefix: st.BlobPrefix,
			Retain: st.BlobRetain,
			Codec:  c,
			Logger: logger,
		}, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", st.Driver)
	}
}
