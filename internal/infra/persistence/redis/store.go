// Package redis provides a Redis-backed strata store. Each commit writes the
// bucketed snapshot into one hash with a MULTI/EXEC pipeline.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"strata/internal/codec"
	"strata/internal/infra/persistence/buckets"
	"strata/internal/infra/persistence/memory"
	"strata/pkg/domain"
)

var _ domain.Store = (*Store)(nil)

const defaultPrefix = "strata"

// Store persists the memory store's state to a Redis hash.
type Store struct {
	*memory.Store
	client *redis.Client
	codec  codec.Codec
	key    string
}

// NewStore connects with opts, then restores the snapshot held under
// <prefix>:state if there is one.
func NewStore(ctx context.Context, opts *redis.Options, prefix string, c codec.Codec, memOpts ...memory.Option) (*Store, error) {
	client := redis.NewClient(opts)
	s, err := newWithClient(ctx, client, prefix, c, memOpts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func newWithClient(ctx context.Context, client *redis.Client, prefix string, c codec.Codec, memOpts ...memory.Option) (*Store, error) {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if c == nil {
		c = codec.JSON{}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s := &Store{client: client, codec: c, key: prefix + ":state"}
	s.Store = memory.NewStore(append(memOpts, memory.WithCommitHook(s.persist))...)

	fields, err := client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	payloads := make(map[string][]byte, len(fields))
	for name, v := range fields {
		payloads[name] = []byte(v)
	}
	snap, found, err := buckets.Decode(c, payloads)
	if err != nil {
		return nil, err
	}
	if found {
		if err := s.Store.Load(snap); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) persist(ctx context.Context, _, next memory.State) error {
	payloads, err := buckets.Encode(s.codec, memory.ExportState(next))
	if err != nil {
		return err
	}
	values := make([]any, 0, 2*len(payloads))
	for _, name := range buckets.Names {
		values = append(values, name, payloads[name])
	}
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, values...)
		return nil
	}); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// Key returns the hash the state is stored under.
func (s *Store) Key() string { return s.key }

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }
