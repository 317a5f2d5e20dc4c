// Package blobstate persists strata state as one write-once blob per commit.
// Blobs are keyed by a generation counter that grows with every commit,
// imports included, independently of the state's transaction. The highest
// generation under the prefix is the current state; two writers committing
// the same generation collide on the blob key and the loser's commit is
// rejected.
package blobstate

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"strata/internal/blob"
	"strata/internal/codec"
	"strata/internal/infra/persistence/memory"
	"strata/pkg/domain"
)

var _ domain.Store = (*Store)(nil)

const (
	defaultPrefix = "strata/state"
	keyPrefix     = "gen-"
	metaCodec     = "codec"
	metaTx        = "transaction"
)

// ErrConcurrentWriter reports that the blob for the next generation was
// already written by another store sharing the prefix.
var ErrConcurrentWriter = errors.New("blobstate: generation already committed by another writer")

// Config configures a blob-backed store.
type Config struct {
	Blobs  blob.Store
	Prefix string
	// Retain bounds the number of blobs kept under Prefix; 0 keeps all.
	Retain int
	Codec  codec.Codec
	Logger zerolog.Logger
}

// Store persists each committed state as a new blob.
type Store struct {
	*memory.Store
	blobs  blob.Store
	prefix string
	retain int
	codec  codec.Codec
	logger zerolog.Logger

	// gen is the generation of the newest blob. Only load and the commit
	// hook, which runs under the memory store's writer lock, advance it.
	gen atomic.Uint64
}

// NewStore restores the newest snapshot under cfg.Prefix, if any.
func NewStore(ctx context.Context, cfg Config, opts ...memory.Option) (*Store, error) {
	if cfg.Blobs == nil {
		return nil, errors.New("blobstate: blob store required")
	}
	if cfg.Retain < 0 {
		return nil, fmt.Errorf("blobstate: retain must be >= 0, got %d", cfg.Retain)
	}
	s := &Store{
		blobs:  cfg.Blobs,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
		retain: cfg.Retain,
		codec:  cfg.Codec,
		logger: cfg.Logger,
	}
	if s.prefix == "" {
		s.prefix = defaultPrefix
	}
	if s.codec == nil {
		s.codec = codec.JSON{}
	}
	s.Store = memory.NewStore(append(opts, memory.WithCommitHook(s.persist))...)
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Key returns the blob key for generation gen. Keys sort in generation order.
func (s *Store) Key(gen uint64) string {
	return fmt.Sprintf("%s/%s%020d", s.prefix, keyPrefix, gen)
}

// Generation returns the generation of the newest blob written or loaded.
func (s *Store) Generation() uint64 { return s.gen.Load() }

type generation struct {
	gen uint64
	key string
}

// generations lists the blobs under the prefix in ascending generation
// order. Keys that do not parse as a generation are ignored.
func (s *Store) generations(ctx context.Context) ([]generation, error) {
	infos, err := s.blobs.List(ctx, s.prefix+"/"+keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.prefix, err)
	}
	gens := make([]generation, 0, len(infos))
	for _, info := range infos {
		n, err := strconv.ParseUint(strings.TrimPrefix(info.Key, s.prefix+"/"+keyPrefix), 10, 64)
		if err != nil {
			s.logger.Warn().Str("key", info.Key).Msg("blob state ignores unrecognised key")
			continue
		}
		gens = append(gens, generation{gen: n, key: info.Key})
	}
	slices.SortFunc(gens, func(a, b generation) int { return cmp.Compare(a.gen, b.gen) })
	return gens, nil
}

func (s *Store) load(ctx context.Context) error {
	gens, err := s.generations(ctx)
	if err != nil || len(gens) == 0 {
		return err
	}
	latest := gens[len(gens)-1]
	info, rc, err := s.blobs.Get(ctx, latest.key)
	if err != nil {
		return fmt.Errorf("read %s: %w", latest.key, err)
	}
	defer func() { _ = rc.Close() }()
	if name, ok := info.Metadata[metaCodec]; ok && name != s.codec.Name() {
		return fmt.Errorf("state was written with codec %q, configured codec is %q", name, s.codec.Name())
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", latest.key, err)
	}
	var snap memory.Snapshot
	if err := s.codec.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode %s: %w", latest.key, err)
	}
	if err := s.Store.Load(snap); err != nil {
		return err
	}
	s.gen.Store(latest.gen)
	s.logger.Debug().Str("key", latest.key).Stringer("tx", snap.Transaction).Msg("blob state restored")
	return nil
}

func (s *Store) persist(ctx context.Context, _, next memory.State) error {
	data, err := s.codec.Marshal(memory.ExportState(next))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	gen := s.gen.Load() + 1
	key := s.Key(gen)
	_, err = s.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: s.codec.ContentType(),
		Metadata: map[string]string{
			metaCodec: s.codec.Name(),
			metaTx:    strconv.FormatUint(uint64(next.Transaction()), 10),
		},
	})
	if errors.Is(err, blob.ErrExists) {
		return fmt.Errorf("%w: %s", ErrConcurrentWriter, key)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.gen.Store(gen)
	s.prune(ctx)
	return nil
}

// prune drops the lowest generations beyond the retention bound. The new
// state is already durable, so failures are logged rather than returned.
func (s *Store) prune(ctx context.Context) {
	if s.retain == 0 {
		return
	}
	gens, err := s.generations(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("blob state prune skipped")
		return
	}
	for len(gens) > s.retain {
		if _, err := s.blobs.Delete(ctx, gens[0].key); err != nil {
			s.logger.Warn().Str("key", gens[0].key).Err(err).Msg("blob state prune failed")
			return
		}
		gens = gens[1:]
	}
}

// Close releases nothing; blob drivers hold no connections.
func (s *Store) Close() error { return nil }
