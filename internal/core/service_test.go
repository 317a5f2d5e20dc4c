package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strata/internal/infra/persistence/memory"
	"strata/pkg/domain"
)

type recordingMetrics struct {
	ops []string
	ok  []bool
}

func (r *recordingMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	r.ops = append(r.ops, op)
	r.ok = append(r.ok, success)
}

func TestServiceInstrumentsWrites(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	metrics := &recordingMetrics{}
	tracer := NewJSONTracer(nil)
	svc := NewInMemoryService(
		WithLogger(zerolog.New(&logs).Level(zerolog.DebugLevel)),
		WithMetrics(metrics),
		WithTracer(tracer),
	)

	ws, err := svc.CreateWorkspace(ctx)
	require.NoError(t, err)
	col, err := svc.CreateCollection(ctx, ws)
	require.NoError(t, err)
	_, err = svc.DeleteWorkspace(ctx, ws, false)
	require.ErrorIs(t, err, domain.ErrVersionConflict, "ws was re-versioned by the child insert")

	assert.Equal(t, []string{"create_workspace", "create_collection", "delete_workspace"}, metrics.ops)
	assert.Equal(t, []bool{true, true, false}, metrics.ok)

	entries := tracer.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "error", entries[2].Status)
	assert.Equal(t, "version_conflict", entries[2].ErrorKind)

	assert.Contains(t, logs.String(), `"message":"operation committed"`)
	assert.Contains(t, logs.String(), col.ID().String())
	assert.Contains(t, logs.String(), `"kind":"version_conflict"`)
}

func TestServiceIDHelpers(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()

	ws, err := svc.CreateWorkspace(ctx)
	require.NoError(t, err)
	col, err := svc.CreateCollectionUnder(ctx, ws.ID())
	require.NoError(t, err)
	nested, err := svc.CreateCollectionUnder(ctx, col.ID())
	require.NoError(t, err)

	_, err = svc.DeleteByID(ctx, ws.ID(), false)
	assert.ErrorIs(t, err, domain.ErrHasChildren)

	deleted, err := svc.DeleteByID(ctx, ws.ID(), true)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())
	_, ok := svc.FindTombstoneOfType(nested.ID(), domain.TypeCollection)
	assert.True(t, ok)

	again, err := svc.DeleteByID(ctx, ws.ID(), true)
	require.NoError(t, err)
	assert.True(t, again.Equal(deleted))

	_, err = svc.DeleteByID(ctx, uuid.New(), false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.CreateCollectionUnder(ctx, ws.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServiceDelegatesReads(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	ws, err := svc.CreateWorkspace(ctx)
	require.NoError(t, err)
	col, err := svc.CreateCollection(ctx, ws)
	require.NoError(t, err)

	assert.Equal(t, domain.Transaction(2), svc.Transaction())
	current, ok := svc.FindWorkspace(ws.ID())
	require.True(t, ok)
	assert.Equal(t, []domain.Collection{col}, svc.ChildCollections(current))
	parent, err := svc.Parent(col)
	require.NoError(t, err)
	assert.Equal(t, current.ID(), parent.Snapshot().ID())
	assert.Len(t, svc.LinksFrom(ws.ID()), 1)
	assert.Len(t, svc.LinksTo(ws.ID()), 1)
	_, ok = svc.FindCollection(col.ID())
	assert.True(t, ok)
	_, ok = svc.FindOfType(col.ID(), domain.TypeWorkspace)
	assert.False(t, ok)
	_, ok = svc.FindTombstone(col.ID())
	assert.False(t, ok)
	_, ok = svc.Find(col.ID())
	assert.True(t, ok)
	require.NoError(t, svc.Close())
}

func TestServiceExportImport(t *testing.T) {
	ctx := context.Background()
	source := NewInMemoryService()
	ws, err := source.CreateWorkspace(ctx)
	require.NoError(t, err)
	_, err = source.CreateCollection(ctx, ws)
	require.NoError(t, err)

	metrics := &recordingMetrics{}
	target := NewInMemoryService(WithMetrics(metrics))
	require.NoError(t, target.Import(ctx, source.Export()))
	assert.Equal(t, source.Export(), target.Export())

	bad := source.Export()
	bad.Transaction = 0
	assert.Error(t, target.Import(ctx, bad))
	assert.Equal(t, []bool{true, false}, metrics.ok)
}

func TestServiceCommitHookFailureIsReported(t *testing.T) {
	boom := errors.New("disk full")
	store := memory.NewStore(memory.WithCommitHook(func(context.Context, memory.State, memory.State) error { return boom }))
	tracer := NewJSONTracer(nil)
	svc := NewService(store, WithTracer(tracer))

	_, err := svc.CreateWorkspace(context.Background())
	require.ErrorIs(t, err, boom)
	require.Len(t, tracer.Entries(), 1)
	assert.Equal(t, "internal", tracer.Entries()[0].ErrorKind)
	assert.Equal(t, domain.Transaction(0), svc.Transaction())
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "create_workspace")
	span.End(nil)

	var entry JSONTraceEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "create_workspace", entry.Operation)
	assert.Equal(t, "success", entry.Status)
	assert.Empty(t, entry.Error)
}
