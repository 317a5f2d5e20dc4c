package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strata/internal/infra/persistence/memory"
	"strata/pkg/domain"
)

func TestSingleDeliversExactlyOneOutcome(t *testing.T) {
	ctx := context.Background()

	v, err := Go(func() (int, error) { return 7, nil }).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	boom := errors.New("boom")
	s := Go(func() (int, error) { return 7, boom })
	r := <-s.C()
	assert.ErrorIs(t, r.Err, boom)
	assert.Zero(t, r.Value, "an error carries no value")
	assert.False(t, r.Found)
}

func TestAwaitHonoursCancellation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Go(func() (int, error) { <-block; return 1, nil }).Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, _, err = GoMaybe(func() (int, bool, error) { <-block; return 1, true, nil }).Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = Stream(context.Background(), func() ([]int, error) { <-block; return nil, nil }).Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaybe(t *testing.T) {
	ctx := context.Background()

	v, ok, err := GoMaybe(func() (string, bool, error) { return "x", true, nil }).Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	v, ok, err = GoMaybe(func() (string, bool, error) { return "ignored", false, nil }).Await(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestMultiStreamsThenEnds(t *testing.T) {
	ctx := context.Background()

	m := Stream(ctx, func() ([]int, error) { return []int{1, 2, 3}, nil })
	var got []int
	for v := range m.Values() {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.NoError(t, <-m.Errors())

	empty, err := Stream(ctx, func() ([]int, error) { return nil, nil }).Collect(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	boom := errors.New("boom")
	values, err := Stream(ctx, func() ([]int, error) { return []int{1}, boom }).Collect(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, values)

	failed := Stream(ctx, func() ([]int, error) { return []int{1}, boom })
	_, open := <-failed.Values()
	assert.False(t, open, "a failed stream delivers no values")
	assert.ErrorIs(t, <-failed.Errors(), boom)
}

func TestCollectKeepsValuesReceivedBeforeCancellation(t *testing.T) {
	values := make(chan int, 2)
	values <- 1
	values <- 2
	m := Multi[int]{values: values, errs: make(chan error, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	got, err := m.Collect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []int{1, 2}, got)
}

func TestStreamStopsOnProducerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := Stream(ctx, func() ([]int, error) { return []int{1, 2, 3}, nil })
	require.Equal(t, 1, <-m.Values())
	cancel()

	assert.ErrorIs(t, <-m.Errors(), context.Canceled)
	_, open := <-m.Values()
	assert.False(t, open)
}

func TestStoreAdapterKeepsErrorTaxonomy(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.NewStore())

	ws, err := store.CreateWorkspace(ctx).Await(ctx)
	require.NoError(t, err)
	col, err := store.CreateCollection(ctx, ws).Await(ctx)
	require.NoError(t, err)

	_, err = store.DeleteWorkspace(ctx, ws, true).Await(ctx)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	var conflict domain.VersionConflictError
	assert.ErrorAs(t, err, &conflict)

	tx, err := store.Transaction().Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Transaction(2), tx)

	current, ok, err := store.FindWorkspace(ws.ID()).Await(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	children, err := store.ChildCollections(ctx, current).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Collection{col}, children)

	links, err := store.LinksFrom(ctx, ws.ID()).Collect(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 1)
	links, err = store.LinksTo(ctx, ws.ID()).Collect(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	parent, err := store.Parent(col).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, ws.ID(), parent.Snapshot().ID())

	_, err = store.DeleteCollection(ctx, col, false).Await(ctx)
	require.NoError(t, err)
	_, err = store.Parent(col).Await(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, ok, err = store.FindCollection(col.ID()).Await(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	tomb, ok, err := store.FindTombstone(col.ID()).Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, tomb.IsDeleted())
	_, ok, err = store.Find(uuid.New()).Await(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
