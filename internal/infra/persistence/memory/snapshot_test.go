package memory

import (
	"context"
	"encoding/json"
	"testing"

	"strata/pkg/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	st, ws, _, c2 := tree(t)
	_, st, err := st.Delete(c2, false)
	require.NoError(t, err)

	snap := ExportState(st)
	assert.Equal(t, st.Transaction(), snap.Transaction)
	assert.Len(t, snap.Resources, 3)
	assert.Len(t, snap.Links, 4)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored, err := ImportState(decoded, nil)
	require.NoError(t, err)
	assert.Equal(t, st.Transaction(), restored.Transaction())
	for _, rec := range snap.Resources {
		want, _ := st.Record(rec.ID)
		got, ok := restored.Record(rec.ID)
		require.True(t, ok)
		assert.True(t, got.Equal(want))
		assert.Equal(t, st.LinksFrom(rec.ID), restored.LinksFrom(rec.ID))
		assert.Equal(t, st.LinksTo(rec.ID), restored.LinksTo(rec.ID))
	}

	wsNow, _ := restored.Find(ws.ID())
	_, next, err := restored.CreateChild(RandomIDs(), domain.DefaultCatalog(), wsNow, domain.TypeCollection)
	require.NoError(t, err, "restored state accepts further transitions")
	assert.Equal(t, st.Transaction().Next(), next.Transaction())
}

func TestImportRejectsInconsistentSnapshots(t *testing.T) {
	st, _, _, _ := tree(t)
	good := ExportState(st)

	clone := func() Snapshot {
		raw, err := json.Marshal(good)
		require.NoError(t, err)
		var s Snapshot
		require.NoError(t, json.Unmarshal(raw, &s))
		return s
	}

	cases := map[string]func(*Snapshot){
		"unknown type": func(s *Snapshot) { s.Resources[0].Type = "object" },
		"future version": func(s *Snapshot) {
			s.Resources[0].Version.Transaction = s.Transaction + 5
		},
		"duplicate resource": func(s *Snapshot) { s.Resources = append(s.Resources, s.Resources[0]) },
		"dangling link": func(s *Snapshot) {
			s.Links[0].Target.ID = uuid.New()
		},
		"stale live endpoint": func(s *Snapshot) {
			s.Links[0].Source.Version.Sequence += 7
		},
		"unpaired link": func(s *Snapshot) { s.Links = s.Links[1:] },
		"bad tombstone": func(s *Snapshot) {
			v := VersionRecord{Transaction: 1, Sequence: 9}
			s.Resources[0].DeletedAt = &v
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := clone()
			mutate(&s)
			_, err := ImportState(s, domain.DefaultCatalog())
			assert.Error(t, err)
		})
	}

	_, err := ImportState(clone(), domain.DefaultCatalog())
	assert.NoError(t, err)
}

func TestStoreImportRunsHooks(t *testing.T) {
	ctx := context.Background()
	source := NewStore(WithIDSource(seqIDs()))
	ws, err := source.CreateWorkspace(ctx)
	require.NoError(t, err)
	_, err = source.CreateCollection(ctx, ws)
	require.NoError(t, err)

	var hooked domain.Transaction
	target := NewStore(WithCommitHook(func(_ context.Context, _, next State) error {
		hooked = next.Transaction()
		return nil
	}))
	require.NoError(t, target.Import(ctx, source.Export()))
	assert.Equal(t, domain.Transaction(2), hooked)
	assert.Equal(t, source.Export(), target.Export())

	bad := source.Export()
	bad.Resources[0].Type = "object"
	assert.Error(t, target.Import(ctx, bad))
	assert.Equal(t, domain.Transaction(2), target.Transaction())
}

func TestWithStateSeedsStore(t *testing.T) {
	st, ws, _, _ := tree(t)
	store := NewStore(WithState(st))
	assert.Equal(t, st.Transaction(), store.Transaction())
	_, ok := store.FindWorkspace(ws.ID())
	assert.True(t, ok)
}
