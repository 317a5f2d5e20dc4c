package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"strata/pkg/domain"

	"github.com/google/uuid"
)

// Snapshot is the serialisable form of a State, used by the persistent
// engines and the export command.
type Snapshot struct {
	Transaction domain.Transaction `json:"transaction"`
	Resources   []ResourceRecord   `json:"resources"`
	Links       []LinkRecord       `json:"links"`
}

// VersionRecord is the serialisable form of domain.Version.
type VersionRecord struct {
	Transaction domain.Transaction `json:"tx"`
	Sequence    uint64             `json:"seq"`
}

// ResourceRecord is the serialisable form of domain.Resource.
type ResourceRecord struct {
	ID        uuid.UUID           `json:"id"`
	Type      domain.ResourceType `json:"type"`
	Version   VersionRecord       `json:"version"`
	DeletedAt *VersionRecord      `json:"deleted_at,omitempty"`
}

// LinkRecord is the serialisable form of domain.Link.
type LinkRecord struct {
	Source    ResourceRecord      `json:"source"`
	Type      domain.LinkType     `json:"type"`
	Target    ResourceRecord      `json:"target"`
	CreatedAt domain.Transaction  `json:"created_at"`
	DeletedAt *domain.Transaction `json:"deleted_at,omitempty"`
}

func versionRecord(v domain.Version) VersionRecord {
	return VersionRecord{Transaction: v.Transaction(), Sequence: v.Sequence()}
}

func (v VersionRecord) version() domain.Version {
	return domain.NewVersion(v.Transaction, v.Sequence)
}

// RecordOf converts a resource snapshot to its record.
func RecordOf(r domain.Resource) ResourceRecord {
	rec := ResourceRecord{ID: r.ID(), Type: r.Type(), Version: versionRecord(r.CurrentVersion())}
	if at, deleted := r.DeletedAt(); deleted {
		v := versionRecord(at)
		rec.DeletedAt = &v
	}
	return rec
}

// Resource rebuilds the snapshot the record describes.
func (r ResourceRecord) Resource() domain.Resource {
	var deletedAt *domain.Version
	if r.DeletedAt != nil {
		v := r.DeletedAt.version()
		deletedAt = &v
	}
	return domain.RestoreResource(r.ID, r.Type, r.Version.version(), deletedAt)
}

// LinkRecordOf converts a link to its record.
func LinkRecordOf(l domain.Link) LinkRecord {
	rec := LinkRecord{
		Source:    RecordOf(l.Source()),
		Type:      l.Type(),
		Target:    RecordOf(l.Target()),
		CreatedAt: l.CreatedAt(),
	}
	if at, dead := l.DeletedAt(); dead {
		rec.DeletedAt = &at
	}
	return rec
}

// Link rebuilds the link the record describes.
func (l LinkRecord) Link() domain.Link {
	return domain.RestoreLink(l.Source.Resource(), l.Type, l.Target.Resource(), l.CreatedAt, l.DeletedAt)
}

// ExportState converts st into a Snapshot with resources ordered by id and
// links in index order.
func ExportState(st State) Snapshot {
	snap := Snapshot{
		Transaction: st.Transaction(),
		Resources:   make([]ResourceRecord, 0, st.Len()),
	}
	itr := st.resources.Iterator()
	for !itr.Done() {
		_, r, _ := itr.Next()
		snap.Resources = append(snap.Resources, RecordOf(r))
	}
	slices.SortFunc(snap.Resources, func(a, b ResourceRecord) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	for _, rec := range snap.Resources {
		for _, l := range st.LinksFrom(rec.ID) {
			snap.Links = append(snap.Links, LinkRecordOf(l))
		}
	}
	return snap
}

// ImportState rebuilds a State from snap, rejecting snapshots that could not
// have been produced by the transitions: unknown kinds, versions from the
// future, links to unknown resources, live links that disagree with the
// current records, or unpaired live links.
func ImportState(snap Snapshot, catalog *domain.Catalog) (State, error) {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	st := NewState()
	st.tx = snap.Transaction

	var errs []error
	for _, rec := range snap.Resources {
		r := rec.Resource()
		switch {
		case rec.ID == uuid.Nil:
			errs = append(errs, errors.New("resource with nil id"))
			continue
		case !catalog.Has(rec.Type):
			errs = append(errs, fmt.Errorf("resource %s: unknown type %q", rec.ID, rec.Type))
			continue
		case rec.Version.Transaction.After(snap.Transaction):
			errs = append(errs, fmt.Errorf("resource %s: version %s is after %s", rec.ID, r.CurrentVersion(), snap.Transaction))
			continue
		case rec.DeletedAt != nil && *rec.DeletedAt != rec.Version:
			errs = append(errs, fmt.Errorf("resource %s: tombstone version differs from current version", rec.ID))
			continue
		}
		if _, dup := st.resources.Get(rec.ID); dup {
			errs = append(errs, fmt.Errorf("resource %s: duplicate record", rec.ID))
			continue
		}
		st.resources = st.resources.Set(rec.ID, r)
	}

	parents := make(map[uuid.UUID]uuid.UUID)
	live := make(map[domain.LinkKey]bool)
	for _, rec := range snap.Links {
		l := rec.Link()
		if err := validateLink(st, catalog, l); err != nil {
			errs = append(errs, err)
			continue
		}
		key := l.Key()
		if set, ok := st.linksBySource.Get(key.Source); ok {
			if _, seen := set.Get(key); seen {
				errs = append(errs, fmt.Errorf("link %s: duplicate record", l))
				continue
			}
		}
		if l.IsLive() {
			live[key] = true
			if l.Type() == domain.LinkChildOf {
				if other, exists := parents[key.Source]; exists && other != key.Target {
					errs = append(errs, fmt.Errorf("resource %s: more than one live parent", key.Source))
					continue
				}
				parents[key.Source] = key.Target
			}
		}
		st.linksBySource = putLink(st.linksBySource, key.Source, l)
		st.linksByTarget = putLink(st.linksByTarget, key.Target, l)
	}
	for key := range live {
		mirror := domain.LinkKey{Source: key.Target, Target: key.Source, Type: key.Type.Mirror()}
		if !live[mirror] {
			errs = append(errs, fmt.Errorf("live %s link %s -> %s has no live mirror", key.Type, key.Source, key.Target))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return State{}, fmt.Errorf("import snapshot: %w", err)
	}
	return st, nil
}

func validateLink(st State, catalog *domain.Catalog, l domain.Link) error {
	if l.Type() != domain.LinkParentOf && l.Type() != domain.LinkChildOf {
		return fmt.Errorf("link %s: unknown link type %q", l, l.Type())
	}
	source, ok := st.resources.Get(l.Source().ID())
	if !ok {
		return fmt.Errorf("link %s: unknown source", l)
	}
	target, ok := st.resources.Get(l.Target().ID())
	if !ok {
		return fmt.Errorf("link %s: unknown target", l)
	}
	if l.CreatedAt().After(st.tx) {
		return fmt.Errorf("link %s: created after %s", l, st.tx)
	}
	if at, dead := l.DeletedAt(); dead {
		if at.After(st.tx) || l.CreatedAt().After(at) {
			return fmt.Errorf("link %s: deletion stamp out of range", l)
		}
		return nil
	}
	if !l.Source().Equal(source) || !l.Target().Equal(target) {
		return fmt.Errorf("link %s: live link does not carry the current endpoint records", l)
	}
	if source.IsDeleted() || target.IsDeleted() {
		return fmt.Errorf("link %s: live link touches a tombstone", l)
	}
	parent, child := source, target
	if l.Type() == domain.LinkChildOf {
		parent, child = target, source
	}
	if !catalog.Allows(parent.Type(), child.Type()) {
		return domain.StructuralViolationError{Parent: parent.Type(), Child: child.Type()}
	}
	return nil
}

// Export returns the serialisable form of the current state.
func (s *Store) Export() Snapshot { return ExportState(s.State()) }

// Import validates snap and replaces the store state with it. Commit hooks
// observe the replacement like any other commit.
func (s *Store) Import(ctx context.Context, snap Snapshot) error {
	st, err := ImportState(snap, s.catalog)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.State()
	for _, hook := range s.hooks {
		if err := hook(ctx, prev, st); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}
	s.current.Store(&st)
	s.logger.Info().Stringer("tx", st.Transaction()).Int("resources", st.Len()).Msg("state imported")
	return nil
}

// Load validates snap and installs it without running commit hooks. Engines
// use it to restore the state they persisted themselves.
func (s *Store) Load(snap Snapshot) error {
	st, err := ImportState(snap, s.catalog)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(&st)
	s.logger.Debug().Stringer("tx", st.Transaction()).Int("resources", st.Len()).Msg("state loaded")
	return nil
}
