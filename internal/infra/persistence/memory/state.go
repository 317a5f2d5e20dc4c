package memory

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"

	"strata/pkg/domain"

	"github.com/benbjohnson/immutable"
	"github.com/google/uuid"
)

type linkSet = *immutable.Map[domain.LinkKey, domain.Link]

type linkIndex = *immutable.Map[uuid.UUID, linkSet]

// State is an immutable snapshot of the store: the current transaction, the
// latest record per resource id (live or tombstoned) and the links indexed by
// source and by target id. Transitions return a successor State that shares
// structure with its predecessor; a State is never modified after it is
// built, so any State a caller holds stays valid and inspectable.
type State struct {
	tx            domain.Transaction
	resources     *immutable.Map[uuid.UUID, domain.Resource]
	linksBySource linkIndex
	linksByTarget linkIndex
}

// NewState returns the empty state at the initial transaction.
func NewState() State {
	return State{
		tx:            domain.InitTransaction(),
		resources:     immutable.NewMap[uuid.UUID, domain.Resource](uuidHasher{}),
		linksBySource: immutable.NewMap[uuid.UUID, linkSet](uuidHasher{}),
		linksByTarget: immutable.NewMap[uuid.UUID, linkSet](uuidHasher{}),
	}
}

type uuidHasher struct{}

func (uuidHasher) Hash(id uuid.UUID) uint32 {
	return binary.BigEndian.Uint32(id[0:4]) ^ binary.BigEndian.Uint32(id[4:8]) ^
		binary.BigEndian.Uint32(id[8:12]) ^ binary.BigEndian.Uint32(id[12:16])
}

func (uuidHasher) Equal(a, b uuid.UUID) bool { return a == b }

type linkKeyHasher struct{}

func (linkKeyHasher) Hash(k domain.LinkKey) uint32 {
	h := uuidHasher{}.Hash(k.Source)*31 + uuidHasher{}.Hash(k.Target)
	if k.Type == domain.LinkChildOf {
		h = ^h
	}
	return h
}

func (linkKeyHasher) Equal(a, b domain.LinkKey) bool { return a == b }

// ------------------------------------------------------------
// Finders

// Transaction returns the transaction this state was committed at.
func (s State) Transaction() domain.Transaction { return s.tx }

// Len returns the number of resource records, tombstones included.
func (s State) Len() int { return s.resources.Len() }

// Record returns the latest record for id whether live or deleted.
func (s State) Record(id uuid.UUID) (domain.Resource, bool) {
	return s.resources.Get(id)
}

// Find returns the live record for id.
func (s State) Find(id uuid.UUID) (domain.Resource, bool) {
	r, ok := s.resources.Get(id)
	if !ok || r.IsDeleted() {
		return domain.Resource{}, false
	}
	return r, true
}

// FindTombstone returns the record for id only if it is deleted.
func (s State) FindTombstone(id uuid.UUID) (domain.Resource, bool) {
	r, ok := s.resources.Get(id)
	if !ok || r.IsLive() {
		return domain.Resource{}, false
	}
	return r, true
}

// FindChildrenOfType returns the current records reachable from id over live
// PARENT_OF links whose kind is t, in link creation order.
func (s State) FindChildrenOfType(id uuid.UUID, t domain.ResourceType) []domain.Resource {
	var out []domain.Resource
	for _, l := range s.liveLinks(s.linksBySource, id, domain.LinkParentOf) {
		child, ok := s.Find(l.Target().ID())
		if ok && child.HasType(t) {
			out = append(out, child)
		}
	}
	return out
}

// FindParent returns the current record at the far end of the live CHILD_OF
// link from id. Absence means id is a root or unknown.
func (s State) FindParent(id uuid.UUID) (domain.Resource, bool) {
	for _, l := range s.liveLinks(s.linksBySource, id, domain.LinkChildOf) {
		return s.Find(l.Target().ID())
	}
	return domain.Resource{}, false
}

// LinksFrom returns every link, live or dead, with id as the source.
func (s State) LinksFrom(id uuid.UUID) []domain.Link { return s.links(s.linksBySource, id) }

// LinksTo returns every link, live or dead, with id as the target.
func (s State) LinksTo(id uuid.UUID) []domain.Link { return s.links(s.linksByTarget, id) }

func (s State) links(index linkIndex, id uuid.UUID) []domain.Link {
	set, ok := index.Get(id)
	if !ok {
		return nil
	}
	out := make([]domain.Link, 0, set.Len())
	itr := set.Iterator()
	for !itr.Done() {
		_, l, _ := itr.Next()
		out = append(out, l)
	}
	sortLinks(out)
	return out
}

func (s State) liveLinks(index linkIndex, id uuid.UUID, types ...domain.LinkType) []domain.Link {
	all := s.links(index, id)
	out := all[:0]
	for _, l := range all {
		if l.IsLive() && (len(types) == 0 || slices.Contains(types, l.Type())) {
			out = append(out, l)
		}
	}
	return out
}

func sortLinks(links []domain.Link) {
	slices.SortFunc(links, func(a, b domain.Link) int {
		return cmp.Or(
			cmp.Compare(a.CreatedAt(), b.CreatedAt()),
			cmp.Compare(a.Type(), b.Type()),
			cmp.Compare(a.Source().ID().String(), b.Source().ID().String()),
			cmp.Compare(a.Target().ID().String(), b.Target().ID().String()),
		)
	})
}

// ------------------------------------------------------------
// Transitions

// CreateWorkspace mints a workspace at version (tx+1, 0).
func (s State) CreateWorkspace(ids IDSource) (domain.Workspace, State, error) {
	id, err := s.mintID(ids)
	if err != nil {
		return domain.Workspace{}, s, err
	}
	txNext := s.tx.Next()
	ws := domain.NewResource(id, domain.TypeWorkspace, txNext)

	next := s
	next.tx = txNext
	next.resources = s.resources.Set(id, ws)
	return domain.Workspace{Resource: ws}, next, nil
}

// CreateChild creates a resource of kind childType under parent. The parent
// handle must match the authoritative record exactly, its kind must allow
// childType, and it must be live. On success the parent is re-versioned at
// the new transaction and the PARENT_OF/CHILD_OF pair is recorded.
func (s State) CreateChild(ids IDSource, catalog *domain.Catalog, parent domain.Resource, childType domain.ResourceType) (domain.Resource, State, error) {
	current, err := s.authoritative(parent)
	if err != nil {
		return domain.Resource{}, s, err
	}
	if !catalog.Allows(current.Type(), childType) {
		return domain.Resource{}, s, domain.StructuralViolationError{Parent: current.Type(), Child: childType}
	}
	if deletedAt, deleted := current.DeletedAt(); deleted {
		return domain.Resource{}, s, domain.DeadParentError{ID: current.ID(), Type: current.Type(), DeletedAt: deletedAt}
	}
	childID, err := s.mintID(ids)
	if err != nil {
		return domain.Resource{}, s, err
	}

	txNext := s.tx.Next()
	parentID := current.ID()
	parentNext := current.NextVersion(txNext)
	child := domain.NewResource(childID, childType, txNext)

	p2c := domain.NewLink(parentNext, domain.LinkParentOf, child, txNext)
	c2p := domain.NewLink(child, domain.LinkChildOf, parentNext, txNext)

	next := State{
		tx:        txNext,
		resources: s.resources.Set(parentID, parentNext).Set(childID, child),
	}
	next.linksBySource = putLink(putLink(s.linksBySource, parentID, p2c), childID, c2p)
	next.linksByTarget = putLink(putLink(s.linksByTarget, childID, p2c), parentID, c2p)
	return child, next, nil
}

// Delete tombstones the resource named by handle. Without recursive the
// resource must have no live children. With recursive the whole live subtree
// is tombstoned. Either way every touched resource and link is stamped with
// one new transaction. Deleting an already deleted resource with its current
// handle returns the tombstone and the unchanged state.
func (s State) Delete(handle domain.Resource, recursive bool) (domain.Resource, State, error) {
	current, err := s.authoritative(handle)
	if err != nil {
		return domain.Resource{}, s, err
	}
	if current.IsDeleted() {
		return current, s, nil
	}
	if !recursive {
		if n := len(s.liveLinks(s.linksBySource, current.ID(), domain.LinkParentOf)); n > 0 {
			return domain.Resource{}, s, domain.HasChildrenError{ID: current.ID(), Type: current.Type(), Children: n}
		}
	}
	next := s.cascade(current, s.tx.Next(), recursive)
	tombstone, _ := next.resources.Get(current.ID())
	return tombstone, next, nil
}

// cascade tombstones root (and with recursive its live subtree) at txNext.
// Every live link touching a tombstoned resource dies at txNext and every
// endpoint of such a link gets exactly one new version at txNext, deleted or
// not, so no stale handle to a resource whose adjacency changed stays valid.
// Dead links carry the final snapshots of both endpoints.
func (s State) cascade(root domain.Resource, txNext domain.Transaction, recursive bool) State {
	doomed := make(map[uuid.UUID]bool)
	stack := []uuid.UUID{root.ID()}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if doomed[id] {
			continue
		}
		doomed[id] = true
		if !recursive {
			continue
		}
		for _, l := range s.liveLinks(s.linksBySource, id, domain.LinkParentOf) {
			stack = append(stack, l.Target().ID())
		}
	}

	killed := make(map[domain.LinkKey]domain.Link)
	for id := range doomed {
		for _, l := range s.liveLinks(s.linksBySource, id) {
			killed[l.Key()] = l
		}
		for _, l := range s.liveLinks(s.linksByTarget, id) {
			killed[l.Key()] = l
		}
	}

	final := make(map[uuid.UUID]domain.Resource, len(doomed)+len(killed))
	touch := func(id uuid.UUID) {
		if _, ok := final[id]; ok {
			return
		}
		current, _ := s.resources.Get(id)
		if doomed[id] {
			final[id] = current.Delete(txNext)
		} else {
			final[id] = current.NextVersion(txNext)
		}
	}
	for id := range doomed {
		touch(id)
	}
	for key := range killed {
		touch(key.Source)
		touch(key.Target)
	}

	next := State{
		tx:            txNext,
		resources:     s.resources,
		linksBySource: s.linksBySource,
		linksByTarget: s.linksByTarget,
	}
	for id, r := range final {
		next.resources = next.resources.Set(id, r)
	}
	for key, l := range killed {
		dead := l.Kill(final[key.Source], final[key.Target], txNext)
		next.linksBySource = putLink(next.linksBySource, key.Source, dead)
		next.linksByTarget = putLink(next.linksByTarget, key.Target, dead)
	}
	return next
}

// authoritative resolves the current record for handle's id and kind and
// requires it to equal the handle.
func (s State) authoritative(handle domain.Resource) (domain.Resource, error) {
	current, ok := s.resources.Get(handle.ID())
	if !ok || !current.HasType(handle.Type()) {
		return domain.Resource{}, domain.NotFoundError{ID: handle.ID(), Type: handle.Type()}
	}
	if !current.Equal(handle) {
		return domain.Resource{}, domain.VersionConflictError{
			ID:      handle.ID(),
			Type:    handle.Type(),
			Given:   handle.CurrentVersion(),
			Current: current.CurrentVersion(),
			StoreTx: s.tx,
		}
	}
	return current, nil
}

func (s State) mintID(ids IDSource) (uuid.UUID, error) {
	id, err := ids.NewID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("mint resource id: %w", err)
	}
	if _, exists := s.resources.Get(id); exists || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("resource id %s already in use", id)
	}
	return id, nil
}

func putLink(index linkIndex, id uuid.UUID, l domain.Link) linkIndex {
	set, ok := index.Get(id)
	if !ok {
		set = immutable.NewMap[domain.LinkKey, domain.Link](linkKeyHasher{})
	}
	return index.Set(id, set.Set(l.Key(), l))
}
