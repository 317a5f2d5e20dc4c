// Package memory provides the in-memory strata store: immutable State values
// with pure transitions, and a Store shell that serialises writers and
// publishes each committed State for lock-free readers.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"strata/pkg/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain store interface.
var _ domain.Store = (*Store)(nil)

// CommitHook runs inside the writer critical section after a transition
// succeeds and before its State is published. A hook error aborts the commit
// and leaves the published State untouched.
type CommitHook func(ctx context.Context, prev, next State) error

// Option configures a Store.
type Option func(*Store)

// WithIDSource replaces the random identifier source.
func WithIDSource(ids IDSource) Option {
	return func(s *Store) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithCatalog replaces the default resource-type catalog.
func WithCatalog(c *domain.Catalog) Option {
	return func(s *Store) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithCommitHook appends a hook run on every commit, in registration order.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

// WithState starts the store from st instead of the empty state.
func WithState(st State) Option {
	return func(s *Store) { s.initial = &st }
}

// Store is the single-writer shell around State. Writers are serialised by a
// mutex; readers load the last published State without locking and never
// observe a partially applied transition.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[State]

	ids     IDSource
	catalog *domain.Catalog
	logger  zerolog.Logger
	hooks   []CommitHook
	initial *State
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		ids:     RandomIDs(),
		catalog: domain.DefaultCatalog(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	st := NewState()
	if s.initial != nil {
		st = *s.initial
		s.initial = nil
	}
	s.current.Store(&st)
	return s
}

// State returns the last published state.
func (s *Store) State() State { return *s.current.Load() }

// Catalog returns the resource-type catalog the store validates against.
func (s *Store) Catalog() *domain.Catalog { return s.catalog }

// Transaction returns the current transaction.
func (s *Store) Transaction() domain.Transaction { return s.State().Transaction() }

// apply runs a transition against the current state under the writer lock and
// publishes its successor. Transitions that leave the transaction unchanged
// are no-ops and skip the commit hooks.
func (s *Store) apply(ctx context.Context, op string, fn func(State) (domain.Resource, State, error)) (domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return domain.Resource{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.State()
	result, next, err := fn(prev)
	if err != nil {
		s.logger.Debug().Str("op", op).Str("kind", domain.ErrorKind(err)).Err(err).Msg("write rejected")
		return domain.Resource{}, err
	}
	if next.Transaction() == prev.Transaction() {
		return result, nil
	}
	for _, hook := range s.hooks {
		if err := hook(ctx, prev, next); err != nil {
			s.logger.Error().Str("op", op).Stringer("tx", next.Transaction()).Err(err).Msg("commit hook failed")
			return domain.Resource{}, fmt.Errorf("commit %s: %w", next.Transaction(), err)
		}
	}
	s.current.Store(&next)
	s.logger.Debug().Str("op", op).Stringer("tx", next.Transaction()).Stringer("resource", result).Msg("committed")
	return result, nil
}

// ------------------------------------------------------------
// Writes

// CreateWorkspace creates a new root workspace.
func (s *Store) CreateWorkspace(ctx context.Context) (domain.Workspace, error) {
	r, err := s.apply(ctx, "create_workspace", func(st State) (domain.Resource, State, error) {
		ws, next, err := st.CreateWorkspace(s.ids)
		return ws.Resource, next, err
	})
	if err != nil {
		return domain.Workspace{}, err
	}
	return domain.Workspace{Resource: r}, nil
}

// CreateCollection creates a collection under parent.
func (s *Store) CreateCollection(ctx context.Context, parent domain.Container) (domain.Collection, error) {
	r, err := s.CreateChild(ctx, parent, domain.TypeCollection)
	if err != nil {
		return domain.Collection{}, err
	}
	return domain.Collection{Resource: r}, nil
}

// CreateChild creates a resource of kind childType under parent, for any
// pairing the catalog allows.
func (s *Store) CreateChild(ctx context.Context, parent domain.Handle, childType domain.ResourceType) (domain.Resource, error) {
	if parent == nil {
		return domain.Resource{}, domain.NotFoundError{}
	}
	return s.apply(ctx, "create_"+string(childType), func(st State) (domain.Resource, State, error) {
		return st.CreateChild(s.ids, s.catalog, parent.Snapshot(), childType)
	})
}

// DeleteWorkspace tombstones ws, and with recursive its whole subtree.
func (s *Store) DeleteWorkspace(ctx context.Context, ws domain.Workspace, recursive bool) (domain.Workspace, error) {
	r, err := s.Delete(ctx, ws, recursive)
	if err != nil {
		return domain.Workspace{}, err
	}
	return domain.Workspace{Resource: r}, nil
}

// DeleteCollection tombstones c, and with recursive its whole subtree.
func (s *Store) DeleteCollection(ctx context.Context, c domain.Collection, recursive bool) (domain.Collection, error) {
	r, err := s.Delete(ctx, c, recursive)
	if err != nil {
		return domain.Collection{}, err
	}
	return domain.Collection{Resource: r}, nil
}

// Delete tombstones the resource behind h.
func (s *Store) Delete(ctx context.Context, h domain.Handle, recursive bool) (domain.Resource, error) {
	if h == nil {
		return domain.Resource{}, domain.NotFoundError{}
	}
	op := "delete_" + string(h.Snapshot().Type())
	return s.apply(ctx, op, func(st State) (domain.Resource, State, error) {
		return st.Delete(h.Snapshot(), recursive)
	})
}

// ------------------------------------------------------------
// Reads

// Find returns the live record for id.
func (s *Store) Find(id uuid.UUID) (domain.Resource, bool) { return s.State().Find(id) }

// FindOfType returns the live record for id when it has kind t.
func (s *Store) FindOfType(id uuid.UUID, t domain.ResourceType) (domain.Resource, bool) {
	r, ok := s.Find(id)
	if !ok || !r.HasType(t) {
		return domain.Resource{}, false
	}
	return r, true
}

// FindWorkspace returns the live workspace for id.
func (s *Store) FindWorkspace(id uuid.UUID) (domain.Workspace, bool) {
	r, ok := s.FindOfType(id, domain.TypeWorkspace)
	return domain.Workspace{Resource: r}, ok
}

// FindCollection returns the live collection for id.
func (s *Store) FindCollection(id uuid.UUID) (domain.Collection, bool) {
	r, ok := s.FindOfType(id, domain.TypeCollection)
	return domain.Collection{Resource: r}, ok
}

// FindTombstone returns the record for id only when it is deleted.
func (s *Store) FindTombstone(id uuid.UUID) (domain.Resource, bool) {
	return s.State().FindTombstone(id)
}

// FindTombstoneOfType returns the deleted record for id when it has kind t.
func (s *Store) FindTombstoneOfType(id uuid.UUID, t domain.ResourceType) (domain.Resource, bool) {
	r, ok := s.FindTombstone(id)
	if !ok || !r.HasType(t) {
		return domain.Resource{}, false
	}
	return r, true
}

// LinksFrom returns every link with id as the source.
func (s *Store) LinksFrom(id uuid.UUID) []domain.Link { return s.State().LinksFrom(id) }

// LinksTo returns every link with id as the target.
func (s *Store) LinksTo(id uuid.UUID) []domain.Link { return s.State().LinksTo(id) }

// Children returns the live children of kind t under parent's id.
func (s *Store) Children(parent domain.Handle, t domain.ResourceType) []domain.Resource {
	if parent == nil {
		return nil
	}
	return s.State().FindChildrenOfType(parent.Snapshot().ID(), t)
}

// ChildCollections returns the live collections directly under parent.
func (s *Store) ChildCollections(parent domain.Container) []domain.Collection {
	children := s.Children(parent, domain.TypeCollection)
	out := make([]domain.Collection, 0, len(children))
	for _, r := range children {
		out = append(out, domain.Collection{Resource: r})
	}
	return out
}

// Parent returns the live parent of c. A deleted or unknown collection has
// no parent.
func (s *Store) Parent(c domain.Collection) (domain.Container, error) {
	r, ok := s.State().FindParent(c.ID())
	if !ok {
		return nil, domain.NotFoundError{ID: c.ID(), Type: domain.TypeCollection}
	}
	return domain.ContainerOf(r)
}

// Close releases nothing; it lets the memory store stand in wherever a
// persistent engine is expected.
func (s *Store) Close() error { return nil }
