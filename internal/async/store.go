package async

import (
	"context"

	"github.com/google/uuid"

	"strata/pkg/domain"
)

// Store runs each operation of a domain.Store on its own goroutine.
type Store struct {
	inner domain.Store
}

// NewStore wraps inner.
func NewStore(inner domain.Store) *Store { return &Store{inner: inner} }

// Transaction delivers the current transaction.
func (s *Store) Transaction() Single[domain.Transaction] {
	return Go(func() (domain.Transaction, error) { return s.inner.Transaction(), nil })
}

// CreateWorkspace creates a root workspace.
func (s *Store) CreateWorkspace(ctx context.Context) Single[domain.Workspace] {
	return Go(func() (domain.Workspace, error) { return s.inner.CreateWorkspace(ctx) })
}

// CreateCollection creates a collection under parent.
func (s *Store) CreateCollection(ctx context.Context, parent domain.Container) Single[domain.Collection] {
	return Go(func() (domain.Collection, error) { return s.inner.CreateCollection(ctx, parent) })
}

// DeleteWorkspace tombstones ws.
func (s *Store) DeleteWorkspace(ctx context.Context, ws domain.Workspace, recursive bool) Single[domain.Workspace] {
	return Go(func() (domain.Workspace, error) { return s.inner.DeleteWorkspace(ctx, ws, recursive) })
}

// DeleteCollection tombstones c.
func (s *Store) DeleteCollection(ctx context.Context, c domain.Collection, recursive bool) Single[domain.Collection] {
	return Go(func() (domain.Collection, error) { return s.inner.DeleteCollection(ctx, c, recursive) })
}

// Find delivers the live record for id, if any.
func (s *Store) Find(id uuid.UUID) Maybe[domain.Resource] {
	return GoMaybe(func() (domain.Resource, bool, error) {
		r, ok := s.inner.Find(id)
		return r, ok, nil
	})
}

// FindWorkspace delivers the live workspace for id, if any.
func (s *Store) FindWorkspace(id uuid.UUID) Maybe[domain.Workspace] {
	return GoMaybe(func() (domain.Workspace, bool, error) {
		ws, ok := s.inner.FindWorkspace(id)
		return ws, ok, nil
	})
}

// FindCollection delivers the live collection for id, if any.
func (s *Store) FindCollection(id uuid.UUID) Maybe[domain.Collection] {
	return GoMaybe(func() (domain.Collection, bool, error) {
		c, ok := s.inner.FindCollection(id)
		return c, ok, nil
	})
}

// FindTombstone delivers the deleted record for id, if any.
func (s *Store) FindTombstone(id uuid.UUID) Maybe[domain.Resource] {
	return GoMaybe(func() (domain.Resource, bool, error) {
		r, ok := s.inner.FindTombstone(id)
		return r, ok, nil
	})
}

// LinksFrom streams the links with id as the source.
func (s *Store) LinksFrom(ctx context.Context, id uuid.UUID) Multi[domain.Link] {
	return Stream(ctx, func() ([]domain.Link, error) { return s.inner.LinksFrom(id), nil })
}

// LinksTo streams the links with id as the target.
func (s *Store) LinksTo(ctx context.Context, id uuid.UUID) Multi[domain.Link] {
	return Stream(ctx, func() ([]domain.Link, error) { return s.inner.LinksTo(id), nil })
}

// ChildCollections streams the live collections under parent.
func (s *Store) ChildCollections(ctx context.Context, parent domain.Container) Multi[domain.Collection] {
	return Stream(ctx, func() ([]domain.Collection, error) { return s.inner.ChildCollections(parent), nil })
}

// Parent delivers the live parent of c or a not-found error.
func (s *Store) Parent(c domain.Collection) Single[domain.Container] {
	return Go(func() (domain.Container, error) { return s.inner.Parent(c) })
}
