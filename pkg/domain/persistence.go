package domain

import (
	"context"

	"github.com/google/uuid"
)

// Store is the contract every strata storage engine satisfies. Writes are
// validated against the authoritative current state and either commit as one
// transaction or leave the store untouched. Reads observe a published state,
// never a partial one.
type Store interface {
	// Transaction returns the current transaction.
	Transaction() Transaction

	CreateWorkspace(ctx context.Context) (Workspace, error)
	// CreateCollection creates a collection under parent, which must match the
	// store's current record for its id.
	CreateCollection(ctx context.Context, parent Container) (Collection, error)
	DeleteWorkspace(ctx context.Context, ws Workspace, recursive bool) (Workspace, error)
	DeleteCollection(ctx context.Context, c Collection, recursive bool) (Collection, error)

	// Find returns the live record for id.
	Find(id uuid.UUID) (Resource, bool)
	FindOfType(id uuid.UUID, t ResourceType) (Resource, bool)
	FindWorkspace(id uuid.UUID) (Workspace, bool)
	FindCollection(id uuid.UUID) (Collection, bool)
	// FindTombstone returns the record for id only when it is deleted.
	FindTombstone(id uuid.UUID) (Resource, bool)
	FindTombstoneOfType(id uuid.UUID, t ResourceType) (Resource, bool)

	// LinksFrom and LinksTo return every link, live or dead, with id as the
	// source or target.
	LinksFrom(id uuid.UUID) []Link
	LinksTo(id uuid.UUID) []Link

	// ChildCollections returns the current records of the live collections
	// directly under parent.
	ChildCollections(parent Container) []Collection
	// Parent returns the current record of the collection's live parent.
	Parent(c Collection) (Container, error)
}
