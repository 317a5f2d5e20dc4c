package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Resource is an immutable snapshot of one resource: identity, kind, current
// version and an optional deletion marker. Two snapshots are equal when they
// denote the same id at the same version with the same deletion marker; a
// stale snapshot of a resource is not equal to its current one.
//
// The zero Resource denotes absence.
type Resource struct {
	id        uuid.UUID
	kind      ResourceType
	version   Version
	deletedAt Version
	deleted   bool
}

// NewResource returns a live resource at version (tx, 0).
func NewResource(id uuid.UUID, kind ResourceType, tx Transaction) Resource {
	return Resource{id: id, kind: kind, version: InitVersion(tx)}
}

// RestoreResource rebuilds a snapshot from stored parts. A nil deletedAt
// yields a live resource.
func RestoreResource(id uuid.UUID, kind ResourceType, version Version, deletedAt *Version) Resource {
	r := Resource{id: id, kind: kind, version: version}
	if deletedAt != nil {
		r.deleted = true
		r.deletedAt = *deletedAt
	}
	return r
}

// ID returns the resource identifier, stable for the whole lifeline.
func (r Resource) ID() uuid.UUID { return r.id }

// Type returns the resource kind.
func (r Resource) Type() ResourceType { return r.kind }

// HasType reports whether the resource is of kind t.
func (r Resource) HasType(t ResourceType) bool { return r.kind == t }

// CurrentVersion returns the version of this snapshot.
func (r Resource) CurrentVersion() Version { return r.version }

// DeletedAt returns the tombstone version, if the resource is deleted.
func (r Resource) DeletedAt() (Version, bool) { return r.deletedAt, r.deleted }

// DeletedAtTransaction returns the transaction the resource was deleted in.
func (r Resource) DeletedAtTransaction() (Transaction, bool) {
	return r.deletedAt.tx, r.deleted
}

// IsLive reports whether the snapshot carries no deletion marker.
func (r Resource) IsLive() bool { return !r.deleted }

// IsDeleted reports whether the snapshot is a tombstone.
func (r Resource) IsDeleted() bool { return r.deleted }

// IsZero reports whether r is the zero value.
func (r Resource) IsZero() bool { return r == Resource{} }

// Equal reports snapshot equality.
func (r Resource) Equal(other Resource) bool { return r == other }

// IsLaterVersionOf reports whether r and other share an id and r's version
// orders after other's.
func (r Resource) IsLaterVersionOf(other Resource) bool {
	return r.id == other.id && r.version.compare(other.version) > 0
}

// IsEarlierVersionOf reports whether r and other share an id and r's version
// orders before other's.
func (r Resource) IsEarlierVersionOf(other Resource) bool {
	return r.id == other.id && r.version.compare(other.version) < 0
}

// NextVersion returns a live or deleted snapshot identical to r but at the
// successor version anchored at tx. Tombstones keep their deletion marker.
func (r Resource) NextVersion(tx Transaction) Resource {
	next := r
	next.version = r.version.Next(tx)
	return next
}

// Delete returns the tombstone that replaces r in transaction tx. Deleting a
// tombstone returns it unchanged.
func (r Resource) Delete(tx Transaction) Resource {
	if r.deleted {
		return r
	}
	v := r.version.Next(tx)
	return Resource{id: r.id, kind: r.kind, version: v, deletedAt: v, deleted: true}
}

// String renders the snapshot for logs and error messages.
func (r Resource) String() string {
	if r.IsZero() {
		return "<none>"
	}
	if r.deleted {
		return fmt.Sprintf("%s %s@%s (deleted)", r.kind, r.id, r.version)
	}
	return fmt.Sprintf("%s %s@%s", r.kind, r.id, r.version)
}

// Handle is a typed view of a resource snapshot. The set of implementations
// is closed: Workspace and Collection.
type Handle interface {
	Snapshot() Resource
	handle()
}

// Container is a handle that may parent collections.
type Container interface {
	Handle
	container()
}

// Workspace is the typed handle for TypeWorkspace resources.
type Workspace struct{ Resource }

// Snapshot returns the underlying resource snapshot.
func (w Workspace) Snapshot() Resource { return w.Resource }

func (Workspace) handle()    {}
func (Workspace) container() {}

// Collection is the typed handle for TypeCollection resources.
type Collection struct{ Resource }

// Snapshot returns the underlying resource snapshot.
func (c Collection) Snapshot() Resource { return c.Resource }

func (Collection) handle()    {}
func (Collection) container() {}

// HandleOf wraps r in the handle type matching its kind.
func HandleOf(r Resource) (Handle, error) {
	switch r.kind {
	case TypeWorkspace:
		return Workspace{r}, nil
	case TypeCollection:
		return Collection{r}, nil
	default:
		return nil, fmt.Errorf("no handle type for resource kind %q", r.kind)
	}
}

// ContainerOf wraps r in a Container handle.
func ContainerOf(r Resource) (Container, error) {
	h, err := HandleOf(r)
	if err != nil {
		return nil, err
	}
	c, ok := h.(Container)
	if !ok {
		return nil, KindMismatchError{ID: r.id, Expected: TypeCollection, Actual: r.kind}
	}
	return c, nil
}

// AsWorkspace returns r as a Workspace when it is one.
func AsWorkspace(r Resource) (Workspace, bool) {
	if r.kind != TypeWorkspace {
		return Workspace{}, false
	}
	return Workspace{r}, true
}

// AsCollection returns r as a Collection when it is one.
func AsCollection(r Resource) (Collection, bool) {
	if r.kind != TypeCollection {
		return Collection{}, false
	}
	return Collection{r}, true
}
