package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrVersionConflict     = errors.New("version conflict")
	ErrStructuralViolation = errors.New("structural violation")
	ErrDeadParent          = errors.New("dead parent")
	ErrHasChildren         = errors.New("resource has live children")
	ErrNotFound            = errors.New("not found")
	ErrKindMismatch        = errors.New("kind mismatch")
)

// VersionConflictError is returned when a caller's handle does not match the
// authoritative record for its id: stale, forged or from the future.
type VersionConflictError struct {
	ID      uuid.UUID
	Type    ResourceType
	Given   Version
	Current Version
	StoreTx Transaction
}

func (e VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s %s: given version %s implies transaction %s, store is at %s with current version %s",
		e.Type, e.ID, e.Given, e.Given.Transaction(), e.StoreTx, e.Current)
}

// Is matches ErrVersionConflict.
func (e VersionConflictError) Is(target error) bool { return target == ErrVersionConflict }

// Stale reports whether the given version predates the current one, as
// opposed to naming a version the store never produced.
func (e VersionConflictError) Stale() bool {
	return e.Given.compare(e.Current) < 0
}

// StructuralViolationError is returned when a child kind is not permitted
// under a parent kind.
type StructuralViolationError struct {
	Parent ResourceType
	Child  ResourceType
}

func (e StructuralViolationError) Error() string {
	return fmt.Sprintf("structural violation: %s may not contain %s", e.Parent, e.Child)
}

// Is matches ErrStructuralViolation.
func (e StructuralViolationError) Is(target error) bool { return target == ErrStructuralViolation }

// DeadParentError is returned when creating a child under a tombstone.
type DeadParentError struct {
	ID        uuid.UUID
	Type      ResourceType
	DeletedAt Version
}

func (e DeadParentError) Error() string {
	return fmt.Sprintf("%s %s was deleted at %s and accepts no children", e.Type, e.ID, e.DeletedAt)
}

// Is matches ErrDeadParent.
func (e DeadParentError) Is(target error) bool { return target == ErrDeadParent }

// HasChildrenError is returned by a non-recursive delete of a resource with
// live children.
type HasChildrenError struct {
	ID       uuid.UUID
	Type     ResourceType
	Children int
}

func (e HasChildrenError) Error() string {
	return fmt.Sprintf("can't delete %s %s: %d live children", e.Type, e.ID, e.Children)
}

// Is matches ErrHasChildren.
func (e HasChildrenError) Is(target error) bool { return target == ErrHasChildren }

// NotFoundError is returned when an id matches no record of the expected kind.
type NotFoundError struct {
	ID   uuid.UUID
	Type ResourceType
}

func (e NotFoundError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("resource %s not found", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Type, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// KindMismatchError is returned when a resource is cast to a kind it is not.
type KindMismatchError struct {
	ID       uuid.UUID
	Expected ResourceType
	Actual   ResourceType
}

func (e KindMismatchError) Error() string {
	return fmt.Sprintf("expected %s, was %s (%s)", e.Expected, e.Actual, e.ID)
}

// Is matches ErrKindMismatch.
func (e KindMismatchError) Is(target error) bool { return target == ErrKindMismatch }

// ErrorKind classifies err into the taxonomy above, returning "internal" for
// anything else. Used for logging and metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, ErrStructuralViolation):
		return "structural_violation"
	case errors.Is(err, ErrDeadParent):
		return "dead_parent"
	case errors.Is(err, ErrHasChildren):
		return "has_children"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrKindMismatch):
		return "kind_mismatch"
	default:
		return "internal"
	}
}
