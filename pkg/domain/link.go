package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// LinkType is the direction of a parent/child edge.
type LinkType string

// Link types. Every parent/child relationship is stored as one link of each
// type, created together.
const (
	// LinkParentOf points from a parent to its child.
	LinkParentOf LinkType = "PARENT_OF"
	// LinkChildOf points from a child to its parent.
	LinkChildOf LinkType = "CHILD_OF"
)

// Mirror returns the opposite link type.
func (t LinkType) Mirror() LinkType {
	if t == LinkParentOf {
		return LinkChildOf
	}
	return LinkParentOf
}

// LinkKey identifies a link independently of the endpoint snapshots it carries.
type LinkKey struct {
	Source uuid.UUID
	Target uuid.UUID
	Type   LinkType
}

// Link is a versioned, directed edge between two resource snapshots. Links are
// never removed; a dead link keeps its creation stamp and gains a deletion
// stamp.
type Link struct {
	source    Resource
	target    Resource
	typ       LinkType
	createdAt Transaction
	deletedAt Transaction
	dead      bool
}

// NewLink returns a live link created in tx.
func NewLink(source Resource, typ LinkType, target Resource, tx Transaction) Link {
	return Link{source: source, target: target, typ: typ, createdAt: tx}
}

// RestoreLink rebuilds a link from stored parts. A nil deletedAt yields a
// live link.
func RestoreLink(source Resource, typ LinkType, target Resource, createdAt Transaction, deletedAt *Transaction) Link {
	l := NewLink(source, typ, target, createdAt)
	if deletedAt != nil {
		l.dead = true
		l.deletedAt = *deletedAt
	}
	return l
}

// Source returns the snapshot of the source endpoint.
func (l Link) Source() Resource { return l.source }

// Target returns the snapshot of the target endpoint.
func (l Link) Target() Resource { return l.target }

// Type returns the link type.
func (l Link) Type() LinkType { return l.typ }

// CreatedAt returns the transaction that created the link.
func (l Link) CreatedAt() Transaction { return l.createdAt }

// DeletedAt returns the transaction that killed the link, if any.
func (l Link) DeletedAt() (Transaction, bool) { return l.deletedAt, l.dead }

// IsLive reports whether the link has not been killed.
func (l Link) IsLive() bool { return !l.dead }

// Key returns the link identity.
func (l Link) Key() LinkKey {
	return LinkKey{Source: l.source.id, Target: l.target.id, Type: l.typ}
}

// Kill returns the dead version of l stamped with tx, carrying the given
// endpoint snapshots. Killing a dead link returns it unchanged.
func (l Link) Kill(source, target Resource, tx Transaction) Link {
	if l.dead {
		return l
	}
	dead := l
	dead.source = source
	dead.target = target
	dead.deletedAt = tx
	dead.dead = true
	return dead
}

// Equal reports whether both links carry the same endpoints, type and stamps.
func (l Link) Equal(other Link) bool { return l == other }

// String renders the link for logs.
func (l Link) String() string {
	s := fmt.Sprintf("%s -%s-> %s created %s", l.source.id, l.typ, l.target.id, l.createdAt)
	if l.dead {
		s += " deleted " + l.deletedAt.String()
	}
	return s
}
