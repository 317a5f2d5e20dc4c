package domain

import (
	"fmt"
	"slices"
)

// ResourceType identifies the kind of a resource. The set of kinds is closed.
type ResourceType string

// Supported resource kinds.
const (
	// TypeWorkspace identifies a top-level workspace.
	TypeWorkspace ResourceType = "workspace"
	// TypeCollection identifies a collection nested under a workspace or another collection.
	TypeCollection ResourceType = "collection"
)

// String returns the kind name.
func (t ResourceType) String() string { return string(t) }

// Catalog is the immutable registry of resource kinds and the parent to child
// kind pairings they permit. Build one with CatalogBuilder, or use
// DefaultCatalog.
type Catalog struct {
	types    []ResourceType
	children map[ResourceType][]ResourceType
}

// CatalogBuilder accumulates kind declarations for a Catalog.
type CatalogBuilder struct {
	types    []ResourceType
	children map[ResourceType][]ResourceType
	err      error
}

// NewCatalogBuilder returns an empty builder.
func NewCatalogBuilder() *CatalogBuilder {
	return &CatalogBuilder{children: make(map[ResourceType][]ResourceType)}
}

// Kind declares a resource kind together with the kinds allowed as its
// direct children. Declaring the same kind twice is an error reported by
// Build.
func (b *CatalogBuilder) Kind(t ResourceType, children ...ResourceType) *CatalogBuilder {
	if b.err != nil {
		return b
	}
	if t == "" {
		b.err = fmt.Errorf("catalog: empty resource type")
		return b
	}
	if slices.Contains(b.types, t) {
		b.err = fmt.Errorf("catalog: resource type %s declared twice", t)
		return b
	}
	b.types = append(b.types, t)
	allowed := make([]ResourceType, 0, len(children))
	for _, c := range children {
		if !slices.Contains(allowed, c) {
			allowed = append(allowed, c)
		}
	}
	b.children[t] = allowed
	return b
}

// Build validates the declarations and returns the catalog. Every child kind
// must itself be declared.
func (b *CatalogBuilder) Build() (*Catalog, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := &Catalog{
		types:    slices.Clone(b.types),
		children: make(map[ResourceType][]ResourceType, len(b.children)),
	}
	for parent, kids := range b.children {
		for _, k := range kids {
			if !slices.Contains(b.types, k) {
				return nil, fmt.Errorf("catalog: %s lists undeclared child type %s", parent, k)
			}
		}
		c.children[parent] = slices.Clone(kids)
	}
	return c, nil
}

var defaultCatalog = mustBuild(NewCatalogBuilder().
	Kind(TypeWorkspace, TypeCollection).
	Kind(TypeCollection, TypeCollection))

func mustBuild(b *CatalogBuilder) *Catalog {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCatalog returns the catalog of built-in kinds: workspaces hold
// collections and collections hold collections.
func DefaultCatalog() *Catalog { return defaultCatalog }

// Types enumerates every declared kind in declaration order.
func (c *Catalog) Types() []ResourceType { return slices.Clone(c.types) }

// Has reports whether t is a declared kind.
func (c *Catalog) Has(t ResourceType) bool { return slices.Contains(c.types, t) }

// AllowableChildren returns the kinds permitted as direct children of t.
func (c *Catalog) AllowableChildren(t ResourceType) []ResourceType {
	return slices.Clone(c.children[t])
}

// Allows reports whether child may be created directly under parent.
func (c *Catalog) Allows(parent, child ResourceType) bool {
	return slices.Contains(c.children[parent], child)
}

// Pairings lists every permitted (parent, child) kind pair.
func (c *Catalog) Pairings() [][2]ResourceType {
	var out [][2]ResourceType
	for _, p := range c.types {
		for _, k := range c.children[p] {
			out = append(out, [2]ResourceType{p, k})
		}
	}
	return out
}

// Cast converts r into the typed handle for kind t. It fails with
// KindMismatchError when r is of another kind.
func (c *Catalog) Cast(r Resource, t ResourceType) (Handle, error) {
	if !c.Has(t) {
		return nil, fmt.Errorf("catalog: unknown resource type %s", t)
	}
	if !r.HasType(t) {
		return nil, KindMismatchError{ID: r.ID(), Expected: t, Actual: r.Type()}
	}
	return HandleOf(r)
}
