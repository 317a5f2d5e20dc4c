package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []ResourceType{TypeWorkspace, TypeCollection}, c.Types())
	assert.True(t, c.Has(TypeWorkspace))
	assert.False(t, c.Has(ResourceType("object")))

	assert.True(t, c.Allows(TypeWorkspace, TypeCollection))
	assert.True(t, c.Allows(TypeCollection, TypeCollection))
	assert.False(t, c.Allows(TypeCollection, TypeWorkspace))
	assert.False(t, c.Allows(TypeWorkspace, TypeWorkspace))
	assert.Equal(t, []ResourceType{TypeCollection}, c.AllowableChildren(TypeWorkspace))
	assert.Equal(t, [][2]ResourceType{{TypeWorkspace, TypeCollection}, {TypeCollection, TypeCollection}}, c.Pairings())

	types := c.Types()
	types[0] = "mutated"
	assert.Equal(t, TypeWorkspace, c.Types()[0], "catalog must not expose its internals")
}

func TestCatalogBuilderRejectsBadDeclarations(t *testing.T) {
	_, err := NewCatalogBuilder().Kind(TypeWorkspace).Kind(TypeWorkspace).Build()
	assert.ErrorContains(t, err, "declared twice")

	_, err = NewCatalogBuilder().Kind(TypeWorkspace, TypeCollection).Build()
	assert.ErrorContains(t, err, "undeclared child type")

	_, err = NewCatalogBuilder().Kind("").Build()
	assert.Error(t, err)

	c, err := NewCatalogBuilder().Kind(TypeWorkspace, TypeCollection, TypeCollection).Kind(TypeCollection).Build()
	require.NoError(t, err)
	assert.Equal(t, []ResourceType{TypeCollection}, c.AllowableChildren(TypeWorkspace))
	assert.Empty(t, c.AllowableChildren(TypeCollection))
}

func TestCatalogCast(t *testing.T) {
	c := DefaultCatalog()
	for _, typ := range c.Types() {
		t.Run(string(typ), func(t *testing.T) {
			r := NewResource(uuid.New(), typ, 1)
			h, err := c.Cast(r, typ)
			require.NoError(t, err)
			assert.True(t, h.Snapshot().Equal(r))

			for _, wrong := range c.Types() {
				if wrong == typ {
					continue
				}
				_, err := c.Cast(r, wrong)
				assert.ErrorIs(t, err, ErrKindMismatch)
			}
		})
	}

	_, err := c.Cast(NewResource(uuid.New(), TypeWorkspace, 1), "object")
	assert.Error(t, err)
}
