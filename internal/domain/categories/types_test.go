package categories

import (
	"testing"

	"budmart/internal/ident"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepare(t *testing.T) {
	c := &Category{Name: "  Сухі суміші "}
	require.NoError(t, c.Prepare())
	assert.Equal(t, "Сухі суміші", c.Name)
	assert.NotEmpty(t, c.Slug)
	assert.Regexp(t, `^[a-z0-9-]+$`, c.Slug)

	assert.ErrorIs(t, (&Category{Name: "  "}).Prepare(), ErrEmptyName)
	assert.ErrorIs(t, (&Category{ID: 3, Name: "x", Parent: 3}).Prepare(), ErrCycle)
}

func TestBuildTree(t *testing.T) {
	list := []*Category{
		{ID: 1, Name: "Покрівля"},
		{ID: 2, Name: "Металочерепиця", Parent: 1},
		{ID: 3, Name: "Матова", Parent: 2},
		{ID: 4, Name: "Утеплення"},
		{ID: 5, Name: "Сирота", Parent: 99},
	}

	roots := BuildTree(list)
	require.Len(t, roots, 3)
	assert.Equal(t, ident.ID(1), roots[0].ID)
	require.Len(t, roots[0].Children, 1)
	require.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, 2, roots[0].Children[0].Children[0].Level)
	assert.Equal(t, ident.ID(5), roots[2].ID)
}

func TestCreatesCycle(t *testing.T) {
	parents := map[ident.ID]ident.ID{1: 0, 2: 1, 3: 2}
	parentOf := func(id ident.ID) (ident.ID, bool) {
		p, ok := parents[id]
		return p, ok
	}

	assert.True(t, CreatesCycle(parentOf, 1, 3), "root under its grandchild")
	assert.True(t, CreatesCycle(parentOf, 2, 2), "node under itself")
	assert.False(t, CreatesCycle(parentOf, 3, 1), "leaf moved up")
	assert.False(t, CreatesCycle(parentOf, 2, 0), "move to root")
	assert.False(t, CreatesCycle(parentOf, 2, 42), "unknown parent")
}
