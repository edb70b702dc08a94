package categories

import (
	"context"
	"errors"
	"strings"
	"time"

	"budmart/internal/ident"

	"github.com/gosimple/slug"
)

var (
	ErrNotFound      = errors.New("category not found")
	ErrConflict      = errors.New("a category with this name already exists under the same parent")
	ErrHasChildren   = errors.New("category has child categories")
	ErrInvalidParent = errors.New("parent category not found")
	ErrCycle         = errors.New("category cannot be moved under itself or its descendant")
	ErrSameCategory  = errors.New("source and target category must differ")
	ErrEmptyName     = errors.New("category name cannot be empty")
)

// Category is a node of the catalog tree. By convention roots are
// categories, their children subcategories and grandchildren types.
type Category struct {
	ID          ident.ID  `json:"_id" swaggertype:"string"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Parent      ident.ID  `json:"parent" swaggertype:"string"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Node is a Category with its children, used for the storefront menu.
type Node struct {
	*Category
	Level    int     `json:"level"`
	Children []*Node `json:"children"`
}

// ParentFilter restricts List. The zero value lists every node; Set with a
// zero Parent lists roots.
type ParentFilter struct {
	Set    bool
	Parent ident.ID
}

type Store interface {
	List(ctx context.Context, f ParentFilter) ([]*Category, error)
	GetByID(ctx context.Context, id ident.ID) (*Category, error)
	Create(ctx context.Context, c *Category) (*Category, error)
	Update(ctx context.Context, c *Category) (*Category, error)
	Delete(ctx context.Context, id ident.ID) error
	Reassign(ctx context.Context, from, to ident.ID) (int64, error)
	EnsureChild(ctx context.Context, parent ident.ID, name string) (*Category, error)
}

// Prepare trims the name and derives the slug before a write.
func (c *Category) Prepare() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.ID != 0 && c.Parent == c.ID {
		return ErrCycle
	}
	c.Slug = slug.Make(c.Name)
	return nil
}

// BuildTree converts a flat list into root nodes. Nodes whose parent is
// missing from the list are treated as roots so nothing disappears.
func BuildTree(list []*Category) []*Node {
	nodes := make(map[ident.ID]*Node, len(list))
	for _, c := range list {
		nodes[c.ID] = &Node{Category: c, Children: []*Node{}}
	}

	roots := []*Node{}
	for _, c := range list {
		n := nodes[c.ID]
		if parent, ok := nodes[c.Parent]; ok && c.Parent != 0 {
			parent.Children = append(parent.Children, n)
			continue
		}
		roots = append(roots, n)
	}

	var setLevel func(ns []*Node, level int)
	setLevel = func(ns []*Node, level int) {
		for _, n := range ns {
			n.Level = level
			setLevel(n.Children, level+1)
		}
	}
	setLevel(roots, 0)
	return roots
}

// CreatesCycle reports whether moving id under newParent would make id its
// own ancestor. parentOf returns the parent of a node and false when unknown.
func CreatesCycle(parentOf func(ident.ID) (ident.ID, bool), id, newParent ident.ID) bool {
	seen := map[ident.ID]bool{}
	for cur := newParent; cur != 0; {
		if cur == id {
			return true
		}
		if seen[cur] {
			// pre-existing loop that does not involve id
			return false
		}
		seen[cur] = true
		next, ok := parentOf(cur)
		if !ok {
			return false
		}
		cur = next
	}
	return false
}
