package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"budmart/internal/domain/categories"
	"budmart/internal/ident"

	"golang.org/x/sync/singleflight"
)

// CategoryStore is the part of the category tree the importer needs.
type CategoryStore interface {
	List(ctx context.Context, f categories.ParentFilter) ([]*categories.Category, error)
	EnsureChild(ctx context.Context, parent ident.ID, name string) (*categories.Category, error)
}

type cacheKey struct {
	parent ident.ID
	name   string
}

func keyOf(parent ident.ID, name string) cacheKey {
	return cacheKey{parent: parent, name: strings.ToLower(strings.TrimSpace(name))}
}

// categoryCache resolves (parent, name) pairs to ids for the duration of
// one import. Misses are created through EnsureChild; concurrent misses for
// the same key share one call.
type categoryCache struct {
	store CategoryStore
	group singleflight.Group

	mu  sync.Mutex
	ids map[cacheKey]ident.ID
}

func newCategoryCache(ctx context.Context, store CategoryStore) (*categoryCache, error) {
	list, err := store.List(ctx, categories.ParentFilter{})
	if err != nil {
		return nil, fmt.Errorf("preload categories: %w", err)
	}

	c := &categoryCache{
		store: store,
		ids:   make(map[cacheKey]ident.ID, len(list)),
	}
	for _, cat := range list {
		key := keyOf(cat.Parent, cat.Name)
		if _, dup := c.ids[key]; !dup {
			c.ids[key] = cat.ID
		}
	}
	return c, nil
}

func (c *categoryCache) lookup(key cacheKey) (ident.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[key]
	return id, ok
}

// resolve returns the id of name under parent, creating the node when it
// does not exist. A blank name resolves to zero.
func (c *categoryCache) resolve(ctx context.Context, parent ident.ID, name string) (ident.ID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil
	}
	key := keyOf(parent, name)
	if id, ok := c.lookup(key); ok {
		return id, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("%d/%s", parent, key.name), func() (any, error) {
		if id, ok := c.lookup(key); ok {
			return id, nil
		}
		cat, err := c.store.EnsureChild(ctx, parent, name)
		if err != nil {
			return ident.ID(0), err
		}
		c.mu.Lock()
		c.ids[key] = cat.ID
		c.mu.Unlock()
		return cat.ID, nil
	})
	if err != nil {
		return 0, fmt.Errorf("category %q: %w", name, err)
	}
	return v.(ident.ID), nil
}

// resolveDraft fills the product's category references from the names in
// the draft. Each level is resolved under the level above it; a level
// without a name keeps the id column value.
func (c *categoryCache) resolveDraft(ctx context.Context, d *Draft) error {
	p := d.Product

	if d.CategoryName != "" {
		id, err := c.resolve(ctx, 0, d.CategoryName)
		if err != nil {
			return err
		}
		p.Category = id
	}
	if d.SubcategoryName != "" && p.Category != 0 {
		id, err := c.resolve(ctx, p.Category, d.SubcategoryName)
		if err != nil {
			return err
		}
		p.Subcategory = id
	}
	if d.TypeName != "" && p.Subcategory != 0 {
		id, err := c.resolve(ctx, p.Subcategory, d.TypeName)
		if err != nil {
			return err
		}
		p.Type = id
	}
	return nil
}
