package importer

import (
	"context"
	"strings"
	"sync"
	"time"

	"budmart/internal/domain/categories"
	"budmart/internal/domain/products"
	"budmart/internal/ident"
)

type memProducts struct {
	mu     sync.Mutex
	nextID ident.ID
	byID   map[ident.ID]*products.Product
}

func newMemProducts() *memProducts {
	return &memProducts{byID: map[ident.ID]*products.Product{}}
}

func (m *memProducts) all() []*products.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*products.Product, 0, len(m.byID))
	for id := ident.ID(1); id <= m.nextID; id++ {
		if p, ok := m.byID[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (m *memProducts) ExistingNames(_ context.Context, names []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := map[string]bool{}
	for _, n := range names {
		for _, p := range m.byID {
			if strings.EqualFold(p.Name, n) {
				found[strings.ToLower(n)] = true
			}
		}
	}
	return found, nil
}

func (m *memProducts) Insert(_ context.Context, p *products.Product) (*products.Product, error) {
	p.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.SKU != nil {
		for _, other := range m.byID {
			if other.SKU != nil && *other.SKU == *p.SKU {
				return nil, products.ErrDuplicateSKU
			}
		}
	}
	m.nextID++
	c := p.Clone()
	c.ID = m.nextID
	m.byID[c.ID] = c
	return c.Clone(), nil
}

func (m *memProducts) UpdateByID(_ context.Context, p *products.Product) (bool, error) {
	p.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return false, nil
	}
	m.byID[p.ID] = p.Clone()
	return true, nil
}

func (m *memProducts) UpsertBySKU(_ context.Context, p *products.Product) (bool, error) {
	p.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.byID {
		if other.SKU != nil && *other.SKU == *p.SKU {
			c := p.Clone()
			c.ID = id
			c.SKU = other.SKU
			m.byID[id] = c
			return false, nil
		}
	}
	m.nextID++
	c := p.Clone()
	c.ID = m.nextID
	m.byID[c.ID] = c
	return true, nil
}

type memCategories struct {
	mu      sync.Mutex
	nextID  ident.ID
	list    []*categories.Category
	created int
	delay   time.Duration
}

func (m *memCategories) add(parent ident.ID, name string) ident.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.list = append(m.list, &categories.Category{ID: m.nextID, Name: name, Parent: parent})
	return m.nextID
}

func (m *memCategories) names() map[ident.ID]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[ident.ID]string{}
	for _, c := range m.list {
		out[c.ID] = c.Name
	}
	return out
}

func (m *memCategories) List(_ context.Context, _ categories.ParentFilter) ([]*categories.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*categories.Category(nil), m.list...), nil
}

func (m *memCategories) EnsureChild(_ context.Context, parent ident.ID, name string) (*categories.Category, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.list {
		if c.Parent == parent && strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	m.nextID++
	m.created++
	c := &categories.Category{ID: m.nextID, Name: name, Parent: parent}
	m.list = append(m.list, c)
	return c, nil
}

func (m *memCategories) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}
