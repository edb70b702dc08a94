package main

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"budmart/internal/domain/banners"
	"budmart/internal/domain/categories"
	"budmart/internal/domain/leads"
	"budmart/internal/domain/orders"
	"budmart/internal/domain/products"
	"budmart/internal/ident"
)

// memProducts is an in-memory products.Store.
type memProducts struct {
	mu     sync.Mutex
	nextID ident.ID
	items  map[ident.ID]*products.Product
}

func newMemProducts() *memProducts {
	return &memProducts{items: map[ident.ID]*products.Product{}}
}

func (m *memProducts) matches(p *products.Product, f products.Filter) bool {
	if f.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Q)) {
		return false
	}
	if f.Category != 0 && p.Category != f.Category {
		return false
	}
	if f.Subcategory != 0 && p.Subcategory != f.Subcategory {
		return false
	}
	if f.Type != 0 && p.Type != f.Type {
		return false
	}
	return true
}

func (m *memProducts) List(_ context.Context, f products.Filter) ([]*products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []*products.Product{}
	for _, p := range m.items {
		if m.matches(p, f) {
			list = append(list, p.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (m *memProducts) ListPage(ctx context.Context, f products.Filter, limit, offset int) ([]*products.Product, int, error) {
	list, _ := m.List(ctx, f)
	total := len(list)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return list[offset:end], total, nil
}

func (m *memProducts) Counts(ctx context.Context, f products.Filter) (*products.Counts, error) {
	list, _ := m.List(ctx, f)
	c := products.NewCounts()
	for _, p := range list {
		if p.Category != 0 {
			c.ByCategory[p.Category.String()]++
		}
		if p.Subcategory != 0 {
			c.BySubcategory[p.Subcategory.String()]++
		}
		if p.Type != 0 {
			c.ByType[p.Type.String()]++
		}
	}
	return c, nil
}

func (m *memProducts) GetByID(_ context.Context, id ident.ID) (*products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.items[id]
	if !ok {
		return nil, products.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memProducts) skuTaken(sku *string, except ident.ID) bool {
	if sku == nil {
		return false
	}
	for id, p := range m.items {
		if id != except && p.SKU != nil && *p.SKU == *sku {
			return true
		}
	}
	return false
}

func (m *memProducts) insertLocked(p *products.Product) (*products.Product, error) {
	p.Normalize()
	if p.Name == "" {
		return nil, products.ErrEmptyName
	}
	if m.skuTaken(p.SKU, 0) {
		return nil, products.ErrDuplicateSKU
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.items[p.ID] = p.Clone()
	return p.Clone(), nil
}

func (m *memProducts) Create(_ context.Context, p *products.Product) (*products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := strings.ToLower(strings.TrimSpace(p.Name))
	for _, existing := range m.items {
		if strings.ToLower(existing.Name) == name {
			return nil, products.ErrDuplicateName
		}
	}
	return m.insertLocked(p)
}

func (m *memProducts) Insert(_ context.Context, p *products.Product) (*products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(p)
}

func (m *memProducts) Update(_ context.Context, id ident.ID, patch products.Patch) (*products.Product, *products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[id]
	if !ok {
		return nil, nil, products.ErrNotFound
	}
	previous := stored.Clone()
	updated := stored.Clone()
	patch.Apply(updated)
	updated.Normalize()
	if updated.Name == "" {
		return nil, nil, products.ErrEmptyName
	}
	if m.skuTaken(updated.SKU, id) {
		return nil, nil, products.ErrDuplicateSKU
	}
	updated.UpdatedAt = time.Now()
	m.items[id] = updated.Clone()
	return updated, previous, nil
}

func (m *memProducts) UpdateByID(_ context.Context, p *products.Product) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[p.ID]
	if !ok {
		return false, nil
	}
	p.Normalize()
	if m.skuTaken(p.SKU, p.ID) {
		return false, products.ErrDuplicateSKU
	}
	p.CreatedAt = stored.CreatedAt
	p.UpdatedAt = time.Now()
	m.items[p.ID] = p.Clone()
	return true, nil
}

func (m *memProducts) UpsertBySKU(_ context.Context, p *products.Product) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, stored := range m.items {
		if stored.SKU != nil && p.SKU != nil && *stored.SKU == *p.SKU {
			p.Normalize()
			p.ID = id
			p.SKU = stored.SKU
			p.CreatedAt = stored.CreatedAt
			p.UpdatedAt = time.Now()
			m.items[id] = p.Clone()
			return false, nil
		}
	}
	_, err := m.insertLocked(p)
	return err == nil, err
}

func (m *memProducts) Delete(_ context.Context, id ident.ID) (*products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.items[id]
	if !ok {
		return nil, products.ErrNotFound
	}
	delete(m.items, id)
	return p, nil
}

func (m *memProducts) DeleteAll(_ context.Context) (int64, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, p := range m.items {
		ids = append(ids, p.PublicIDs()...)
	}
	n := int64(len(m.items))
	m.items = map[ident.ID]*products.Product{}
	return n, ids, nil
}

func (m *memProducts) ExistingNames(_ context.Context, names []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := map[string]bool{}
	for _, n := range names {
		for _, p := range m.items {
			if strings.EqualFold(p.Name, n) {
				existing[strings.ToLower(n)] = true
			}
		}
	}
	return existing, nil
}

func (m *memProducts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memProducts) setPrice(id ident.ID, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].Price = mustDecimal(price)
}

// memCategories is an in-memory categories.Store. Reassign rewrites the
// products held by the linked memProducts.
type memCategories struct {
	mu       sync.Mutex
	nextID   ident.ID
	items    map[ident.ID]*categories.Category
	products *memProducts
}

func newMemCategories(p *memProducts) *memCategories {
	return &memCategories{items: map[ident.ID]*categories.Category{}, products: p}
}

func (m *memCategories) List(_ context.Context, f categories.ParentFilter) ([]*categories.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []*categories.Category{}
	for _, c := range m.items {
		if f.Set && c.Parent != f.Parent {
			continue
		}
		cp := *c
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memCategories) GetByID(_ context.Context, id ident.ID) (*categories.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.items[id]
	if !ok {
		return nil, categories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCategories) siblingTaken(parent ident.ID, name string, except ident.ID) bool {
	for id, c := range m.items {
		if id != except && c.Parent == parent && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (m *memCategories) Create(_ context.Context, c *categories.Category) (*categories.Category, error) {
	if err := c.Prepare(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[c.Parent]; c.Parent != 0 && !ok {
		return nil, categories.ErrInvalidParent
	}
	if m.siblingTaken(c.Parent, c.Name, 0) {
		return nil, categories.ErrConflict
	}
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.items[c.ID] = &cp
	return c, nil
}

func (m *memCategories) Update(_ context.Context, c *categories.Category) (*categories.Category, error) {
	if err := c.Prepare(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[c.ID]; !ok {
		return nil, categories.ErrNotFound
	}
	if _, ok := m.items[c.Parent]; c.Parent != 0 && !ok {
		return nil, categories.ErrInvalidParent
	}
	parentOf := func(id ident.ID) (ident.ID, bool) {
		n, ok := m.items[id]
		if !ok {
			return 0, false
		}
		return n.Parent, true
	}
	if categories.CreatesCycle(parentOf, c.ID, c.Parent) {
		return nil, categories.ErrCycle
	}
	if m.siblingTaken(c.Parent, c.Name, c.ID) {
		return nil, categories.ErrConflict
	}
	c.UpdatedAt = time.Now()
	cp := *c
	m.items[c.ID] = &cp
	return c, nil
}

func (m *memCategories) Delete(_ context.Context, id ident.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return categories.ErrNotFound
	}
	for _, c := range m.items {
		if c.Parent == id {
			return categories.ErrHasChildren
		}
	}
	delete(m.items, id)
	return nil
}

func (m *memCategories) Reassign(_ context.Context, from, to ident.ID) (int64, error) {
	if from == to {
		return 0, categories.ErrSameCategory
	}

	m.mu.Lock()
	_, okFrom := m.items[from]
	_, okTo := m.items[to]
	m.mu.Unlock()
	if !okFrom || !okTo {
		return 0, categories.ErrNotFound
	}

	m.products.mu.Lock()
	defer m.products.mu.Unlock()

	var n int64
	for _, p := range m.products.items {
		changed := false
		for _, ref := range []*ident.ID{&p.Category, &p.Subcategory, &p.Type} {
			if *ref == from {
				*ref = to
				changed = true
			}
		}
		if changed {
			n++
		}
	}
	return n, nil
}

func (m *memCategories) EnsureChild(_ context.Context, parent ident.ID, name string) (*categories.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.items {
		if c.Parent == parent && strings.EqualFold(c.Name, name) {
			cp := *c
			return &cp, nil
		}
	}
	c := &categories.Category{Name: name, Parent: parent}
	if err := c.Prepare(); err != nil {
		return nil, err
	}
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.items[c.ID] = &cp
	return c, nil
}

// memOrders prices orders from the linked memProducts.
type memOrders struct {
	mu       sync.Mutex
	nextID   ident.ID
	items    map[ident.ID]*orders.Order
	products *memProducts
	numbers  *orders.NumberGenerator
}

func newMemOrders(p *memProducts, numbers *orders.NumberGenerator) *memOrders {
	return &memOrders{items: map[ident.ID]*orders.Order{}, products: p, numbers: numbers}
}

func (m *memOrders) Create(_ context.Context, in orders.NewOrder) (*orders.Order, error) {
	catalog := map[ident.ID]orders.CatalogPrice{}
	m.products.mu.Lock()
	for _, id := range orders.ProductIDs(in.Lines) {
		if p, ok := m.products.items[ident.ID(id)]; ok {
			catalog[p.ID] = orders.CatalogPrice{Name: p.Name, Price: p.Price}
		}
	}
	m.products.mu.Unlock()

	items, total, err := orders.Price(in.Lines, catalog)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	number, err := m.numbers.Generate(int64(m.nextID))
	if err != nil {
		return nil, err
	}
	o := &orders.Order{
		ID:           m.nextID,
		Number:       number,
		CustomerName: in.CustomerName,
		Phone:        in.Phone,
		Address:      in.Address,
		Items:        items,
		TotalPrice:   total,
		Status:       orders.StatusNew,
		Note:         in.Note,
		CreatedAt:    time.Now(),
	}
	o.UpdatedAt = o.CreatedAt
	cp := *o
	m.items[o.ID] = &cp
	return o, nil
}

func (m *memOrders) List(ctx context.Context, status orders.Status, limit int) ([]*orders.Order, error) {
	list, _, err := m.ListPage(ctx, status, limit, 0)
	return list, err
}

func (m *memOrders) ListPage(_ context.Context, status orders.Status, limit, offset int) ([]*orders.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []*orders.Order{}
	for _, o := range m.items {
		if status == "" || o.Status == status {
			cp := *o
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	total := len(list)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return list[offset:end], total, nil
}

func (m *memOrders) GetByID(_ context.Context, id ident.ID) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.items[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) Update(_ context.Context, id ident.ID, u orders.Update) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.items[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.Note != nil {
		o.Note = *u.Note
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) Delete(_ context.Context, id ident.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return orders.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type memLeads struct {
	mu     sync.Mutex
	nextID ident.ID
	items  map[ident.ID]*leads.Lead
}

func newMemLeads() *memLeads {
	return &memLeads{items: map[ident.ID]*leads.Lead{}}
}

func (m *memLeads) Create(_ context.Context, l *leads.Lead) (*leads.Lead, error) {
	if err := l.Prepare(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	l.ID = m.nextID
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	m.items[l.ID] = &cp
	return l, nil
}

func (m *memLeads) List(ctx context.Context, status leads.Status, limit int) ([]*leads.Lead, error) {
	list, _, err := m.ListPage(ctx, status, limit, 0)
	return list, err
}

func (m *memLeads) ListPage(_ context.Context, status leads.Status, limit, offset int) ([]*leads.Lead, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []*leads.Lead{}
	for _, l := range m.items {
		if status == "" || l.Status == status {
			cp := *l
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	total := len(list)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return list[offset:end], total, nil
}

func (m *memLeads) GetByID(_ context.Context, id ident.ID) (*leads.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.items[id]
	if !ok {
		return nil, leads.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeads) Update(_ context.Context, id ident.ID, u leads.Update) (*leads.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.items[id]
	if !ok {
		return nil, leads.ErrNotFound
	}
	if u.Status != nil {
		l.Status = *u.Status
	}
	if u.Note != nil {
		l.Note = *u.Note
	}
	cp := *l
	return &cp, nil
}

func (m *memLeads) Delete(_ context.Context, id ident.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return leads.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type memBanners struct {
	mu    sync.Mutex
	items map[string]*banners.Banner
}

func newMemBanners() *memBanners {
	return &memBanners{items: map[string]*banners.Banner{}}
}

func (m *memBanners) Get(_ context.Context, key string) (*banners.Banner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.items[key]
	if !ok {
		return &banners.Banner{Key: key, Items: []banners.Item{}}, nil
	}
	cp := *b
	cp.Items = append([]banners.Item{}, b.Items...)
	return &cp, nil
}

func (m *memBanners) Save(ctx context.Context, b *banners.Banner) (*banners.Banner, *banners.Banner, error) {
	if err := b.Prepare(); err != nil {
		return nil, nil, err
	}
	previous, _ := m.Get(ctx, b.Key)

	m.mu.Lock()
	defer m.mu.Unlock()

	b.UpdatedAt = time.Now()
	cp := *b
	cp.Items = append([]banners.Item{}, b.Items...)
	m.items[b.Key] = &cp
	return b, previous, nil
}

// recordingCleaner captures the image ids handlers queue for deletion.
type recordingCleaner struct {
	mu  sync.Mutex
	ids []string
}

func (c *recordingCleaner) Enqueue(publicIDs ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, publicIDs...)
	return len(publicIDs)
}

func (c *recordingCleaner) queued() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}
