package products

import (
	"context"
	"errors"
	"strings"
	"time"

	"budmart/internal/ident"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrDuplicateName = errors.New("a product with this name already exists")
	ErrDuplicateSKU  = errors.New("a product with this sku already exists")
	ErrEmptyName     = errors.New("product name cannot be empty")
)

type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

type Product struct {
	ID          ident.ID        `json:"_id" swaggertype:"string"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Price       decimal.Decimal `json:"price" swaggertype:"number"`
	Discount    int             `json:"discount"`
	Stock       int             `json:"stock"`
	Unit        string          `json:"unit"`
	SKU         *string         `json:"sku"`
	Description string          `json:"description"`
	Specs       Specs           `json:"specs" swaggertype:"object,string"`
	Images      []Image         `json:"images"`

	// Image and ImagePublicID mirror Images[0] for older clients.
	Image         string `json:"image"`
	ImagePublicID string `json:"imagePublicId"`

	Category    ident.ID  `json:"category" swaggertype:"string"`
	Subcategory ident.ID  `json:"subcategory" swaggertype:"string"`
	Type        ident.ID  `json:"type" swaggertype:"string"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Filter narrows List and Counts. Zero fields do not filter.
type Filter struct {
	Q           string
	Category    ident.ID
	Subcategory ident.ID
	Type        ident.ID
}

// Counts maps category node ids to the number of matching products.
type Counts struct {
	ByCategory    map[string]int `json:"byCategory"`
	BySubcategory map[string]int `json:"bySubcategory"`
	ByType        map[string]int `json:"byType"`
}

func NewCounts() *Counts {
	return &Counts{
		ByCategory:    map[string]int{},
		BySubcategory: map[string]int{},
		ByType:        map[string]int{},
	}
}

// Patch carries the settable fields of an update. Nil pointers leave the
// field unchanged; a set Optional with a zero ID clears the reference.
type Patch struct {
	Name        *string
	Price       *decimal.Decimal
	Discount    *int
	Stock       *int
	Unit        *string
	SKU         *string
	Description *string
	Specs       *Specs
	Images      *[]Image

	Category    ident.Optional
	Subcategory ident.Optional
	Type        ident.Optional
}

type Store interface {
	List(ctx context.Context, f Filter) ([]*Product, error)
	ListPage(ctx context.Context, f Filter, limit, offset int) ([]*Product, int, error)
	Counts(ctx context.Context, f Filter) (*Counts, error)
	GetByID(ctx context.Context, id ident.ID) (*Product, error)
	Create(ctx context.Context, p *Product) (*Product, error)
	Update(ctx context.Context, id ident.ID, patch Patch) (updated, previous *Product, err error)
	Delete(ctx context.Context, id ident.ID) (*Product, error)
	DeleteAll(ctx context.Context) (int64, []string, error)

	// import writes
	ExistingNames(ctx context.Context, names []string) (map[string]bool, error)
	Insert(ctx context.Context, p *Product) (*Product, error)
	UpdateByID(ctx context.Context, p *Product) (bool, error)
	UpsertBySKU(ctx context.Context, p *Product) (inserted bool, err error)
}

func (pt Patch) Apply(p *Product) {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Price != nil {
		p.Price = *pt.Price
	}
	if pt.Discount != nil {
		p.Discount = *pt.Discount
	}
	if pt.Stock != nil {
		p.Stock = *pt.Stock
	}
	if pt.Unit != nil {
		p.Unit = *pt.Unit
	}
	if pt.SKU != nil {
		sku := *pt.SKU
		p.SKU = &sku
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.Specs != nil {
		p.Specs = *pt.Specs
	}
	if pt.Images != nil {
		p.Images = append([]Image(nil), (*pt.Images)...)
	}
	if pt.Category.Set {
		p.Category = pt.Category.ID
	}
	if pt.Subcategory.Set {
		p.Subcategory = pt.Subcategory.ID
	}
	if pt.Type.Set {
		p.Type = pt.Type.ID
	}
}

// Normalize prepares a product for writing: trims text, drops images
// without a URL, mirrors the first image into the legacy fields, clamps
// numbers into their valid ranges and derives the slug.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Unit = strings.TrimSpace(p.Unit)
	p.Description = strings.TrimSpace(p.Description)
	p.Slug = slug.Make(p.Name)

	if p.SKU != nil {
		sku := strings.TrimSpace(*p.SKU)
		if sku == "" {
			p.SKU = nil
		} else {
			p.SKU = &sku
		}
	}

	if p.Price.IsNegative() {
		p.Price = decimal.Zero
	}
	p.Price = p.Price.Round(2)
	p.Discount = clamp(p.Discount, 0, 100)
	if p.Stock < 0 {
		p.Stock = 0
	}

	if p.Specs == nil {
		p.Specs = Specs{}
	}

	images := make([]Image, 0, len(p.Images))
	for _, img := range p.Images {
		img.URL = strings.TrimSpace(img.URL)
		img.PublicID = strings.TrimSpace(img.PublicID)
		if img.URL == "" {
			continue
		}
		images = append(images, img)
	}
	p.Images = images
	if len(images) > 0 {
		p.Image = images[0].URL
		p.ImagePublicID = images[0].PublicID
	} else {
		p.Image = ""
		p.ImagePublicID = ""
	}
}

// Clone copies p deeply enough that mutating the copy's slices does not
// affect p.
func (p *Product) Clone() *Product {
	c := *p
	c.Specs = append(Specs(nil), p.Specs...)
	c.Images = append([]Image(nil), p.Images...)
	if p.SKU != nil {
		sku := *p.SKU
		c.SKU = &sku
	}
	return &c
}

// PublicIDs lists the image store ids referenced by p, without duplicates.
func (p *Product) PublicIDs() []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, img := range p.Images {
		add(img.PublicID)
	}
	add(p.ImagePublicID)
	return ids
}

// RemovedPublicIDs returns the ids referenced by old but not by updated.
func RemovedPublicIDs(old, updated *Product) []string {
	keep := map[string]bool{}
	for _, id := range updated.PublicIDs() {
		keep[id] = true
	}
	var removed []string
	for _, id := range old.PublicIDs() {
		if !keep[id] {
			removed = append(removed, id)
		}
	}
	return removed
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike makes s match literally inside a LIKE pattern using '\' as
// the escape character.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func clamp(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
