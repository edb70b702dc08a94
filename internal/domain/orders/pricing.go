package orders

import (
	"fmt"

	"budmart/internal/ident"

	"github.com/shopspring/decimal"
)

// CatalogPrice is the live catalog data needed to price one line.
type CatalogPrice struct {
	Name  string
	Price decimal.Decimal
}

// Price snapshots lines against the catalog and returns the items with
// their total, the sum of price × quantity.
func Price(lines []Line, catalog map[ident.ID]CatalogPrice) ([]Item, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, ErrEmptyOrder
	}

	items := make([]Item, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, decimal.Zero, ErrInvalidQuantity
		}
		p, ok := catalog[l.Product]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownProduct, l.Product)
		}
		items = append(items, Item{
			Product:  l.Product,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: l.Quantity,
		})
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return items, total.Round(2), nil
}

// ProductIDs lists the distinct products referenced by lines.
func ProductIDs(lines []Line) []int64 {
	seen := map[ident.ID]bool{}
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if !seen[l.Product] {
			seen[l.Product] = true
			ids = append(ids, int64(l.Product))
		}
	}
	return ids
}
