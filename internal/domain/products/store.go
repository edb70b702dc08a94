package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budmart/internal/db"
	"budmart/internal/ident"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	db db.TxBeginner
}

func NewRepository(q db.TxBeginner) *Repository {
	return &Repository{db: q}
}

const productColumns = `id, name, slug, price, discount, stock, unit, sku, description, specs, images,
	image, image_public_id, category_id, subcategory_id, type_id, created_at, updated_at`

// writeColumns lines up with writeArgs.
const writeColumns = `name, slug, price, discount, stock, unit, sku, description, specs, images,
	image, image_public_id, category_id, subcategory_id, type_id`

func writeArgs(p *Product) []any {
	specs := []Spec(p.Specs)
	if specs == nil {
		specs = []Spec{}
	}
	images := p.Images
	if images == nil {
		images = []Image{}
	}
	return []any{
		p.Name, p.Slug, p.Price, p.Discount, p.Stock, p.Unit, p.SKU, p.Description, specs, images,
		p.Image, p.ImagePublicID, p.Category, p.Subcategory, p.Type,
	}
}

func scanProduct(row pgx.Row, extra ...any) (*Product, error) {
	var (
		p     Product
		specs []Spec
	)
	dest := []any{
		&p.ID, &p.Name, &p.Slug, &p.Price, &p.Discount, &p.Stock, &p.Unit, &p.SKU, &p.Description, &specs, &p.Images,
		&p.Image, &p.ImagePublicID, &p.Category, &p.Subcategory, &p.Type, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.Specs = Specs(specs)
	if p.Specs == nil {
		p.Specs = Specs{}
	}
	if p.Images == nil {
		p.Images = []Image{}
	}
	return &p, nil
}

// where renders f as a WHERE clause, numbering placeholders after args.
func (f Filter) where(args []any) (string, []any) {
	var conds []string
	if q := strings.TrimSpace(f.Q); q != "" {
		args = append(args, "%"+EscapeLike(q)+"%")
		conds = append(conds, fmt.Sprintf(`name ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if f.Category != 0 {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf(`category_id = $%d`, len(args)))
	}
	if f.Subcategory != 0 {
		args = append(args, f.Subcategory)
		conds = append(conds, fmt.Sprintf(`subcategory_id = $%d`, len(args)))
	}
	if f.Type != 0 {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf(`type_id = $%d`, len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns every matching product, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]*Product, error) {
	where, args := f.where(nil)
	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	list := []*Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return list, nil
}

// ListPage returns one page and the total number of matches. It uses
// COUNT(*) OVER() and falls back to a separate count when the page is past
// the end.
func (r *Repository) ListPage(ctx context.Context, f Filter, limit, offset int) ([]*Product, int, error) {
	where, args := f.where(nil)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM products%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, productColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products page: %w", err)
	}
	defer rows.Close()

	var (
		list  = []*Product{}
		total int
	)
	for rows.Next() {
		var t int
		p, err := scanProduct(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		total = t
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration: %w", err)
	}

	if len(list) == 0 && offset > 0 {
		where, args := f.where(nil)
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count products: %w", err)
		}
	}
	return list, total, nil
}

// Counts computes per-node product counts for all three levels in one
// round trip over the filtered set.
func (r *Repository) Counts(ctx context.Context, f Filter) (*Counts, error) {
	where, args := f.where(nil)
	query := `
		WITH matched AS (
			SELECT category_id, subcategory_id, type_id FROM products` + where + `
		)
		SELECT 'category', category_id, COUNT(*) FROM matched WHERE category_id IS NOT NULL GROUP BY category_id
		UNION ALL
		SELECT 'subcategory', subcategory_id, COUNT(*) FROM matched WHERE subcategory_id IS NOT NULL GROUP BY subcategory_id
		UNION ALL
		SELECT 'type', type_id, COUNT(*) FROM matched WHERE type_id IS NOT NULL GROUP BY type_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	defer rows.Close()

	counts := NewCounts()
	for rows.Next() {
		var (
			level string
			id    ident.ID
			n     int
		)
		if err := rows.Scan(&level, &id, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts.add(level, id, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return counts, nil
}

func (c *Counts) add(level string, id ident.ID, n int) {
	switch level {
	case "category":
		c.ByCategory[id.String()] = n
	case "subcategory":
		c.BySubcategory[id.String()] = n
	case "type":
		c.ByType[id.String()] = n
	}
}

func (r *Repository) GetByID(ctx context.Context, id ident.ID) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// Create rejects a name already used by another product, compared
// case-insensitively. A transaction-scoped advisory lock on the lowered name
// serializes concurrent creates of the same name.
func (r *Repository) Create(ctx context.Context, p *Product) (*Product, error) {
	p.Normalize()
	if p.Name == "" {
		return nil, ErrEmptyName
	}

	var created *Product
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(lower($1)))`, p.Name); err != nil {
			return fmt.Errorf("lock product name: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE lower(name) = lower($1))`, p.Name).Scan(&exists); err != nil {
			return fmt.Errorf("check product name: %w", err)
		}
		if exists {
			return ErrDuplicateName
		}

		var err error
		created, err = insert(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Insert writes p without the name check. Used by the importer, which
// deduplicates names itself.
func (r *Repository) Insert(ctx context.Context, p *Product) (*Product, error) {
	p.Normalize()
	if p.Name == "" {
		return nil, ErrEmptyName
	}
	return insert(ctx, r.db, p)
}

func insert(ctx context.Context, q db.Querier, p *Product) (*Product, error) {
	query := `
		INSERT INTO products (` + writeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + productColumns

	created, err := scanProduct(q.QueryRow(ctx, query, writeArgs(p)...))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateSKU
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

const updateQuery = `
	UPDATE products SET
		name = $1, slug = $2, price = $3, discount = $4, stock = $5, unit = $6, sku = $7,
		description = $8, specs = $9, images = $10, image = $11, image_public_id = $12,
		category_id = $13, subcategory_id = $14, type_id = $15, updated_at = now()
	WHERE id = $16
	RETURNING ` + productColumns

// Update applies patch to the stored product and returns the new and the
// previous state so callers can diff images. Renaming onto an existing
// name is allowed.
func (r *Repository) Update(ctx context.Context, id ident.ID, patch Patch) (*Product, *Product, error) {
	var updated, previous *Product
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		cur, err := scanProduct(tx.QueryRow(ctx,
			`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load product: %w", err)
		}
		previous = cur.Clone()

		patch.Apply(cur)
		cur.Normalize()
		if cur.Name == "" {
			return ErrEmptyName
		}

		updated, err = scanProduct(tx.QueryRow(ctx, updateQuery, append(writeArgs(cur), id)...))
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateSKU
			}
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, previous, nil
}

// UpdateByID overwrites the settable fields of product p.ID. It reports
// false when no such product exists.
func (r *Repository) UpdateByID(ctx context.Context, p *Product) (bool, error) {
	p.Normalize()
	if p.Name == "" {
		return false, ErrEmptyName
	}

	_, err := scanProduct(r.db.QueryRow(ctx, updateQuery, append(writeArgs(p), p.ID)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		if db.IsUniqueViolation(err) {
			return false, ErrDuplicateSKU
		}
		return false, fmt.Errorf("update product by id: %w", err)
	}
	return true, nil
}

// UpsertBySKU inserts p or overwrites the product holding the same sku.
// The sku itself is never rewritten.
func (r *Repository) UpsertBySKU(ctx context.Context, p *Product) (bool, error) {
	p.Normalize()
	if p.Name == "" {
		return false, ErrEmptyName
	}
	if p.SKU == nil {
		return false, errors.New("upsert by sku: sku is empty")
	}

	query := `
		INSERT INTO products (` + writeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (sku) WHERE sku IS NOT NULL DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			price = EXCLUDED.price,
			discount = EXCLUDED.discount,
			stock = EXCLUDED.stock,
			unit = EXCLUDED.unit,
			description = EXCLUDED.description,
			specs = EXCLUDED.specs,
			images = EXCLUDED.images,
			image = EXCLUDED.image,
			image_public_id = EXCLUDED.image_public_id,
			category_id = EXCLUDED.category_id,
			subcategory_id = EXCLUDED.subcategory_id,
			type_id = EXCLUDED.type_id,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	if err := r.db.QueryRow(ctx, query, writeArgs(p)...).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert product by sku: %w", err)
	}
	return inserted, nil
}

// Delete removes the product and returns it so its images can be cleaned up.
func (r *Repository) Delete(ctx context.Context, id ident.ID) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `DELETE FROM products WHERE id = $1 RETURNING `+productColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete product: %w", err)
	}
	return p, nil
}

// DeleteAll empties the catalog, returning the number of removed rows and
// every image public id they referenced.
func (r *Repository) DeleteAll(ctx context.Context) (int64, []string, error) {
	rows, err := r.db.Query(ctx, `DELETE FROM products RETURNING images, image_public_id`)
	if err != nil {
		return 0, nil, fmt.Errorf("delete all products: %w", err)
	}
	defer rows.Close()

	var (
		n   int64
		ids []string
	)
	seen := map[string]bool{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.Images, &p.ImagePublicID); err != nil {
			return 0, nil, fmt.Errorf("scan deleted product: %w", err)
		}
		n++
		for _, id := range p.PublicIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("rows iteration: %w", err)
	}
	return n, ids, nil
}

// ExistingNames reports which of names are already used by a product,
// compared case-insensitively. Keys are strings.ToLower of the input.
func (r *Repository) ExistingNames(ctx context.Context, names []string) (map[string]bool, error) {
	found := map[string]bool{}
	if len(names) == 0 {
		return found, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT n FROM unnest($1::text[]) AS n
		WHERE EXISTS (SELECT 1 FROM products WHERE lower(name) = lower(n))`, names)
	if err != nil {
		return nil, fmt.Errorf("check existing names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		found[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return found, nil
}
