package categories

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

const categoryColumns = `id, name, slug, description, parent_id, created_at, updated_at`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Parent, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) List(ctx context.Context, f ParentFilter) ([]*Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	var args []any
	switch {
	case f.Set && f.Parent == 0:
		query += ` WHERE parent_id IS NULL`
	case f.Set:
		query += ` WHERE parent_id = $1`
		args = append(args, f.Parent)
	}
	query += ` ORDER BY lower(name), id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	list := []*Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return list, nil
}

func (r *Repository) GetByID(ctx context.Context, id ident.ID) (*Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	return c, nil
}

// Create relies on the (parent, lower(name)) unique index for sibling
// uniqueness and on the foreign key for parent existence.
func (r *Repository) Create(ctx context.Context, c *Category) (*Category, error) {
	if err := c.Prepare(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO categories (name, slug, description, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + categoryColumns

	created, err := scanCategory(r.db.QueryRow(ctx, query, c.Name, c.Slug, c.Description, c.Parent))
	if err != nil {
		return nil, translateWriteError("create category", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, c *Category) (*Category, error) {
	if err := c.Prepare(); err != nil {
		return nil, err
	}

	var updated *Category
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if c.Parent != 0 {
			cycle, err := reachesAncestor(ctx, tx, c.Parent, c.ID)
			if err != nil {
				return err
			}
			if cycle {
				return ErrCycle
			}
		}

		query := `
			UPDATE categories
			SET name = $1, slug = $2, description = $3, parent_id = $4, updated_at = now()
			WHERE id = $5
			RETURNING ` + categoryColumns

		var err error
		updated, err = scanCategory(tx.QueryRow(ctx, query, c.Name, c.Slug, c.Description, c.Parent, c.ID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return translateWriteError("update category", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// reachesAncestor walks up from start and reports whether target is on the path.
func reachesAncestor(ctx context.Context, q db.Querier, start, target ident.ID) (bool, error) {
	query := `
		WITH RECURSIVE up AS (
			SELECT id, parent_id FROM categories WHERE id = $1
			UNION
			SELECT c.id, c.parent_id FROM categories c JOIN up ON c.id = up.parent_id
		)
		SELECT EXISTS(SELECT 1 FROM up WHERE id = $2)`

	var found bool
	if err := q.QueryRow(ctx, query, start, target).Scan(&found); err != nil {
		return false, fmt.Errorf("check category ancestry: %w", err)
	}
	return found, nil
}

// Delete refuses to remove a node with children. Products pointing at the
// node keep their reference.
func (r *Repository) Delete(ctx context.Context, id ident.ID) error {
	var hasChildren bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE parent_id = $1)`, id).Scan(&hasChildren); err != nil {
		return fmt.Errorf("check children: %w", err)
	}
	if hasChildren {
		return ErrHasChildren
	}

	cmd, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			// a child was inserted between the check and the delete
			return ErrHasChildren
		}
		return fmt.Errorf("delete category: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reassign points every product referencing from at to instead, at any of
// the three levels. It is used to merge duplicate categories.
func (r *Repository) Reassign(ctx context.Context, from, to ident.ID) (int64, error) {
	if from == to {
		return 0, ErrSameCategory
	}

	var modified int64
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var n int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM categories WHERE id = ANY($1)`, []int64{int64(from), int64(to)}).Scan(&n); err != nil {
			return fmt.Errorf("check categories: %w", err)
		}
		if n != 2 {
			return ErrNotFound
		}

		cmd, err := tx.Exec(ctx, `
			UPDATE products SET
				category_id    = CASE WHEN category_id = $1 THEN $2 ELSE category_id END,
				subcategory_id = CASE WHEN subcategory_id = $1 THEN $2 ELSE subcategory_id END,
				type_id        = CASE WHEN type_id = $1 THEN $2 ELSE type_id END,
				updated_at     = now()
			WHERE category_id = $1 OR subcategory_id = $1 OR type_id = $1`, from, to)
		if err != nil {
			return fmt.Errorf("reassign products: %w", err)
		}
		modified = cmd.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return modified, nil
}

// EnsureChild returns the node called name under parent, creating it when
// missing. Two concurrent callers may both try to insert; the loser hits the
// unique index and re-reads the winner's row.
func (r *Repository) EnsureChild(ctx context.Context, parent ident.ID, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	c, err := r.findChild(ctx, parent, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	c, err = r.Create(ctx, &Category{Name: name, Parent: parent})
	if errors.Is(err, ErrConflict) {
		return r.findChild(ctx, parent, name)
	}
	return c, err
}

func (r *Repository) findChild(ctx context.Context, parent ident.ID, name string) (*Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE COALESCE(parent_id, 0) = $1 AND lower(name) = lower($2)
		LIMIT 1`

	c, err := scanCategory(r.db.QueryRow(ctx, query, int64(parent), name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

func translateWriteError(op string, err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return ErrConflict
	case db.IsForeignKeyViolation(err):
		return ErrInvalidParent
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
