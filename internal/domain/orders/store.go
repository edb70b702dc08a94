package orders

import (
	"context"
	"errors"
	"fmt"

	"budmart/internal/db"
	"budmart/internal/ident"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	db  db.TxBeginner
	gen *NumberGenerator
}

func NewRepository(q db.TxBeginner, gen *NumberGenerator) *Repository {
	if gen == nil {
		panic("orders: NumberGenerator is nil")
	}
	return &Repository{db: q, gen: gen}
}

const orderColumns = `id, number, customer_name, phone, address, items, total_price, status, note, created_at, updated_at`

func scanOrder(row pgx.Row, extra ...any) (*Order, error) {
	var o Order
	dest := []any{&o.ID, &o.Number, &o.CustomerName, &o.Phone, &o.Address, &o.Items, &o.TotalPrice,
		&o.Status, &o.Note, &o.CreatedAt, &o.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if o.Items == nil {
		o.Items = []Item{}
	}
	return &o, nil
}

// Create prices the order from the products as they are now, inside one
// transaction, and stores the snapshot with a public order number.
func (r *Repository) Create(ctx context.Context, in NewOrder) (*Order, error) {
	var created *Order
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		catalog, err := loadPrices(ctx, tx, ProductIDs(in.Lines))
		if err != nil {
			return err
		}
		items, total, err := Price(in.Lines, catalog)
		if err != nil {
			return err
		}

		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO orders (customer_name, phone, address, items, total_price, status, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			in.CustomerName, in.Phone, in.Address, items, total, StatusNew, in.Note).Scan(&id); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		number, err := r.gen.Generate(id)
		if err != nil {
			return err
		}
		created, err = scanOrder(tx.QueryRow(ctx,
			`UPDATE orders SET number = $1 WHERE id = $2 RETURNING `+orderColumns, number, id))
		if err != nil {
			return fmt.Errorf("set order number: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func loadPrices(ctx context.Context, q db.Querier, ids []int64) (map[ident.ID]CatalogPrice, error) {
	rows, err := q.Query(ctx, `SELECT id, name, price FROM products WHERE id = ANY($1) FOR SHARE`, ids)
	if err != nil {
		return nil, fmt.Errorf("load product prices: %w", err)
	}
	defer rows.Close()

	catalog := make(map[ident.ID]CatalogPrice, len(ids))
	for rows.Next() {
		var (
			id ident.ID
			p  CatalogPrice
		)
		if err := rows.Scan(&id, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product price: %w", err)
		}
		catalog[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return catalog, nil
}

func statusWhere(status Status, args []any) (string, []any) {
	if status == "" {
		return "", args
	}
	args = append(args, status)
	return fmt.Sprintf(" WHERE status = $%d", len(args)), args
}

// List returns the most recent orders, newest first, at most limit of them.
func (r *Repository) List(ctx context.Context, status Status, limit int) ([]*Order, error) {
	if limit <= 0 || limit > ListCap {
		limit = ListCap
	}
	where, args := statusWhere(status, nil)
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		orderColumns, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	list := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return list, nil
}

func (r *Repository) ListPage(ctx context.Context, status Status, limit, offset int) ([]*Order, int, error) {
	where, args := statusWhere(status, nil)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM orders%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, orderColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders page: %w", err)
	}
	defer rows.Close()

	var (
		list  = []*Order{}
		total int
	)
	for rows.Next() {
		var t int
		o, err := scanOrder(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		total = t
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration: %w", err)
	}

	if len(list) == 0 && offset > 0 {
		where, args := statusWhere(status, nil)
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count orders: %w", err)
		}
	}
	return list, total, nil
}

func (r *Repository) GetByID(ctx context.Context, id ident.ID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// Update sets status and/or note. Totals and items are never recomputed.
func (r *Repository) Update(ctx context.Context, id ident.ID, u Update) (*Order, error) {
	if u.Status != nil && !u.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	o, err := scanOrder(r.db.QueryRow(ctx, `
		UPDATE orders SET
			status = COALESCE($1, status),
			note = COALESCE($2, note),
			updated_at = now()
		WHERE id = $3
		RETURNING `+orderColumns, u.Status, u.Note, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

func (r *Repository) Delete(ctx context.Context, id ident.ID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
