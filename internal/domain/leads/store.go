package leads

import (
	"context"
	"errors"
	"fmt"

	"budmart/internal/db"
	"budmart/internal/ident"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

const leadColumns = `id, type, name, phone, city, street, house, datetime, status, note, created_at, updated_at`

func scanLead(row pgx.Row, extra ...any) (*Lead, error) {
	var l Lead
	dest := []any{&l.ID, &l.Type, &l.Name, &l.Phone, &l.City, &l.Street, &l.House, &l.Datetime,
		&l.Status, &l.Note, &l.CreatedAt, &l.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repository) Create(ctx context.Context, l *Lead) (*Lead, error) {
	if err := l.Prepare(); err != nil {
		return nil, err
	}

	created, err := scanLead(r.db.QueryRow(ctx, `
		INSERT INTO leads (type, name, phone, city, street, house, datetime, status, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+leadColumns,
		l.Type, l.Name, l.Phone, l.City, l.Street, l.House, l.Datetime, l.Status, l.Note))
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return created, nil
}

func statusWhere(status Status, args []any) (string, []any) {
	if status == "" {
		return "", args
	}
	args = append(args, status)
	return fmt.Sprintf(" WHERE status = $%d", len(args)), args
}

func (r *Repository) List(ctx context.Context, status Status, limit int) ([]*Lead, error) {
	if limit <= 0 || limit > ListCap {
		limit = ListCap
	}
	where, args := statusWhere(status, nil)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM leads%s ORDER BY created_at DESC, id DESC LIMIT $%d`, leadColumns, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	list := []*Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		list = append(list, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return list, nil
}

func (r *Repository) ListPage(ctx context.Context, status Status, limit, offset int) ([]*Lead, int, error) {
	where, args := statusWhere(status, nil)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM leads%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, leadColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads page: %w", err)
	}
	defer rows.Close()

	var (
		list  = []*Lead{}
		total int
	)
	for rows.Next() {
		var t int
		l, err := scanLead(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		total = t
		list = append(list, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration: %w", err)
	}

	if len(list) == 0 && offset > 0 {
		where, args := statusWhere(status, nil)
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count leads: %w", err)
		}
	}
	return list, total, nil
}

func (r *Repository) GetByID(ctx context.Context, id ident.ID) (*Lead, error) {
	l, err := scanLead(r.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lead by id: %w", err)
	}
	return l, nil
}

func (r *Repository) Update(ctx context.Context, id ident.ID, u Update) (*Lead, error) {
	if u.Status != nil && !u.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	l, err := scanLead(r.db.QueryRow(ctx, `
		UPDATE leads SET
			status = COALESCE($1, status),
			note = COALESCE($2, note),
			updated_at = now()
		WHERE id = $3
		RETURNING `+leadColumns, u.Status, u.Note, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update lead: %w", err)
	}
	return l, nil
}

func (r *Repository) Delete(ctx context.Context, id ident.ID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
