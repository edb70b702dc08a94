package banners

import (
	"context"
	"errors"
	"fmt"

	"budmart/internal/db"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	db db.TxBeginner
}

func NewRepository(q db.TxBeginner) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Get(ctx context.Context, key string) (*Banner, error) {
	return get(ctx, r.db, key, false)
}

func get(ctx context.Context, q db.Querier, key string, lock bool) (*Banner, error) {
	query := `SELECT key, items, updated_at FROM banners WHERE key = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	b := &Banner{}
	err := q.QueryRow(ctx, query, key).Scan(&b.Key, &b.Items, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &Banner{Key: key, Items: []Item{}}, nil
		}
		return nil, fmt.Errorf("get banner: %w", err)
	}
	if b.Items == nil {
		b.Items = []Item{}
	}
	return b, nil
}

func (r *Repository) Save(ctx context.Context, b *Banner) (*Banner, *Banner, error) {
	if err := b.Prepare(); err != nil {
		return nil, nil, err
	}

	var saved, previous *Banner
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		if previous, err = get(ctx, tx, b.Key, true); err != nil {
			return err
		}

		saved = &Banner{}
		err = tx.QueryRow(ctx, `
			INSERT INTO banners (key, items) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET items = EXCLUDED.items, updated_at = now()
			RETURNING key, items, updated_at`, b.Key, b.Items).Scan(&saved.Key, &saved.Items, &saved.UpdatedAt)
		if err != nil {
			return fmt.Errorf("save banner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return saved, previous, nil
}
