package storage

import (
	"context"
	"fmt"

	"budmart/internal/domain/banners"
	"budmart/internal/domain/categories"
	"budmart/internal/domain/leads"
	"budmart/internal/domain/orders"
	"budmart/internal/domain/products"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool       *pgxpool.Pool
	Categories categories.Store
	Products   products.Store
	Orders     orders.Store
	Leads      leads.Store
	Banners    banners.Store
}

func NewContainer(db *pgxpool.Pool, numbers *orders.NumberGenerator) *Container {
	return &Container{
		pool:       db,
		Categories: categories.NewRepository(db),
		Products:   products.NewRepository(db),
		Orders:     orders.NewRepository(db, numbers),
		Leads:      leads.NewRepository(db),
		Banners:    banners.NewRepository(db),
	}
}

// Ping checks the database connection. A container built without a pool
// (tests) is always healthy.
func (c *Container) Ping(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// PoolStats is published on /debug/vars.
func (c *Container) PoolStats() map[string]int64 {
	if c.pool == nil {
		return map[string]int64{}
	}
	s := c.pool.Stat()
	return map[string]int64{
		"total_conns":    int64(s.TotalConns()),
		"idle_conns":     int64(s.IdleConns()),
		"acquired_conns": int64(s.AcquiredConns()),
		"max_conns":      int64(s.MaxConns()),
		"acquire_count":  s.AcquireCount(),
	}
}
