package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"budmart/internal/domain/products"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProductStore is the write side of the catalog used by imports.
type ProductStore interface {
	ExistingNames(ctx context.Context, names []string) (map[string]bool, error)
	Insert(ctx context.Context, p *products.Product) (*products.Product, error)
	UpdateByID(ctx context.Context, p *products.Product) (bool, error)
	UpsertBySKU(ctx context.Context, p *products.Product) (bool, error)
}

const defaultConcurrency = 8

type RowError struct {
	Line  int    `json:"line"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// Summary reports the outcome of an import. Rows are independent: a failed
// row is listed in Errors and does not undo or stop the others.
type Summary struct {
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors"`
}

type outcome int

const (
	inserted outcome = iota
	updated
	skipped
)

// recorder collects row outcomes from concurrent writers.
type recorder struct {
	mu sync.Mutex
	s  Summary
}

func (r *recorder) add(o outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch o {
	case inserted:
		r.s.Inserted++
	case updated:
		r.s.Updated++
	case skipped:
		r.s.Skipped++
	}
}

func (r *recorder) fail(line int, name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Failed++
	r.s.Errors = append(r.s.Errors, RowError{Line: line, Name: name, Error: err.Error()})
}

type Importer struct {
	products    ProductStore
	categories  CategoryStore
	logger      *zap.SugaredLogger
	concurrency int
}

func New(ps ProductStore, cs CategoryStore, logger *zap.SugaredLogger) *Importer {
	return &Importer{
		products:    ps,
		categories:  cs,
		logger:      logger,
		concurrency: defaultConcurrency,
	}
}

// Import writes rows with one policy for every source format:
//
//   - a row with _id updates that product; an unknown id changes nothing
//     and is counted as skipped
//   - otherwise a row with sku is upserted by sku, the sku itself never
//     being rewritten
//   - otherwise the row is inserted unless its name is already used by a
//     product or by an earlier row of the same file
//
// Rows sharing an _id or sku are written in file order; all others are
// written concurrently.
func (im *Importer) Import(ctx context.Context, rows []Row) (*Summary, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	rec := &recorder{s: Summary{Errors: []RowError{}}}
	drafts := make([]*Draft, 0, len(rows))
	for _, row := range rows {
		d, err := MapRow(row)
		switch {
		case errors.Is(err, errBlankName):
			rec.add(skipped)
		case err != nil:
			rec.fail(row.Line, row.Get("name"), err)
		default:
			drafts = append(drafts, d)
		}
	}
	if len(drafts) == 0 {
		return &rec.s, nil
	}

	drafts, err := im.dropDuplicateNames(ctx, drafts, rec)
	if err != nil {
		return nil, err
	}

	cache, err := newCategoryCache(ctx, im.categories)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for _, lane := range lanes(drafts) {
		g.Go(func() error {
			for _, d := range lane {
				im.write(gctx, cache, d, rec)
			}
			return nil
		})
	}
	_ = g.Wait() // writers record their own failures

	sort.Slice(rec.s.Errors, func(i, j int) bool { return rec.s.Errors[i].Line < rec.s.Errors[j].Line })

	im.logger.Infow("import finished",
		"rows", len(rows),
		"inserted", rec.s.Inserted,
		"updated", rec.s.Updated,
		"skipped", rec.s.Skipped,
		"failed", rec.s.Failed,
	)
	return &rec.s, nil
}

// dropDuplicateNames removes rows without _id and sku whose name already
// exists in the catalog or appeared earlier in the file.
func (im *Importer) dropDuplicateNames(ctx context.Context, drafts []*Draft, rec *recorder) ([]*Draft, error) {
	var names []string
	for _, d := range drafts {
		if byName(d) {
			names = append(names, d.Product.Name)
		}
	}
	if len(names) == 0 {
		return drafts, nil
	}

	existing, err := im.products.ExistingNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("check existing names: %w", err)
	}

	kept := drafts[:0]
	seen := map[string]bool{}
	for _, d := range drafts {
		if byName(d) {
			key := strings.ToLower(d.Product.Name)
			if existing[key] || seen[key] {
				rec.add(skipped)
				continue
			}
			seen[key] = true
		}
		kept = append(kept, d)
	}
	return kept, nil
}

func byName(d *Draft) bool {
	return d.Product.ID == 0 && d.Product.SKU == nil
}

// lanes groups drafts that target the same product, keeping file order
// inside a group and first-appearance order across groups.
func lanes(drafts []*Draft) [][]*Draft {
	var (
		out   [][]*Draft
		index = map[string]int{}
	)
	for _, d := range drafts {
		var key string
		switch {
		case d.Product.ID != 0:
			key = "id:" + d.Product.ID.String()
		case d.Product.SKU != nil:
			key = "sku:" + *d.Product.SKU
		default:
			out = append(out, []*Draft{d})
			continue
		}
		if i, ok := index[key]; ok {
			out[i] = append(out[i], d)
			continue
		}
		index[key] = len(out)
		out = append(out, []*Draft{d})
	}
	return out
}

func (im *Importer) write(ctx context.Context, cache *categoryCache, d *Draft, rec *recorder) {
	p := d.Product
	if err := cache.resolveDraft(ctx, d); err != nil {
		rec.fail(d.Line, p.Name, err)
		return
	}

	switch {
	case p.ID != 0:
		found, err := im.products.UpdateByID(ctx, p)
		if err != nil {
			rec.fail(d.Line, p.Name, err)
			return
		}
		if !found {
			rec.add(skipped)
			return
		}
		rec.add(updated)

	case p.SKU != nil:
		created, err := im.products.UpsertBySKU(ctx, p)
		if err != nil {
			rec.fail(d.Line, p.Name, err)
			return
		}
		if created {
			rec.add(inserted)
		} else {
			rec.add(updated)
		}

	default:
		if _, err := im.products.Insert(ctx, p); err != nil {
			rec.fail(d.Line, p.Name, err)
			return
		}
		rec.add(inserted)
	}
}
