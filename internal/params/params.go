package params

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// URL: /products?page=2&limit=30
// → ParsePagination() → Pagination{Limit:30, Page:2, Offset:30}, true
// → SQL: SELECT ... LIMIT 30 OFFSET 30
// → ComputeMeta(total) → fills Pages
// Without both page and limit the caller returns the unpaginated list.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"-"`
	Page   int `json:"page"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
}

const MaxLimit = 100

// ParsePagination parses ?page=...&limit=...; ok is false unless both are present.
func ParsePagination(q url.Values) (p Pagination, ok bool, err error) {
	pageStr := strings.TrimSpace(q.Get("page"))
	limitStr := strings.TrimSpace(q.Get("limit"))
	if pageStr == "" || limitStr == "" {
		return p, false, nil
	}

	page, err := strconv.Atoi(pageStr)
	if err != nil {
		return p, false, fmt.Errorf("invalid page %q", pageStr)
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return p, false, fmt.Errorf("invalid limit %q", limitStr)
	}

	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if page > math.MaxInt32/limit {
		return p, false, fmt.Errorf("page %d out of range", page)
	}

	p.Page = page
	p.Limit = limit
	p.Offset = (page - 1) * limit
	return p, true, nil
}

// ComputeMeta updates pagination after fetching total count.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.Pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
}

// Page is the envelope returned for paginated listings.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func NewPage[T any](items []T, p Pagination) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Total: p.Total,
		Page:  p.Page,
		Limit: p.Limit,
		Pages: p.Pages,
	}
}
