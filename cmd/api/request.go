package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"budmart/internal/ident"

	"github.com/go-chi/chi/v5"
)

type OKResponse struct {
	OK bool `json:"ok"`
}

// readIDParam parses a path parameter into a non-zero id.
func readIDParam(r *http.Request, name string) (ident.ID, error) {
	raw := chi.URLParam(r, name)
	id, err := ident.Parse(raw)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%s is required", name)
	}
	return id, nil
}

// readIDQuery parses an optional id filter from the query string.
func readIDQuery(q url.Values, key string) (ident.ID, error) {
	id, err := ident.Parse(q.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return id, nil
}

var errEmptyBody = errors.New("request body must not be empty")
