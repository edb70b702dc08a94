package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"budmart/internal/domain/categories"
	"budmart/internal/ident"
)

type CreateCategoryPayload struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Parent      ident.ID `json:"parent" swaggertype:"string"`
}

type UpdateCategoryPayload struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description" validate:"omitempty,max=2000"`
	Parent      ident.Optional `json:"parent" swaggertype:"string"`
}

type ReassignPayload struct {
	From ident.ID `json:"from" validate:"required" swaggertype:"string"`
	To   ident.ID `json:"to" validate:"required" swaggertype:"string"`
}

type ReassignResponse struct {
	OK       bool  `json:"ok"`
	Modified int64 `json:"modified"`
}

func (app *application) categoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, categories.ErrNotFound), errors.Is(err, categories.ErrInvalidParent):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, categories.ErrConflict), errors.Is(err, categories.ErrHasChildren):
		app.conflictResponse(w, r, err)
	case errors.Is(err, categories.ErrCycle),
		errors.Is(err, categories.ErrSameCategory),
		errors.Is(err, categories.ErrEmptyName):
		app.badRequestResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

// listCategoriesHandler godoc
//
//	@Summary		List categories
//	@Description	Lists every node of the category tree, or the children of ?parent=. An empty or "null" parent lists the roots.
//	@Tags			categories
//	@Produce		json
//	@Param			parent	query		string	false	"Parent id"
//	@Success		200		{array}		categories.Category
//	@Failure		400		{object}	error
//	@Failure		500		{object}	error
//	@Router			/categories [get]
func (app *application) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	var f categories.ParentFilter
	q := r.URL.Query()
	if q.Has("parent") {
		f.Set = true
		raw := strings.TrimSpace(q.Get("parent"))
		if raw != "null" {
			parent, err := ident.Parse(raw)
			if err != nil {
				app.badRequestResponse(w, r, err)
				return
			}
			f.Parent = parent
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, err := app.store.Categories.List(ctx, f)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if list == nil {
		list = []*categories.Category{}
	}

	if err := writeJSON(w, http.StatusOK, list); err != nil {
		app.internalServerError(w, r, err)
	}
}

// categoryTreeHandler godoc
//
//	@Summary		Category tree
//	@Description	The whole category tree nested for the storefront menu. Level 0 nodes are categories, level 1 subcategories, level 2 types.
//	@Tags			categories
//	@Produce		json
//	@Success		200	{array}		categories.Node
//	@Failure		500	{object}	error
//	@Router			/categories/tree [get]
func (app *application) categoryTreeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, err := app.store.Categories.List(ctx, categories.ParentFilter{})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, categories.BuildTree(list)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getCategoryHandler godoc
//
//	@Summary		Get category
//	@Tags			categories
//	@Produce		json
//	@Param			categoryID	path		string	true	"Category id"
//	@Success		200			{object}	categories.Category
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		500			{object}	error
//	@Router			/categories/{categoryID} [get]
func (app *application) getCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "categoryID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	c, err := app.store.Categories.GetByID(ctx, id)
	if err != nil {
		app.categoryError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, c); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createCategoryHandler godoc
//
//	@Summary		Create category
//	@Description	Creates a node under parent, or a root when parent is empty. Sibling names are unique case-insensitively.
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateCategoryPayload	true	"Category"
//	@Success		201		{object}	categories.Category
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/categories [post]
func (app *application) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateCategoryPayload
	if err := readLooseJSON(w, r, &payload, 1<<16); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	payload.Name = strings.TrimSpace(payload.Name)
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	created, err := app.store.Categories.Create(ctx, &categories.Category{
		Name:        payload.Name,
		Description: payload.Description,
		Parent:      payload.Parent,
	})
	if err != nil {
		app.categoryError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, created); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateCategoryHandler godoc
//
//	@Summary		Update category
//	@Description	Renames or moves a node. Moving a node under itself or one of its descendants is rejected.
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			categoryID	path		string					true	"Category id"
//	@Param			payload		body		UpdateCategoryPayload	true	"Fields to change"
//	@Success		200			{object}	categories.Category
//	@Failure		400			{object}	error
//	@Failure		401			{object}	error
//	@Failure		404			{object}	error
//	@Failure		409			{object}	error
//	@Failure		500			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/categories/{categoryID} [put]
func (app *application) updateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "categoryID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateCategoryPayload
	if err := readLooseJSON(w, r, &payload, 1<<16); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	c, err := app.store.Categories.GetByID(ctx, id)
	if err != nil {
		app.categoryError(w, r, err)
		return
	}

	if payload.Name != nil {
		c.Name = *payload.Name
	}
	if payload.Description != nil {
		c.Description = *payload.Description
	}
	if payload.Parent.Set {
		c.Parent = payload.Parent.ID
	}

	updated, err := app.store.Categories.Update(ctx, c)
	if err != nil {
		app.categoryError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteCategoryHandler godoc
//
//	@Summary		Delete category
//	@Description	Deletes a node without children. Products referencing it keep the dangling reference; use /categories/reassign first.
//	@Tags			categories
//	@Produce		json
//	@Param			categoryID	path		string	true	"Category id"
//	@Success		200			{object}	OKResponse
//	@Failure		400			{object}	error
//	@Failure		401			{object}	error
//	@Failure		404			{object}	error
//	@Failure		409			{object}	error
//	@Failure		500			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/categories/{categoryID} [delete]
func (app *application) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "categoryID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := app.store.Categories.Delete(ctx, id); err != nil {
		app.categoryError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, OKResponse{OK: true}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// reassignCategoryHandler godoc
//
//	@Summary		Move products between categories
//	@Description	Rewrites every product whose category, subcategory or type is from to reference to instead.
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ReassignPayload	true	"Source and target"
//	@Success		200		{object}	ReassignResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/categories/reassign [post]
func (app *application) reassignCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var payload ReassignPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	n, err := app.store.Categories.Reassign(ctx, payload.From, payload.To)
	if err != nil {
		app.categoryError(w, r, err)
		return
	}

	app.logger.Infow("products reassigned", "from", payload.From, "to", payload.To, "modified", n)

	if err := writeJSON(w, http.StatusOK, ReassignResponse{OK: true, Modified: n}); err != nil {
		app.internalServerError(w, r, err)
	}
}
