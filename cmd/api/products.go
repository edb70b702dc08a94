package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"budmart/internal/domain/products"
	"budmart/internal/ident"
	"budmart/internal/imagestore"
	"budmart/internal/params"

	"github.com/shopspring/decimal"
)

// ProductPayload is a product document as sent by the admin UI. Server
// managed fields (_id, slug, timestamps) are ignored when present.
type ProductPayload struct {
	Name          string           `json:"name" validate:"required,max=300"`
	Price         decimal.Decimal  `json:"price" swaggertype:"number"`
	Discount      int              `json:"discount" validate:"min=0,max=100"`
	Stock         int              `json:"stock" validate:"min=0"`
	Unit          string           `json:"unit" validate:"max=50"`
	SKU           *string          `json:"sku" validate:"omitempty,max=100"`
	Description   string           `json:"description"`
	Specs         products.Specs   `json:"specs" swaggertype:"object,string"`
	Images        []products.Image `json:"images"`
	Image         string           `json:"image"`
	ImagePublicID string           `json:"imagePublicId"`
	Category      ident.ID         `json:"category" swaggertype:"string"`
	Subcategory   ident.ID         `json:"subcategory" swaggertype:"string"`
	Type          ident.ID         `json:"type" swaggertype:"string"`
}

func (p ProductPayload) product() *products.Product {
	images := p.Images
	if len(images) == 0 && strings.TrimSpace(p.Image) != "" {
		publicID := p.ImagePublicID
		if publicID == "" {
			publicID = imagestore.PublicIDFromURL(p.Image)
		}
		images = []products.Image{{URL: p.Image, PublicID: publicID}}
	}
	return &products.Product{
		Name:        p.Name,
		Price:       p.Price,
		Discount:    p.Discount,
		Stock:       p.Stock,
		Unit:        p.Unit,
		SKU:         p.SKU,
		Description: p.Description,
		Specs:       p.Specs,
		Images:      images,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Type:        p.Type,
	}
}

// UpdateProductPayload carries the fields to change; absent fields keep
// their stored value.
type UpdateProductPayload struct {
	Name          *string           `json:"name" validate:"omitempty,min=1,max=300"`
	Price         *decimal.Decimal  `json:"price" swaggertype:"number"`
	Discount      *int              `json:"discount" validate:"omitempty,min=0,max=100"`
	Stock         *int              `json:"stock" validate:"omitempty,min=0"`
	Unit          *string           `json:"unit" validate:"omitempty,max=50"`
	SKU           *string           `json:"sku" validate:"omitempty,max=100"`
	Description   *string           `json:"description"`
	Specs         *products.Specs   `json:"specs" swaggertype:"object,string"`
	Images        *[]products.Image `json:"images"`
	Image         *string           `json:"image"`
	ImagePublicID *string           `json:"imagePublicId"`
	Category      ident.Optional    `json:"category" swaggertype:"string"`
	Subcategory   ident.Optional    `json:"subcategory" swaggertype:"string"`
	Type          ident.Optional    `json:"type" swaggertype:"string"`
}

func (p UpdateProductPayload) patch() products.Patch {
	images := p.Images
	if images == nil && p.Image != nil {
		legacy := []products.Image{}
		if strings.TrimSpace(*p.Image) != "" {
			img := products.Image{URL: *p.Image, PublicID: imagestore.PublicIDFromURL(*p.Image)}
			if p.ImagePublicID != nil && *p.ImagePublicID != "" {
				img.PublicID = *p.ImagePublicID
			}
			legacy = append(legacy, img)
		}
		images = &legacy
	}
	return products.Patch{
		Name:        p.Name,
		Price:       p.Price,
		Discount:    p.Discount,
		Stock:       p.Stock,
		Unit:        p.Unit,
		SKU:         p.SKU,
		Description: p.Description,
		Specs:       p.Specs,
		Images:      images,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Type:        p.Type,
	}
}

type DeleteAllPayload struct {
	Password string `json:"password"`
}

type DeleteAllResponse struct {
	OK      bool  `json:"ok"`
	Deleted int64 `json:"deleted"`
}

func readProductFilter(r *http.Request) (products.Filter, error) {
	q := r.URL.Query()
	f := products.Filter{Q: strings.TrimSpace(q.Get("q"))}

	var err error
	if f.Category, err = readIDQuery(q, "category"); err != nil {
		return f, err
	}
	if f.Subcategory, err = readIDQuery(q, "subcategory"); err != nil {
		return f, err
	}
	if f.Type, err = readIDQuery(q, "type"); err != nil {
		return f, err
	}
	return f, nil
}

func (app *application) productWriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, products.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, products.ErrDuplicateName), errors.Is(err, products.ErrDuplicateSKU):
		app.conflictResponse(w, r, err)
	case errors.Is(err, products.ErrEmptyName):
		app.badRequestResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

// listProductsHandler godoc
//
//	@Summary		List products
//	@Description	Lists products newest first. With both page and limit the response is a page envelope, otherwise a plain array.
//	@Tags			products
//	@Produce		json
//	@Param			q			query		string	false	"Case-insensitive name search"
//	@Param			category	query		string	false	"Category id"
//	@Param			subcategory	query		string	false	"Subcategory id"
//	@Param			type		query		string	false	"Type id"
//	@Param			page		query		int		false	"Page number"
//	@Param			limit		query		int		false	"Items per page (max 100)"
//	@Success		200			{array}		products.Product
//	@Failure		400			{object}	error
//	@Failure		500			{object}	error
//	@Router			/products [get]
func (app *application) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	f, err := readProductFilter(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p, paged, err := params.ParsePagination(r.URL.Query())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if !paged {
		list, err := app.store.Products.List(ctx, f)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		if list == nil {
			list = []*products.Product{}
		}
		if err := writeJSON(w, http.StatusOK, list); err != nil {
			app.internalServerError(w, r, err)
		}
		return
	}

	items, total, err := app.store.Products.ListPage(ctx, f, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := writeJSON(w, http.StatusOK, params.NewPage(items, p)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// productCountsHandler godoc
//
//	@Summary		Product counts per category node
//	@Description	Counts products matching the filters, grouped by category, subcategory and type.
//	@Tags			products
//	@Produce		json
//	@Param			q			query		string	false	"Case-insensitive name search"
//	@Param			category	query		string	false	"Category id"
//	@Param			subcategory	query		string	false	"Subcategory id"
//	@Param			type		query		string	false	"Type id"
//	@Success		200			{object}	products.Counts
//	@Failure		400			{object}	error
//	@Failure		500			{object}	error
//	@Router			/products/counts [get]
func (app *application) productCountsHandler(w http.ResponseWriter, r *http.Request) {
	f, err := readProductFilter(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	counts, err := app.store.Products.Counts(ctx, f)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, counts); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getProductHandler godoc
//
//	@Summary		Get product
//	@Tags			products
//	@Produce		json
//	@Param			productID	path		string	true	"Product id"
//	@Success		200			{object}	products.Product
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		500			{object}	error
//	@Router			/products/{productID} [get]
func (app *application) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := app.store.Products.GetByID(ctx, id)
	if err != nil {
		app.productWriteError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, p); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createProductHandler godoc
//
//	@Summary		Create product
//	@Description	Creates a product. Names are unique case-insensitively.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ProductPayload	true	"Product"
//	@Success		201		{object}	products.Product
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		409		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products [post]
func (app *application) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var payload ProductPayload
	if err := readLooseJSON(w, r, &payload, 1<<20); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if payload.Price.IsNegative() {
		app.badRequestResponse(w, r, errors.New("price must not be negative"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	created, err := app.store.Products.Create(ctx, payload.product())
	if err != nil {
		app.productWriteError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, created); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateProductHandler godoc
//
//	@Summary		Update product
//	@Description	Changes the given fields. Images dropped by the update are deleted from the image store in the background.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			productID	path		string					true	"Product id"
//	@Param			payload		body		UpdateProductPayload	true	"Fields to change"
//	@Success		200			{object}	products.Product
//	@Failure		400			{object}	error
//	@Failure		401			{object}	error
//	@Failure		404			{object}	error
//	@Failure		409			{object}	error
//	@Failure		500			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{productID} [put]
func (app *application) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateProductPayload
	if err := readLooseJSON(w, r, &payload, 1<<20); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if payload.Price != nil && payload.Price.IsNegative() {
		app.badRequestResponse(w, r, errors.New("price must not be negative"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	updated, previous, err := app.store.Products.Update(ctx, id, payload.patch())
	if err != nil {
		app.productWriteError(w, r, err)
		return
	}

	if removed := products.RemovedPublicIDs(previous, updated); len(removed) > 0 {
		app.cleanup.Enqueue(removed...)
	}

	if err := writeJSON(w, http.StatusOK, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteProductHandler godoc
//
//	@Summary		Delete product
//	@Description	Deletes a product and queues its images for deletion.
//	@Tags			products
//	@Produce		json
//	@Param			productID	path		string	true	"Product id"
//	@Success		200			{object}	OKResponse
//	@Failure		400			{object}	error
//	@Failure		401			{object}	error
//	@Failure		404			{object}	error
//	@Failure		500			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{productID} [delete]
func (app *application) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	deleted, err := app.store.Products.Delete(ctx, id)
	if err != nil {
		app.productWriteError(w, r, err)
		return
	}

	app.cleanup.Enqueue(deleted.PublicIDs()...)

	if err := writeJSON(w, http.StatusOK, OKResponse{OK: true}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteAllProductsHandler godoc
//
//	@Summary		Delete all products
//	@Description	Wipes the catalog. Requires confirm=true and the admin password in the X-Admin-Password header or the body.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			confirm				query		bool				true	"Must be true"
//	@Param			X-Admin-Password	header		string				false	"Admin password"
//	@Param			payload				body		DeleteAllPayload	false	"Admin password"
//	@Success		200					{object}	DeleteAllResponse
//	@Failure		400					{object}	error
//	@Failure		401					{object}	error
//	@Failure		403					{object}	error
//	@Failure		500					{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products [delete]
func (app *application) deleteAllProductsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		app.badRequestResponse(w, r, errors.New("confirm=true is required to delete all products"))
		return
	}

	password := r.Header.Get("X-Admin-Password")
	if password == "" {
		var payload DeleteAllPayload
		if err := readLooseJSON(w, r, &payload, 1<<10); err != nil && !errors.Is(err, io.EOF) {
			app.badRequestResponse(w, r, err)
			return
		}
		password = payload.Password
	}

	if password == "" || !app.config.admin.CheckPassword(password) {
		app.forbiddenResponse(w, r, errors.New("admin password confirmation failed"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	n, publicIDs, err := app.store.Products.DeleteAll(ctx)
	if err != nil {
		app.internalServerError(w, r, fmt.Errorf("delete all products: %w", err))
		return
	}

	queued := app.cleanup.Enqueue(publicIDs...)
	app.logger.Warnw("all products deleted", "admin", getAdminFromContext(r), "count", n, "images", len(publicIDs), "queued", queued)

	if err := writeJSON(w, http.StatusOK, DeleteAllResponse{OK: true, Deleted: n}); err != nil {
		app.internalServerError(w, r, err)
	}
}
