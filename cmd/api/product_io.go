package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"budmart/internal/domain/categories"
	"budmart/internal/domain/products"
	"budmart/internal/helpers"
	"budmart/internal/ident"
	"budmart/internal/importer"
)

const (
	maxImportBytes = 20 << 20 // 20MB
	importTimeout  = 5 * time.Minute
)

type BulkCSVPayload struct {
	CSV string `json:"csv"`
}

// bulkProductsHandler godoc
//
//	@Summary		Bulk create or update products
//	@Description	Accepts a JSON array of products, a text/csv body or {"csv": "..."}. Rows with _id update that product, rows with sku are upserted by sku, the rest are inserted unless the name already exists.
//	@Tags			products
//	@Accept			json
//	@Accept			text/csv
//	@Produce		json
//	@Success		200	{object}	importer.Summary
//	@Failure		400	{object}	error
//	@Failure		401	{object}	error
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/bulk [post]
func (app *application) bulkProductsHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	rows, err := parseBulkBody(r.Header.Get("Content-Type"), data)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	app.runImport(w, r, rows)
}

// parseBulkBody picks the row mapper for a bulk request body.
func parseBulkBody(contentType string, data []byte) ([]importer.Row, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "text/csv" || mediaType == "text/plain" {
		return importer.ParseCSV(bytes.NewReader(data))
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errEmptyBody
	}

	switch trimmed[0] {
	case '[':
		return importer.ParseJSON(trimmed)
	case '{':
		var payload BulkCSVPayload
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", importer.ErrMalformed, err)
		}
		if strings.TrimSpace(payload.CSV) == "" {
			return nil, fmt.Errorf("%w: csv field is empty", importer.ErrMalformed)
		}
		return importer.ParseCSV(strings.NewReader(payload.CSV))
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or CSV text", importer.ErrMalformed)
	}
}

// importXLSXHandler godoc
//
//	@Summary		Import products from XLSX
//	@Description	Imports the first sheet of an uploaded workbook. A file exported by /products/export/xlsx can be edited and imported back.
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"XLSX file"
//	@Success		200		{object}	importer.Summary
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/import/xlsx [post]
func (app *application) importXLSXHandler(w http.ResponseWriter, r *http.Request) {
	app.importUpload(w, r, importer.ParseXLSX)
}

// importCSVHandler godoc
//
//	@Summary		Import products from CSV
//	@Description	Imports an uploaded comma or semicolon separated file with a header line.
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"CSV file"
//	@Success		200		{object}	importer.Summary
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/import/csv [post]
func (app *application) importCSVHandler(w http.ResponseWriter, r *http.Request) {
	app.importUpload(w, r, importer.ParseCSV)
}

func (app *application) importUpload(w http.ResponseWriter, r *http.Request, parse func(io.Reader) ([]importer.Row, error)) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("failed to parse form: %w", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("file is required: %w", err))
		return
	}
	defer file.Close()

	rows, err := parse(file)
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("%s: %w", header.Filename, err))
		return
	}

	app.runImport(w, r, rows)
}

func (app *application) runImport(w http.ResponseWriter, r *http.Request, rows []importer.Row) {
	ctx, cancel := context.WithTimeout(r.Context(), importTimeout)
	defer cancel()

	summary, err := app.importer.Import(ctx, rows)
	if err != nil {
		if errors.Is(err, importer.ErrEmpty) || errors.Is(err, importer.ErrMalformed) {
			app.badRequestResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, summary); err != nil {
		app.internalServerError(w, r, err)
	}
}

// exportCSVHandler godoc
//
//	@Summary		Export products as CSV
//	@Tags			products
//	@Produce		text/csv
//	@Success		200	{file}		file
//	@Failure		401	{object}	error
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/export/all [get]
func (app *application) exportCSVHandler(w http.ResponseWriter, r *http.Request) {
	app.export(w, r, "text/csv; charset=utf-8", "csv", importer.WriteCSV)
}

// exportXLSXHandler godoc
//
//	@Summary		Export products as XLSX
//	@Tags			products
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Success		200	{file}		file
//	@Failure		401	{object}	error
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/export/xlsx [get]
func (app *application) exportXLSXHandler(w http.ResponseWriter, r *http.Request) {
	app.export(w, r, xlsxContentType, "xlsx", importer.WriteXLSX)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type exportFunc func(io.Writer, []*products.Product, map[ident.ID]string) error

func (app *application) export(w http.ResponseWriter, r *http.Request, contentType, ext string, write exportFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	list, err := app.store.Products.List(ctx, products.Filter{})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	cats, err := app.store.Categories.List(ctx, categories.ParentFilter{})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, list, helpers.CategoryNames(cats)); err != nil {
		app.internalServerError(w, r, fmt.Errorf("export products: %w", err))
		return
	}

	app.sendFile(w, fmt.Sprintf("products-%s.%s", time.Now().Format("2006-01-02"), ext), contentType, buf.Bytes())
}

// importTemplateHandler godoc
//
//	@Summary		Download the import template
//	@Description	An empty workbook with the import columns and a sheet of instructions.
//	@Tags			products
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Success		200	{file}		file
//	@Failure		401	{object}	error
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/import/template [get]
func (app *application) importTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := importer.WriteTemplate(&buf); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	app.sendFile(w, "products-template.xlsx", xlsxContentType, buf.Bytes())
}

func (app *application) sendFile(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		app.logger.Warnw("failed to write file response", "file", filename, "error", err)
	}
}
