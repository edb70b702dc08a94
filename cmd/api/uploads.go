package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	maxUploadBytes = 10 << 20 // 10MB
	maxImageWidth  = 2000
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// helper: sniff first 512 bytes and reset reader
func sniffMIME(file multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read: %w", err)
	}
	mime := http.DetectContentType(buf[:n])

	// reset so later reads start from byte 0
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek reset: %w", err)
	}
	return mime, nil
}

// downscale re-encodes JPEG and PNG images wider than maxImageWidth.
// Other images and narrow ones are returned untouched.
func downscale(file io.ReadSeeker, mime string) (io.Reader, error) {
	var format imaging.Format
	switch mime {
	case "image/jpeg":
		format = imaging.JPEG
	case "image/png":
		format = imaging.PNG
	default:
		return file, nil
	}

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() <= maxImageWidth {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek reset: %w", err)
		}
		return file, nil
	}

	resized := imaging.Resize(img, maxImageWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &buf, nil
}

// uploadImageHandler godoc
//
//	@Summary		Upload image
//	@Description	Stores a JPEG, PNG or WebP image and returns its URL and public id. Images wider than 2000px are scaled down.
//	@Tags			uploads
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image"
//	@Param			folder	formData	string	false	"products (default) or banners"
//	@Success		201		{object}	imagestore.Uploaded
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Failure		503		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/uploads/image [post]
func (app *application) uploadImageHandler(w http.ResponseWriter, r *http.Request) {
	if app.images == nil {
		app.serviceUnavailableResponse(w, r, errors.New("image storage is not configured"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("failed to parse form: %w", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	folder := r.FormValue("folder")
	switch folder {
	case "":
		folder = "products"
	case "products", "banners":
	default:
		app.badRequestResponse(w, r, fmt.Errorf("unknown folder %q", folder))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("file is required: %w", err))
		return
	}
	defer file.Close()

	// sniff actual MIME from bytes (don’t trust Content-Type header)
	mime, err := sniffMIME(file)
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("sniff mime: %w", err))
		return
	}
	if !allowedImageTypes[mime] {
		app.badRequestResponse(w, r, fmt.Errorf("invalid image type: %s", mime))
		return
	}

	body, err := downscale(file, mime)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	uploaded, err := app.images.Upload(ctx, body, folder+"/"+uuid.NewString())
	if err != nil {
		app.internalServerError(w, r, fmt.Errorf("upload image: %w", err))
		return
	}

	if err := writeJSON(w, http.StatusCreated, uploaded); err != nil {
		app.internalServerError(w, r, err)
	}
}
