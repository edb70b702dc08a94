package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"budmart/internal/domain/banners"
)

type SaveBannerPayload struct {
	Key   string         `json:"key" validate:"max=50"`
	Items []banners.Item `json:"items" validate:"max=20"`
}

// getBannerHandler godoc
//
//	@Summary		Get banner
//	@Description	Returns the images of a banner slot; items is empty when the slot was never saved.
//	@Tags			banner
//	@Produce		json
//	@Param			key	query		string	false	"Slot key (default home)"
//	@Success		200	{object}	banners.Banner
//	@Failure		500	{object}	error
//	@Router			/banner [get]
func (app *application) getBannerHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		key = banners.DefaultKey
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, err := app.store.Banners.Get(ctx, key)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if b.Items == nil {
		b.Items = []banners.Item{}
	}

	if err := writeJSON(w, http.StatusOK, b); err != nil {
		app.internalServerError(w, r, err)
	}
}

// saveBannerHandler godoc
//
//	@Summary		Save banner
//	@Description	Replaces the whole slot. Images no longer referenced are deleted from the image store in the background.
//	@Tags			banner
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		SaveBannerPayload	true	"Banner"
//	@Success		200		{object}	banners.Banner
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/banner [put]
func (app *application) saveBannerHandler(w http.ResponseWriter, r *http.Request) {
	var payload SaveBannerPayload
	if err := readLooseJSON(w, r, &payload, 1<<16); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if strings.TrimSpace(payload.Key) == "" {
		payload.Key = banners.DefaultKey
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	saved, previous, err := app.store.Banners.Save(ctx, &banners.Banner{Key: payload.Key, Items: payload.Items})
	if err != nil {
		if errors.Is(err, banners.ErrInvalidKey) {
			app.badRequestResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if removed := banners.RemovedPublicIDs(previous, saved); len(removed) > 0 {
		app.cleanup.Enqueue(removed...)
	}

	if err := writeJSON(w, http.StatusOK, saved); err != nil {
		app.internalServerError(w, r, err)
	}
}
