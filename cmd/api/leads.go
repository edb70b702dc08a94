package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budmart/internal/domain/leads"
	"budmart/internal/params"
)

type CreateLeadPayload struct {
	Type     leads.Type `json:"type" validate:"required,oneof=call delivery" swaggertype:"string"`
	Name     string     `json:"name" validate:"required,max=200"`
	Phone    string     `json:"phone" validate:"required,uaphone"`
	City     string     `json:"city" validate:"max=200"`
	Street   string     `json:"street" validate:"max=200"`
	House    string     `json:"house" validate:"max=50"`
	Datetime *time.Time `json:"datetime"`
	Note     string     `json:"note" validate:"max=2000"`
}

type UpdateLeadPayload struct {
	Status *leads.Status `json:"status" swaggertype:"string"`
	Note   *string       `json:"note" validate:"omitempty,max=2000"`
}

func (app *application) leadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, leads.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, leads.ErrInvalidType),
		errors.Is(err, leads.ErrInvalidStatus),
		errors.Is(err, leads.ErrMissingContact),
		errors.Is(err, leads.ErrMissingDelivery):
		app.badRequestResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

// createLeadHandler godoc
//
//	@Summary		Request a call or a delivery
//	@Description	A delivery request needs city, street, house and datetime. The manager is notified by email.
//	@Tags			leads
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateLeadPayload	true	"Request"
//	@Success		200		{object}	leads.Lead
//	@Failure		400		{object}	error
//	@Failure		429		{object}	error
//	@Failure		500		{object}	error
//	@Router			/leads [post]
func (app *application) createLeadHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateLeadPayload
	if err := readLooseJSON(w, r, &payload, 1<<16); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	lead := &leads.Lead{
		Type:     payload.Type,
		Name:     payload.Name,
		Phone:    payload.Phone,
		City:     payload.City,
		Street:   payload.Street,
		House:    payload.House,
		Datetime: payload.Datetime,
		Note:     payload.Note,
	}
	if err := lead.Prepare(); err != nil {
		app.leadError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	created, err := app.store.Leads.Create(ctx, lead)
	if err != nil {
		app.leadError(w, r, err)
		return
	}

	app.notifyNewLead(created)

	if err := writeJSON(w, http.StatusOK, created); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listLeadsHandler godoc
//
//	@Summary		List leads
//	@Description	Newest first. With both page and limit the response is a page envelope, otherwise at most 500 leads.
//	@Tags			leads
//	@Produce		json
//	@Param			status	query		string	false	"new, in_progress, done or cancelled"
//	@Param			page	query		int		false	"Page number"
//	@Param			limit	query		int		false	"Items per page (max 100)"
//	@Success		200		{array}		leads.Lead
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/leads [get]
func (app *application) listLeadsHandler(w http.ResponseWriter, r *http.Request) {
	status := leads.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		app.badRequestResponse(w, r, leads.ErrInvalidStatus)
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
		list, err := app.store.Leads.List(ctx, status, leads.ListCap)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		if list == nil {
			list = []*leads.Lead{}
		}
		if err := writeJSON(w, http.StatusOK, list); err != nil {
			app.internalServerError(w, r, err)
		}
		return
	}

	items, total, err := app.store.Leads.ListPage(ctx, status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := writeJSON(w, http.StatusOK, params.NewPage(items, p)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateLeadHandler godoc
//
//	@Summary		Update lead
//	@Tags			leads
//	@Accept			json
//	@Produce		json
//	@Param			leadID	path		string				true	"Lead id"
//	@Param			payload	body		UpdateLeadPayload	true	"Fields to change"
//	@Success		200		{object}	leads.Lead
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/leads/{leadID} [put]
func (app *application) updateLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "leadID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateLeadPayload
	if err := readLooseJSON(w, r, &payload, 1<<16); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if payload.Status == nil && payload.Note == nil {
		app.badRequestResponse(w, r, fmt.Errorf("nothing to update"))
		return
	}
	if payload.Status != nil && !payload.Status.Valid() {
		app.badRequestResponse(w, r, leads.ErrInvalidStatus)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	l, err := app.store.Leads.Update(ctx, id, leads.Update{Status: payload.Status, Note: payload.Note})
	if err != nil {
		app.leadError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, l); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteLeadHandler godoc
//
//	@Summary		Delete lead
//	@Tags			leads
//	@Produce		json
//	@Param			leadID	path		string	true	"Lead id"
//	@Success		200		{object}	OKResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/leads/{leadID} [delete]
func (app *application) deleteLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "leadID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := app.store.Leads.Delete(ctx, id); err != nil {
		app.leadError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, OKResponse{OK: true}); err != nil {
		app.internalServerError(w, r, err)
	}
}
