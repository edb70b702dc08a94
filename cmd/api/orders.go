package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budmart/internal/domain/orders"
	"budmart/internal/ident"
	"budmart/internal/params"
)

type OrderItemPayload struct {
	Product  ident.ID `json:"product" validate:"required" swaggertype:"string"`
	Quantity int      `json:"quantity" validate:"required,min=1,max=100000"`
}

// CreateOrderPayload is a checkout. Item prices sent by the client are
// ignored; the order is priced from the catalog.
type CreateOrderPayload struct {
	CustomerName string             `json:"customerName" validate:"required,max=200"`
	Phone        string             `json:"phone" validate:"required,uaphone"`
	Address      string             `json:"address" validate:"max=500"`
	Note         string             `json:"note" validate:"max=2000"`
	Items        []OrderItemPayload `json:"items" validate:"required,min=1,max=200,dive"`
}

type UpdateOrderPayload struct {
	Status *orders.Status `json:"status" swaggertype:"string"`
	Note   *string        `json:"note" validate:"omitempty,max=2000"`
}

func readOrderStatus(r *http.Request) (orders.Status, error) {
	status := orders.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		return "", orders.ErrInvalidStatus
	}
	return status, nil
}

func (app *application) orderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrUnknownProduct),
		errors.Is(err, orders.ErrInvalidStatus):
		app.badRequestResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

// createOrderHandler godoc
//
//	@Summary		Place an order
//	@Description	Prices the items from the current catalog and stores a snapshot. The manager is notified by email.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateOrderPayload	true	"Checkout"
//	@Success		201		{object}	orders.Order
//	@Failure		400		{object}	error
//	@Failure		429		{object}	error
//	@Failure		500		{object}	error
//	@Router			/orders [post]
func (app *application) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateOrderPayload
	if err := readLooseJSON(w, r, &payload, 1<<18); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	in := orders.NewOrder{
		CustomerName: strings.TrimSpace(payload.CustomerName),
		Phone:        strings.TrimSpace(payload.Phone),
		Address:      strings.TrimSpace(payload.Address),
		Note:         strings.TrimSpace(payload.Note),
		Lines:        make([]orders.Line, 0, len(payload.Items)),
	}
	for _, it := range payload.Items {
		in.Lines = append(in.Lines, orders.Line{Product: it.Product, Quantity: it.Quantity})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	o, err := app.store.Orders.Create(ctx, in)
	if err != nil {
		app.orderError(w, r, err)
		return
	}

	app.logger.Infow("order placed", "number", o.Number, "total", o.TotalPrice.StringFixed(2), "items", len(o.Items))
	app.notifyNewOrder(o)

	if err := writeJSON(w, http.StatusCreated, o); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listOrdersHandler godoc
//
//	@Summary		List orders
//	@Description	Newest first. With both page and limit the response is a page envelope, otherwise at most 500 orders.
//	@Tags			orders
//	@Produce		json
//	@Param			status	query		string	false	"new, processing, shipped, completed or cancelled"
//	@Param			page	query		int		false	"Page number"
//	@Param			limit	query		int		false	"Items per page (max 100)"
//	@Success		200		{array}		orders.Order
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/orders [get]
func (app *application) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	status, err := readOrderStatus(r)
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
		list, err := app.store.Orders.List(ctx, status, orders.ListCap)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		if list == nil {
			list = []*orders.Order{}
		}
		if err := writeJSON(w, http.StatusOK, list); err != nil {
			app.internalServerError(w, r, err)
		}
		return
	}

	items, total, err := app.store.Orders.ListPage(ctx, status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := writeJSON(w, http.StatusOK, params.NewPage(items, p)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getOrderHandler godoc
//
//	@Summary		Get order
//	@Tags			orders
//	@Produce		json
//	@Param			orderID	path		string	true	"Order id"
//	@Success		200		{object}	orders.Order
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/orders/{orderID} [get]
func (app *application) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "orderID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := app.store.Orders.GetByID(ctx, id)
	if err != nil {
		app.orderError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, o); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateOrderHandler godoc
//
//	@Summary		Update order
//	@Description	Sets the status and/or the manager note. Any status may follow any other.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			orderID	path		string				true	"Order id"
//	@Param			payload	body		UpdateOrderPayload	true	"Fields to change"
//	@Success		200		{object}	orders.Order
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/orders/{orderID} [put]
func (app *application) updateOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "orderID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateOrderPayload
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
		app.badRequestResponse(w, r, orders.ErrInvalidStatus)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := app.store.Orders.Update(ctx, id, orders.Update{Status: payload.Status, Note: payload.Note})
	if err != nil {
		app.orderError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, o); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteOrderHandler godoc
//
//	@Summary		Delete order
//	@Tags			orders
//	@Produce		json
//	@Param			orderID	path		string	true	"Order id"
//	@Success		200		{object}	OKResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/orders/{orderID} [delete]
func (app *application) deleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "orderID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := app.store.Orders.Delete(ctx, id); err != nil {
		app.orderError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, OKResponse{OK: true}); err != nil {
		app.internalServerError(w, r, err)
	}
}
