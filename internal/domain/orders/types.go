package orders

import (
	"context"
	"errors"
	"time"

	"budmart/internal/ident"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be at least 1")
	ErrUnknownProduct  = errors.New("order references a product that does not exist")
	ErrInvalidStatus   = errors.New("invalid order status")
)

// ListCap bounds the unpaginated order listing to the most recent orders.
const ListCap = 500

type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status. Any status may follow any other.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusProcessing, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Item is a line snapshot taken at checkout. Later catalog changes do not
// touch it.
type Item struct {
	Product  ident.ID        `json:"product" swaggertype:"string"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price" swaggertype:"number"`
	Quantity int             `json:"quantity"`
}

type Order struct {
	ID           ident.ID        `json:"_id" swaggertype:"string"`
	Number       string          `json:"number"`
	CustomerName string          `json:"customerName"`
	Phone        string          `json:"phone"`
	Address      string          `json:"address"`
	Items        []Item          `json:"items"`
	TotalPrice   decimal.Decimal `json:"totalPrice" swaggertype:"number"`
	Status       Status          `json:"status"`
	Note         string          `json:"note"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type Line struct {
	Product  ident.ID
	Quantity int
}

// NewOrder is a checkout submission. Prices are never taken from the client.
type NewOrder struct {
	CustomerName string
	Phone        string
	Address      string
	Note         string
	Lines        []Line
}

// Update carries the admin-editable fields; nil leaves a field unchanged.
type Update struct {
	Status *Status
	Note   *string
}

type Store interface {
	Create(ctx context.Context, o NewOrder) (*Order, error)
	List(ctx context.Context, status Status, limit int) ([]*Order, error)
	ListPage(ctx context.Context, status Status, limit, offset int) ([]*Order, int, error)
	GetByID(ctx context.Context, id ident.ID) (*Order, error)
	Update(ctx context.Context, id ident.ID, u Update) (*Order, error)
	Delete(ctx context.Context, id ident.ID) error
}
