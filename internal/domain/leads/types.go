package leads

import (
	"context"
	"errors"
	"strings"
	"time"

	"budmart/internal/ident"
)

var (
	ErrNotFound        = errors.New("lead not found")
	ErrInvalidType     = errors.New("lead type must be call or delivery")
	ErrInvalidStatus   = errors.New("invalid lead status")
	ErrMissingContact  = errors.New("name and phone are required")
	ErrMissingDelivery = errors.New("delivery requests need city, street, house and datetime")
)

const ListCap = 500

type Type string

const (
	TypeCall     Type = "call"
	TypeDelivery Type = "delivery"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Lead is a call-back or delivery request left on the storefront.
type Lead struct {
	ID        ident.ID   `json:"_id" swaggertype:"string"`
	Type      Type       `json:"type"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	City      string     `json:"city"`
	Street    string     `json:"street"`
	House     string     `json:"house"`
	Datetime  *time.Time `json:"datetime"`
	Status    Status     `json:"status"`
	Note      string     `json:"note"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Update struct {
	Status *Status
	Note   *string
}

type Store interface {
	Create(ctx context.Context, l *Lead) (*Lead, error)
	List(ctx context.Context, status Status, limit int) ([]*Lead, error)
	ListPage(ctx context.Context, status Status, limit, offset int) ([]*Lead, int, error)
	GetByID(ctx context.Context, id ident.ID) (*Lead, error)
	Update(ctx context.Context, id ident.ID, u Update) (*Lead, error)
	Delete(ctx context.Context, id ident.ID) error
}

// Prepare trims the submission and checks the fields its type requires.
// Address fields of a call request are dropped.
func (l *Lead) Prepare() error {
	l.Name = strings.TrimSpace(l.Name)
	l.Phone = strings.TrimSpace(l.Phone)
	l.City = strings.TrimSpace(l.City)
	l.Street = strings.TrimSpace(l.Street)
	l.House = strings.TrimSpace(l.House)
	l.Note = strings.TrimSpace(l.Note)

	if l.Name == "" || l.Phone == "" {
		return ErrMissingContact
	}

	switch l.Type {
	case TypeCall:
		l.City, l.Street, l.House, l.Datetime = "", "", "", nil
	case TypeDelivery:
		if l.City == "" || l.Street == "" || l.House == "" || l.Datetime == nil || l.Datetime.IsZero() {
			return ErrMissingDelivery
		}
	default:
		return ErrInvalidType
	}

	if l.Status == "" {
		l.Status = StatusNew
	}
	if !l.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
