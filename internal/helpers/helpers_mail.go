package helpers

import (
	"fmt"
	"strings"
	"time"

	"budmart/internal/domain/categories"
	"budmart/internal/domain/leads"
	"budmart/internal/domain/orders"
	"budmart/internal/ident"

	"github.com/shopspring/decimal"
)

// OrderMail is the data of the new-order manager notification.
type OrderMail struct {
	Number       string
	CustomerName string
	Phone        string
	Address      string
	Items        []orders.Item
	TotalPrice   decimal.Decimal
	Note         string
	AdminURL     string
}

// LeadMail is the data of the new-lead manager notification.
type LeadMail struct {
	Type     string
	Name     string
	Phone    string
	City     string
	Street   string
	House    string
	Datetime string
	AdminURL string
}

var kyiv = loadKyiv()

func loadKyiv() *time.Location {
	loc, err := time.LoadLocation("Europe/Kyiv")
	if err != nil {
		return time.UTC
	}
	return loc
}

func ToOrderMail(o *orders.Order, frontendURL string) OrderMail {
	return OrderMail{
		Number:       o.Number,
		CustomerName: o.CustomerName,
		Phone:        o.Phone,
		Address:      o.Address,
		Items:        o.Items,
		TotalPrice:   o.TotalPrice,
		Note:         o.Note,
		AdminURL:     adminURL(frontendURL, "orders", o.ID),
	}
}

func ToLeadMail(l *leads.Lead, frontendURL string) LeadMail {
	m := LeadMail{
		Type:     string(l.Type),
		Name:     l.Name,
		Phone:    l.Phone,
		City:     l.City,
		Street:   l.Street,
		House:    l.House,
		AdminURL: adminURL(frontendURL, "leads", l.ID),
	}
	if l.Datetime != nil {
		m.Datetime = l.Datetime.In(kyiv).Format("02.01.2006 15:04")
	}
	return m
}

func adminURL(frontendURL, section string, id ident.ID) string {
	return fmt.Sprintf("%s/admin/%s/%s", strings.TrimRight(frontendURL, "/"), section, id)
}

// CategoryNames indexes category names by id for export files.
func CategoryNames(list []*categories.Category) map[ident.ID]string {
	names := make(map[ident.ID]string, len(list))
	for _, c := range list {
		names[c.ID] = c.Name
	}
	return names
}
