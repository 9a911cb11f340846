package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Summary is one row of the order history list.
type Summary struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	Total       decimal.Decimal   `json:"total"`
	Currency    string            `json:"currency"`
	ItemCount   int               `json:"item_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

type Contact struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        *string `json:"phone,omitempty"`
	AddressLine1 *string `json:"address_line1,omitempty"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         *string `json:"city,omitempty"`
	Region       *string `json:"region,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
	Country      *string `json:"country,omitempty"`
}

type Item struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Category    string          `json:"category"`
	Gender      string          `json:"gender"`
	Color       string          `json:"color"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Detail is the full order view. Cost columns stay internal.
type Detail struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Contact       Contact             `json:"contact"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	Shipping      decimal.Decimal     `json:"shipping"`
	Tax           decimal.Decimal     `json:"tax"`
	Total         decimal.Decimal     `json:"total"`
	Currency      string              `json:"currency"`
	CreatedAt     time.Time           `json:"created_at"`
	Items         []Item              `json:"items"`
}

func toSummary(o models.Order) Summary {
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	return Summary{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Total:       o.Total,
		Currency:    o.Currency,
		ItemCount:   count,
		CreatedAt:   o.CreatedAt,
	}
}

func toDetail(o models.Order) Detail {
	items := make([]Item, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Category:    it.Category,
			Gender:      it.Gender,
			Color:       it.Color,
			Size:        it.Size,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return Detail{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		Contact: Contact{
			Name:         o.ContactName,
			Email:        o.ContactEmail,
			Phone:        o.ContactPhone,
			AddressLine1: o.AddressLine1,
			AddressLine2: o.AddressLine2,
			City:         o.City,
			Region:       o.Region,
			PostalCode:   o.PostalCode,
			Country:      o.Country,
		},
		Subtotal:  o.Subtotal,
		Discount:  o.Discount,
		Shipping:  o.Shipping,
		Tax:       o.Tax,
		Total:     o.Total,
		Currency:  o.Currency,
		CreatedAt: o.CreatedAt,
		Items:     items,
	}
}
