package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the immutable record of a paid checkout. Contact fields are a
// snapshot of the customer profile at commit time.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string              `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	ContactName      string              `gorm:"column:contact_name;not null"`
	ContactEmail     string              `gorm:"column:contact_email;not null"`
	ContactPhone     *string             `gorm:"column:contact_phone"`
	AddressLine1     *string             `gorm:"column:address_line1"`
	AddressLine2     *string             `gorm:"column:address_line2"`
	City             *string             `gorm:"column:city"`
	Region           *string             `gorm:"column:region"`
	PostalCode       *string             `gorm:"column:postal_code"`
	Country          *string             `gorm:"column:country"`
	Subtotal         decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount         decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null"`
	Shipping         decimal.Decimal     `gorm:"column:shipping;type:numeric(12,2);not null"`
	Tax              decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null"`
	Total            decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Currency         string              `gorm:"column:currency;not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentReference string              `gorm:"column:payment_reference;not null;uniqueIndex:ux_orders_payment_reference"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem snapshots one purchased variant; later catalog edits never change it.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   int64           `gorm:"column:product_id;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	SKU         string          `gorm:"column:sku;not null"`
	Category    string          `gorm:"column:category;not null"`
	Gender      string          `gorm:"column:gender;not null"`
	Size        string          `gorm:"column:size;not null"`
	Color       string          `gorm:"column:color;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	UnitCost    decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	LineCost    decimal.Decimal `gorm:"column:line_cost;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
