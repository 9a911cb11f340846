package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPaidItem is the item snapshot carried on order_paid.
type OrderPaidItem struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderPaidEvent is emitted in the commit transaction of every new order.
type OrderPaidEvent struct {
	OrderID          uuid.UUID       `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	ContactEmail     string          `json:"contact_email"`
	Total            decimal.Decimal `json:"total"`
	Currency         string          `json:"currency"`
	PaymentReference string          `json:"payment_reference"`
	Items            []OrderPaidItem `json:"items"`
	PaidAt           time.Time       `json:"paid_at"`
}

// PaymentUnrecordedEvent asks support to reconcile a captured payment that has no order.
type PaymentUnrecordedEvent struct {
	CheckoutSessionID uuid.UUID       `json:"checkout_session_id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	GatewayOrderID    string          `json:"gateway_order_id"`
	PaymentReference  string          `json:"payment_reference"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	FailureReason     string          `json:"failure_reason"`
	FailedAt          time.Time       `json:"failed_at"`
}
