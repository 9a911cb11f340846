package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CheckoutSession records one payment attempt so an asynchronous gateway
// callback can find the customer and quoted amount it belongs to.
type CheckoutSession struct {
	ID               uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID       uuid.UUID                    `gorm:"column:customer_id;type:uuid;not null;index"`
	GatewayOrderID   string                       `gorm:"column:gateway_order_id;not null;uniqueIndex:ux_checkout_sessions_gateway_order"`
	Amount           decimal.Decimal              `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         string                       `gorm:"column:currency;not null"`
	State            enums.CheckoutState          `gorm:"column:state;type:checkout_state;not null"`
	FailureReason    *enums.CheckoutFailureReason `gorm:"column:failure_reason"`
	PaymentReference *string                      `gorm:"column:payment_reference"`
	OrderID          *uuid.UUID                   `gorm:"column:order_id;type:uuid"`
	EscalatedAt      *time.Time                   `gorm:"column:escalated_at"`
	CreatedAt        time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *CheckoutSession) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
