package enums

import (
	"fmt"
	"slices"
)

// OrderStatus tracks an order after it has been recorded. Checkout only ever
// writes OrderStatusPaid; the rest belong to fulfillment tooling and exist so
// history filters accept them.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

var orderLifecycle = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// OrderStatuses returns every known status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return slices.Clone(orderLifecycle)
}

func (s OrderStatus) IsValid() bool {
	return slices.Contains(orderLifecycle, s)
}

// ParseOrderStatus accepts only the exact lowercase spelling.
func ParseOrderStatus(value string) (OrderStatus, error) {
	if s := OrderStatus(value); s.IsValid() {
		return s, nil
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// PaymentMethod records how an order was paid. Square is the only gateway.
type PaymentMethod string

const PaymentMethodSquare PaymentMethod = "square"
