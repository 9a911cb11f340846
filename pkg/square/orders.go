package square

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// PaymentStatusCompleted is the only status that means money moved.
const PaymentStatusCompleted = "COMPLETED"

// CreatedOrder is the gateway side of a started checkout.
type CreatedOrder struct {
	OrderID     string
	State       string
	AmountCents int64
}

// Payment is the subset of a Square payment checkout verifies before committing.
type Payment struct {
	ID          string
	OrderID     string
	Status      string
	AmountCents int64
	Currency    string
}

// Completed reports whether the payment was captured.
func (p Payment) Completed() bool {
	return strings.EqualFold(p.Status, PaymentStatusCompleted)
}

// CreateOrder registers the amount to be charged with Square's Orders API.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*CreatedOrder, error) {
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	req := params.toSquareRequest(c.locationID, c.ensureIdempotencyKey("order.create", params.IdempotencyKey))
	c.log(ctx, "request", "create_order", map[string]any{
		"location_id":  c.locationID,
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
	})

	out, err := c.call("create order", func() (any, error) {
		resp, err := c.orders.Create(ctx, req)
		if err != nil {
			return nil, c.mapSquareError(err, "create order")
		}
		return resp, nil
	})
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	order := out.(*sq.CreateOrderResponse).GetOrder()
	if order == nil || stringValue(order.GetID()) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no order")
	}
	created := &CreatedOrder{
		OrderID:     stringValue(order.GetID()),
		AmountCents: params.AmountCents,
	}
	if state := order.GetState(); state != nil {
		created.State = string(*state)
	}
	c.log(ctx, "response", "create_order", map[string]any{
		"order_id": created.OrderID,
		"state":    created.State,
	})
	return created, nil
}

// GetPayment fetches a payment so checkout can verify the capture before committing.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})

	out, err := c.call("get payment", func() (any, error) {
		resp, err := c.payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
		if err != nil {
			return nil, c.mapSquareError(err, "get payment")
		}
		return resp, nil
	})
	if err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	raw := out.(*sq.GetPaymentResponse).GetPayment()
	if raw == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "square payment not found")
	}
	payment := &Payment{
		ID:      stringValue(raw.GetID()),
		OrderID: stringValue(raw.GetOrderID()),
		Status:  stringValue(raw.GetStatus()),
	}
	if money := raw.GetAmountMoney(); money != nil {
		if amount := money.GetAmount(); amount != nil {
			payment.AmountCents = *amount
		}
		if currency := money.GetCurrency(); currency != nil {
			payment.Currency = string(*currency)
		}
	}
	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"status":     payment.Status,
	})
	return payment, nil
}
