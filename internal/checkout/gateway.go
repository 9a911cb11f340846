package checkout

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/square"
)

// GatewayOrder asks the gateway to expect a charge of AmountCents.
type GatewayOrder struct {
	AmountCents    int64
	Currency       string
	ReferenceID    string
	IdempotencyKey string
}

// CaptureStatus is the gateway's view of a payment.
type CaptureStatus struct {
	CaptureID      string
	GatewayOrderID string
	Completed      bool
	AmountCents    int64
	Currency       string
}

// Gateway is the payment processor seam.
type Gateway interface {
	CreateOrder(ctx context.Context, order GatewayOrder) (string, error)
	GetCapture(ctx context.Context, captureID string) (*CaptureStatus, error)
}

type squareClient interface {
	CreateOrder(ctx context.Context, params square.OrderCreateParams) (*square.CreatedOrder, error)
	GetPayment(ctx context.Context, paymentID string) (*square.Payment, error)
}

// SquareGateway adapts pkg/square to Gateway.
type SquareGateway struct {
	client squareClient
}

func NewSquareGateway(client squareClient) *SquareGateway {
	return &SquareGateway{client: client}
}

func (g *SquareGateway) CreateOrder(ctx context.Context, order GatewayOrder) (string, error) {
	created, err := g.client.CreateOrder(ctx, square.OrderCreateParams{
		AmountCents:    order.AmountCents,
		Currency:       order.Currency,
		ReferenceID:    order.ReferenceID,
		IdempotencyKey: order.IdempotencyKey,
	})
	if err != nil {
		return "", err
	}
	return created.OrderID, nil
}

func (g *SquareGateway) GetCapture(ctx context.Context, captureID string) (*CaptureStatus, error) {
	payment, err := g.client.GetPayment(ctx, captureID)
	if err != nil {
		return nil, err
	}
	return &CaptureStatus{
		CaptureID:      payment.ID,
		GatewayOrderID: payment.OrderID,
		Completed:      payment.Completed(),
		AmountCents:    payment.AmountCents,
		Currency:       payment.Currency,
	}, nil
}
