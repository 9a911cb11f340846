package squarewebhook

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const paymentCompleted = "COMPLETED"

type captureConfirmer interface {
	ConfirmGatewayCapture(ctx context.Context, gatewayOrderID, captureID string) (*checkout.CommitResult, error)
}

type ServiceParams struct {
	Checkout captureConfirmer
	Logger   *logger.Logger
}

type Service struct {
	checkout captureConfirmer
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Service{checkout: params.Checkout, logg: params.Logger}, nil
}

type SquareWebhookEvent struct {
	MerchantID string            `json:"merchant_id"`
	EventID    string            `json:"event_id"`
	Type       string            `json:"type"`
	CreatedAt  string            `json:"created_at"`
	Data       SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *SquarePayment `json:"payment"`
}

type SquarePayment struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	OrderID     string       `json:"order_id"`
	AmountMoney *SquareMoney `json:"amount_money"`
}

type SquareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// HandleEvent commits orders for completed payments whose shopper never
// came back through the browser. Other events are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
	default:
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	if !strings.EqualFold(payment.Status, paymentCompleted) {
		return nil
	}
	if payment.ID == "" || payment.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id and order id required")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"square_event_id":  event.EventID,
		"gateway_order_id": payment.OrderID,
		"capture_id":       payment.ID,
	})

	res, err := s.checkout.ConfirmGatewayCapture(ctx, payment.OrderID, payment.ID)
	switch {
	case err == nil:
		if res.Duplicate {
			s.logg.Debug(ctx, "square payment already recorded")
		} else {
			s.logg.Info(s.logg.WithOrderNumber(ctx, res.OrderNumber), "order committed from square webhook")
		}
		return nil
	case pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound:
		// Payments taken outside checkout (POS, invoices) have no session.
		s.logg.Debug(ctx, "square payment has no checkout session")
		return nil
	case pkgerrors.CodeOf(err) == pkgerrors.CodePaymentUnrecorded:
		// Redelivery cannot fix this; the unrecorded-payments job escalates it.
		s.logg.Warn(ctx, "square payment captured without an order")
		return nil
	default:
		return err
	}
}
