package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type paymentStarter interface {
	BeginPayment(ctx context.Context, customerID uuid.UUID) (*checkoutsvc.PaymentStart, error)
}

type captureConfirmer interface {
	ConfirmCapture(ctx context.Context, c checkoutsvc.Capture) (*checkoutsvc.CommitResult, error)
}

type paymentResponse struct {
	SessionID      uuid.UUID                 `json:"session_id"`
	GatewayOrderID string                    `json:"gateway_order_id"`
	AmountCents    int64                     `json:"amount_cents"`
	Quote          cartcontrollers.QuoteView `json:"quote"`
}

// CheckoutPayment registers the signed-in customer's cart total with the
// gateway and returns the order id the browser pays against.
func CheckoutPayment(svc paymentStarter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		start, err := svc.BeginPayment(r.Context(), middleware.CustomerIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentResponse{
			SessionID:      start.SessionID,
			GatewayOrderID: start.GatewayOrderID,
			AmountCents:    start.AmountCents,
			Quote:          cartcontrollers.NewQuoteView(start.Quote),
		})
	}
}

type captureRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required,notblank,max=192"`
	CaptureID      string `json:"capture_id" validate:"required,notblank,max=192"`
}

type captureResponse struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Duplicate   bool      `json:"duplicate"`
}

// CheckoutCapture records the order for a capture the browser reports.
// Replays of a committed capture return the original order.
func CheckoutCapture(svc captureConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var body captureRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.ConfirmCapture(r.Context(), checkoutsvc.Capture{
			CustomerID:     middleware.CustomerIDFromContext(r.Context()),
			GatewayOrderID: body.GatewayOrderID,
			CaptureID:      body.CaptureID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if res.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, captureResponse{
			OrderID:     res.OrderID,
			OrderNumber: res.OrderNumber,
			Duplicate:   res.Duplicate,
		})
	}
}
