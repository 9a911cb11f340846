package checkout

import (
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var (
	ErrNotAuthenticated   = pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to check out")
	ErrEmptyCart          = pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no purchasable items")
	ErrZeroAmount         = pkgerrors.New(pkgerrors.CodeValidation, "order total must be greater than zero")
	ErrSessionNotFound    = pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	ErrCaptureMismatch    = pkgerrors.New(pkgerrors.CodeValidation, "capture does not belong to this checkout")
	ErrCaptureInProgress  = pkgerrors.New(pkgerrors.CodeIdempotency, "capture already processing")
	ErrPaymentNotCaptured = pkgerrors.New(pkgerrors.CodePaymentDeclined, "payment was not completed")
	// ErrPaymentUnrecorded means the gateway took the money and no order exists.
	ErrPaymentUnrecorded = pkgerrors.New(pkgerrors.CodePaymentUnrecorded, "payment captured but order not recorded")
)
