package enums

// CheckoutState is the lifecycle of one payment attempt against a cart.
// Committed and failed are final.
type CheckoutState string

const (
	CheckoutStateQuoted                      CheckoutState = "quoted"
	CheckoutStateAwaitingPaymentConfirmation CheckoutState = "awaiting_payment_confirmation"
	CheckoutStateCommitting                  CheckoutState = "committing"
	CheckoutStateCommitted                   CheckoutState = "committed"
	CheckoutStateFailed                      CheckoutState = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCommitted || s == CheckoutStateFailed
}

// CheckoutFailureReason explains why a checkout session ended in failed.
type CheckoutFailureReason string

const (
	FailureNotAuthenticated   CheckoutFailureReason = "not_authenticated"
	FailureEmptyCart          CheckoutFailureReason = "empty_cart"
	FailureProductUnavailable CheckoutFailureReason = "product_unavailable"
	FailureInsufficientStock  CheckoutFailureReason = "insufficient_stock"
	FailureAmountMismatch     CheckoutFailureReason = "amount_mismatch"
	FailurePersistFailed      CheckoutFailureReason = "persist_failed"
)
