package checkout

import (
	"fmt"
	"slices"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var transitions = map[enums.CheckoutState][]enums.CheckoutState{
	enums.CheckoutStateQuoted:                      {enums.CheckoutStateAwaitingPaymentConfirmation},
	enums.CheckoutStateAwaitingPaymentConfirmation: {enums.CheckoutStateCommitting},
	enums.CheckoutStateCommitting:                  {enums.CheckoutStateCommitted, enums.CheckoutStateFailed},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to enums.CheckoutState) bool {
	return slices.Contains(transitions[from], to)
}

func checkTransition(from, to enums.CheckoutState) error {
	switch {
	case CanTransition(from, to):
		return nil
	case from.IsTerminal():
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout already %s", from))
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout cannot move from %s to %s", from, to))
	}
}
