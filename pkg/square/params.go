package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// OrderCreateParams describes the Square order created when a shopper starts payment.
// The charge is a single line for the quoted grand total so shipping, discount
// and tax never have to be re-derived on Square's side.
type OrderCreateParams struct {
	AmountCents    int64
	Currency       string
	ReferenceID    string
	Description    string
	IdempotencyKey string
}

func (p OrderCreateParams) toSquareRequest(locationID, idempotencyKey string) *sq.CreateOrderRequest {
	name := strings.TrimSpace(p.Description)
	if name == "" {
		name = "Storefront order"
	}
	order := &sq.Order{
		LocationID:  locationID,
		ReferenceID: ptrString(p.ReferenceID),
		LineItems: []*sq.OrderLineItem{{
			Name:           ptrString(name),
			Quantity:       "1",
			BasePriceMoney: moneyPtr(p.AmountCents, p.Currency),
		}},
	}
	return &sq.CreateOrderRequest{
		Order:          order,
		IdempotencyKey: ptrString(idempotencyKey),
	}
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
