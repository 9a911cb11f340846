package pricing

import (
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type ShippingPolicy interface {
	Fee(subtotal decimal.Decimal) decimal.Decimal
}

type DiscountPolicy interface {
	Discount(lines []PricedLine, subtotal decimal.Decimal) decimal.Decimal
}

type TaxPolicy interface {
	Tax(taxable decimal.Decimal) decimal.Decimal
}

// FlatShipping charges Amount on any non-empty order. A positive
// FreeThreshold waives the fee once the subtotal reaches it.
type FlatShipping struct {
	Amount        decimal.Decimal
	FreeThreshold decimal.Decimal
}

func (s FlatShipping) Fee(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	if s.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(s.FreeThreshold) {
		return decimal.Zero
	}
	return s.Amount
}

type NoDiscount struct{}

func (NoDiscount) Discount([]PricedLine, decimal.Decimal) decimal.Decimal { return decimal.Zero }

// PercentDiscount takes Percent (0-100) off the subtotal.
type PercentDiscount struct {
	Percent decimal.Decimal
}

func (d PercentDiscount) Discount(_ []PricedLine, subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(d.Percent).Div(hundred)
}

type NoTax struct{}

func (NoTax) Tax(decimal.Decimal) decimal.Decimal { return decimal.Zero }

// RateTax applies a fractional rate, e.g. 0.0825.
type RateTax struct {
	Rate decimal.Decimal
}

func (t RateTax) Tax(taxable decimal.Decimal) decimal.Decimal {
	return taxable.Mul(t.Rate)
}

// PoliciesFromConfig builds the configured policies; zero values select the
// no-op variants.
func PoliciesFromConfig(cfg config.CheckoutConfig) (ShippingPolicy, DiscountPolicy, TaxPolicy) {
	shipping := FlatShipping{Amount: cfg.ShippingFee, FreeThreshold: cfg.FreeShippingThreshold}

	var discount DiscountPolicy = NoDiscount{}
	if cfg.DiscountPercent.IsPositive() {
		discount = PercentDiscount{Percent: cfg.DiscountPercent}
	}

	var tax TaxPolicy = NoTax{}
	if cfg.TaxRate.IsPositive() {
		tax = RateTax{Rate: cfg.TaxRate}
	}
	return shipping, discount, tax
}
