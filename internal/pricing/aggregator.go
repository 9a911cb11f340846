package pricing

import (
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Quote is the order-level summary shown before payment and charged at the gateway.
type Quote struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Shipping   decimal.Decimal
	Tax        decimal.Decimal
	GrandTotal decimal.Decimal
	ItemCount  int
}

// Aggregator turns priced lines into a Quote. Policies are swappable
// without touching the Pricer.
type Aggregator struct {
	shipping ShippingPolicy
	discount DiscountPolicy
	tax      TaxPolicy
}

func NewAggregator(shipping ShippingPolicy, discount DiscountPolicy, tax TaxPolicy) *Aggregator {
	if shipping == nil {
		shipping = FlatShipping{}
	}
	if discount == nil {
		discount = NoDiscount{}
	}
	if tax == nil {
		tax = NoTax{}
	}
	return &Aggregator{shipping: shipping, discount: discount, tax: tax}
}

func NewAggregatorFromConfig(cfg config.CheckoutConfig) *Aggregator {
	return NewAggregator(PoliciesFromConfig(cfg))
}

// Quote computes subtotal - discount + shipping + tax. Only the grand total
// is floored at zero, so a discount larger than the goods also absorbs
// shipping and tax.
func (a *Aggregator) Quote(lines []PricedLine) Quote {
	subtotal := decimal.Zero
	items := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
		items += l.Quantity
	}
	subtotal = types.RoundMoney(subtotal)

	discount := types.RoundMoney(a.discount.Discount(lines, subtotal))
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	shipping := types.RoundMoney(a.shipping.Fee(subtotal))
	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := types.RoundMoney(a.tax.Tax(taxable))

	grand := subtotal.Sub(discount).Add(shipping).Add(tax)
	if grand.IsNegative() {
		grand = decimal.Zero
	}

	return Quote{
		Subtotal:   subtotal,
		Discount:   discount,
		Shipping:   shipping,
		Tax:        tax,
		GrandTotal: types.RoundMoney(grand),
		ItemCount:  items,
	}
}
