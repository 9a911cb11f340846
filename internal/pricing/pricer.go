package pricing

import (
	"context"
	"sort"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

type DiscardReason string

const (
	DiscardNotFound        DiscardReason = "not_found"
	DiscardOutOfStock      DiscardReason = "out_of_stock"
	DiscardInvalidQuantity DiscardReason = "invalid_quantity"
)

// PricedLine is a cart line joined with its live product.
type PricedLine struct {
	Key       cart.VariantKey
	Product   catalog.Product
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	// LowStock is set when some stock remains but less than requested.
	LowStock bool
}

// DiscardedLine is a cart line that could not be priced.
type DiscardedLine struct {
	Key      cart.VariantKey
	Quantity int
	Reason   DiscardReason
}

type Resolution struct {
	Lines     []PricedLine
	Discarded []DiscardedLine
}

func (r Resolution) Empty() bool {
	return len(r.Lines) == 0
}

// Pricer resolves cart lines against the catalog on every call; nothing is cached.
type Pricer struct {
	catalog catalog.Lookup
}

func NewPricer(lookup catalog.Lookup) *Pricer {
	return &Pricer{catalog: lookup}
}

// Resolve prices lines. Output is sorted by variant key so repeated calls
// over the same inputs compare equal.
func (p *Pricer) Resolve(ctx context.Context, lines []cart.Line) (Resolution, error) {
	res := Resolution{Lines: []PricedLine{}, Discarded: []DiscardedLine{}}
	if len(lines) == 0 {
		return res, nil
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.Key.ProductID)
	}
	products, err := p.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return Resolution{}, err
	}

	for _, l := range lines {
		product, ok := products[l.Key.ProductID]
		switch {
		case !ok:
			res.Discarded = append(res.Discarded, DiscardedLine{Key: l.Key, Quantity: l.Quantity, Reason: DiscardNotFound})
			continue
		case !product.InStock():
			res.Discarded = append(res.Discarded, DiscardedLine{Key: l.Key, Quantity: l.Quantity, Reason: DiscardOutOfStock})
			continue
		case l.Quantity <= 0:
			res.Discarded = append(res.Discarded, DiscardedLine{Key: l.Key, Quantity: l.Quantity, Reason: DiscardInvalidQuantity})
			continue
		}

		unit := types.RoundMoney(product.UnitPrice())
		res.Lines = append(res.Lines, PricedLine{
			Key:       l.Key,
			Product:   product,
			Quantity:  l.Quantity,
			UnitPrice: unit,
			LineTotal: types.RoundMoney(unit.Mul(decimal.NewFromInt(int64(l.Quantity)))),
			LowStock:  product.Stock < l.Quantity,
		})
	}

	sort.Slice(res.Lines, func(i, j int) bool { return res.Lines[i].Key.Less(res.Lines[j].Key) })
	sort.Slice(res.Discarded, func(i, j int) bool { return res.Discarded[i].Key.Less(res.Discarded[j].Key) })
	return res, nil
}
