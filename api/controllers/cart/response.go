package cart

import (
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// QuoteView is the JSON shape of a priced cart. Checkout reuses it so the
// payment response shows exactly what was charged.
type QuoteView struct {
	State      enums.CheckoutState `json:"state"`
	Currency   string              `json:"currency"`
	Lines      []LineView          `json:"lines"`
	Discarded  []DiscardedView     `json:"discarded"`
	Subtotal   decimal.Decimal     `json:"subtotal"`
	Discount   decimal.Decimal     `json:"discount"`
	Shipping   decimal.Decimal     `json:"shipping"`
	Tax        decimal.Decimal     `json:"tax"`
	GrandTotal decimal.Decimal     `json:"grand_total"`
	ItemCount  int                 `json:"item_count"`
}

type LineView struct {
	ProductID int64           `json:"product_id"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Category  string          `json:"category"`
	ImageURL  *string         `json:"image_url,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ListPrice decimal.Decimal `json:"list_price"`
	OnSale    bool            `json:"on_sale"`
	LineTotal decimal.Decimal `json:"line_total"`
	LowStock  bool            `json:"low_stock"`
	Available int             `json:"available"`
}

// DiscardedView tells the shopper a line was dropped from the quote.
type DiscardedView struct {
	ProductID int64                 `json:"product_id"`
	Color     string                `json:"color"`
	Size      string                `json:"size"`
	Quantity  int                   `json:"quantity"`
	Reason    pricing.DiscardReason `json:"reason"`
}

func NewQuoteView(res *checkout.QuoteResult) QuoteView {
	view := QuoteView{
		State:      res.State,
		Currency:   res.Currency,
		Lines:      make([]LineView, 0, len(res.Resolution.Lines)),
		Discarded:  make([]DiscardedView, 0, len(res.Resolution.Discarded)),
		Subtotal:   res.Quote.Subtotal,
		Discount:   res.Quote.Discount,
		Shipping:   res.Quote.Shipping,
		Tax:        res.Quote.Tax,
		GrandTotal: res.Quote.GrandTotal,
		ItemCount:  res.Quote.ItemCount,
	}
	for _, l := range res.Resolution.Lines {
		view.Lines = append(view.Lines, LineView{
			ProductID: l.Key.ProductID,
			Color:     l.Key.Color,
			Size:      l.Key.Size,
			Name:      l.Product.Name,
			SKU:       l.Product.SKU,
			Category:  l.Product.Category,
			ImageURL:  l.Product.ImageURL,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			ListPrice: l.Product.Price,
			OnSale:    l.Product.OnSale,
			LineTotal: l.LineTotal,
			LowStock:  l.LowStock,
			Available: l.Product.Stock,
		})
	}
	for _, d := range res.Resolution.Discarded {
		view.Discarded = append(view.Discarded, DiscardedView{
			ProductID: d.Key.ProductID,
			Color:     d.Key.Color,
			Size:      d.Key.Size,
			Quantity:  d.Quantity,
			Reason:    d.Reason,
		})
	}
	return view
}
