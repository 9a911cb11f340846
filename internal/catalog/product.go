package catalog

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

// Product is the read-only catalog view used for pricing and order snapshots.
type Product struct {
	ID        int64
	SKU       string
	Name      string
	Category  string
	Gender    string
	Price     decimal.Decimal
	SalePrice decimal.Decimal
	OnSale    bool
	CostPrice decimal.Decimal
	Stock     int
	ImageURL  *string
}

// UnitPrice is the sale price when the product is on sale with a positive
// sale price, otherwise the list price.
func (p Product) UnitPrice() decimal.Decimal {
	if p.OnSale && p.SalePrice.IsPositive() {
		return p.SalePrice
	}
	return p.Price
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

func fromModel(m models.Product) Product {
	return Product{
		ID:        m.ID,
		SKU:       m.SKU,
		Name:      m.Name,
		Category:  m.Category,
		Gender:    m.Gender,
		Price:     m.Price,
		SalePrice: m.SalePrice,
		OnSale:    m.OnSale,
		CostPrice: m.CostPrice,
		Stock:     m.Stock,
		ImageURL:  m.ImageURL,
	}
}
