package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog row. Soft-deleted products are invisible to lookups.
type Product struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SKU       string          `gorm:"column:sku;not null;uniqueIndex:ux_products_sku"`
	Name      string          `gorm:"column:name;not null"`
	Category  string          `gorm:"column:category;not null;default:''"`
	Gender    string          `gorm:"column:gender;not null;default:''"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	SalePrice decimal.Decimal `gorm:"column:sale_price;type:numeric(12,2);not null;default:0"`
	OnSale    bool            `gorm:"column:on_sale;not null;default:false"`
	CostPrice decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null;default:0"`
	Stock     int             `gorm:"column:stock;not null;default:0"`
	ImageURL  *string         `gorm:"column:image_url"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}
