package catalog

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"gorm.io/gorm"
)

var ErrInsufficientStock = pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")

// StockReserver runs inside the order commit transaction once per line.
type StockReserver interface {
	Reserve(tx *gorm.DB, productID int64, qty int) error
}

// NoopReserver leaves stock untouched; concurrent checkouts may oversell.
type NoopReserver struct{}

func (NoopReserver) Reserve(*gorm.DB, int64, int) error { return nil }

// ConditionalReserver decrements stock only when enough remains, so two
// commits can never both take the last unit.
type ConditionalReserver struct{}

func (ConditionalReserver) Reserve(tx *gorm.DB, productID int64, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock.WithDetails(map[string]any{"product_id": productID})
	}
	return nil
}

// NewReserver picks the reserver for the strict-stock flag.
func NewReserver(strict bool) StockReserver {
	if strict {
		return ConditionalReserver{}
	}
	return NoopReserver{}
}
