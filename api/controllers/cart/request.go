package cart

import (
	internalcart "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// lineRequest names one cart line. Quantity is ignored on delete and
// clamped to at least 1 by the store otherwise. Color and size may be empty
// so lines upgraded from pre-variant carts stay addressable.
type lineRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Color     string `json:"color" validate:"omitempty,max=64"`
	Size      string `json:"size" validate:"omitempty,max=32"`
	Quantity  int    `json:"quantity" validate:"omitempty,max=999"`
}

var errVariantRequired = pkgerrors.New(pkgerrors.CodeValidation, "color and size are required").
	WithDetails(map[string]string{"color": "is required", "size": "is required"})

func (r lineRequest) key() (internalcart.VariantKey, error) {
	return internalcart.NewVariantKey(r.ProductID, r.Color, r.Size)
}
