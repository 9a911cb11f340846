package cart

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

const fieldSep = "|"

// Owner identifies whose cart a hash belongs to.
type Owner string

func CustomerOwner(id uuid.UUID) Owner { return Owner("customer:" + id.String()) }

func GuestOwner(sessionID string) Owner { return Owner("guest:" + sessionID) }

func (o Owner) String() string { return string(o) }

// VariantKey is the identity of a cart line: the same product in two colors
// is two lines.
type VariantKey struct {
	ProductID int64  `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

// NewVariantKey trims and validates user input.
func NewVariantKey(productID int64, color, size string) (VariantKey, error) {
	key := VariantKey{
		ProductID: productID,
		Color:     strings.TrimSpace(color),
		Size:      strings.TrimSpace(size),
	}
	if productID <= 0 {
		return VariantKey{}, pkgerrors.New(pkgerrors.CodeValidation, "product_id must be positive")
	}
	if strings.Contains(key.Color, fieldSep) || strings.Contains(key.Size, fieldSep) {
		return VariantKey{}, pkgerrors.New(pkgerrors.CodeValidation, "color and size must not contain '|'")
	}
	return key, nil
}

func (k VariantKey) field() string {
	return strconv.FormatInt(k.ProductID, 10) + fieldSep + k.Color + fieldSep + k.Size
}

// legacyField is the pre-variant field for the key's product.
func (k VariantKey) legacyField() string {
	return strconv.FormatInt(k.ProductID, 10)
}

// Less orders keys by product, then color, then size.
func (k VariantKey) Less(o VariantKey) bool {
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	if k.Color != o.Color {
		return k.Color < o.Color
	}
	return k.Size < o.Size
}

// Line is one (variant, quantity) entry. Quantity is whatever the store
// held; pricing discards non-positive values.
type Line struct {
	Key      VariantKey `json:"key"`
	Quantity int        `json:"quantity"`
}

type entryKind int

const (
	entryVariant entryKind = iota
	entryLegacy
)

// entry is a decoded hash field. Legacy entries were written before variants
// existed: the field is a bare product id.
type entry struct {
	kind     entryKind
	field    string
	key      VariantKey
	quantity int
}

func decodeEntry(field, value string) (entry, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		qty = 0
	}

	parts := strings.Split(field, fieldSep)
	switch len(parts) {
	case 1:
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || id <= 0 {
			return entry{}, fmt.Errorf("unrecognized cart field %q", field)
		}
		return entry{kind: entryLegacy, field: field, key: VariantKey{ProductID: id}, quantity: qty}, nil
	case 3:
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || id <= 0 {
			return entry{}, fmt.Errorf("unrecognized cart field %q", field)
		}
		return entry{
			kind:     entryVariant,
			field:    field,
			key:      VariantKey{ProductID: id, Color: parts[1], Size: parts[2]},
			quantity: qty,
		}, nil
	default:
		return entry{}, fmt.Errorf("unrecognized cart field %q", field)
	}
}
