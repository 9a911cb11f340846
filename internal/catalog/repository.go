package catalog

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Lookup resolves product ids against the live catalog.
type Lookup interface {
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error)
}

// Repository reads products through GORM. Identical concurrent lookups share
// one query.
type Repository struct {
	db    *gorm.DB
	group singleflight.Group
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetProductsByIDs returns the live products keyed by id. Unknown and
// soft-deleted ids are absent from the map.
func (r *Repository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	unique := normalizeIDs(ids)
	if len(unique) == 0 {
		return map[int64]Product{}, nil
	}

	v, err, _ := r.group.Do(lookupKey(unique), func() (any, error) {
		var rows []models.Product
		if err := r.db.WithContext(ctx).Where("id IN ?", unique).Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make(map[int64]Product, len(rows))
		for _, row := range rows {
			out[row.ID] = fromModel(row)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers may mutate their map; never hand out the shared result.
	shared := v.(map[int64]Product)
	out := make(map[int64]Product, len(shared))
	for id, p := range shared {
		out[id] = p
	}
	return out, nil
}

func normalizeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func lookupKey(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
