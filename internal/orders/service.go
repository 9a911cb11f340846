package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
)

// ListParams are the history filters accepted from the HTTP layer.
type ListParams struct {
	Status *enums.OrderStatus
	Search string
	pagination.Params
}

type reader interface {
	List(ctx context.Context, customerID uuid.UUID, filter ListFilter) ([]models.Order, error)
	FindForCustomer(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error)
}

// Service exposes a customer's own order history.
type Service struct {
	repo reader
}

func NewService(repo reader) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, customerID uuid.UUID, params ListParams) (pagination.Page[Summary], error) {
	if customerID == uuid.Nil {
		return pagination.Page[Summary]{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return pagination.Page[Summary]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[Summary]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, customerID, ListFilter{
		Status: params.Status,
		Search: params.Search,
		Limit:  params.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return pagination.Page[Summary]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := pagination.Page[Summary]{Items: make([]Summary, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, o := range page.Items {
		out.Items = append(out.Items, toSummary(o))
	}
	return out, nil
}

// Detail returns the order only to its owner; anyone else sees not found.
func (s *Service) Detail(ctx context.Context, orderID, customerID uuid.UUID) (*Detail, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	order, err := s.repo.FindForCustomer(ctx, orderID, customerID)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	detail := toDetail(*order)
	return &detail, nil
}
