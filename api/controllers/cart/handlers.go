package cart

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalcart "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type lineWriter interface {
	AddOrIncrement(ctx context.Context, owner internalcart.Owner, key internalcart.VariantKey, delta int) error
	SetQuantity(ctx context.Context, owner internalcart.Owner, key internalcart.VariantKey, qty int) error
	Remove(ctx context.Context, owner internalcart.Owner, key internalcart.VariantKey) error
}

type quoter interface {
	Quote(ctx context.Context, owner internalcart.Owner) (*checkout.QuoteResult, error)
}

// CartFetch prices the caller's cart against the live catalog.
func CartFetch(svc quoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeQuote(w, r, svc, owner, logg)
	}
}

// CartAdd adds quantity (at least 1) to a variant line. New lines need a
// color and size.
func CartAdd(store lineWriter, svc quoter, logg *logger.Logger) http.HandlerFunc {
	return mutate(store, svc, logg, true, func(ctx context.Context, owner internalcart.Owner, key internalcart.VariantKey, req lineRequest) error {
		return store.AddOrIncrement(ctx, owner, key, req.Quantity)
	})
}

// CartUpdate overwrites the quantity of an existing line.
func CartUpdate(store lineWriter, svc quoter, logg *logger.Logger) http.HandlerFunc {
	return mutate(store, svc, logg, false, func(ctx context.Context, owner internalcart.Owner, key internalcart.VariantKey, req lineRequest) error {
		return store.SetQuantity(ctx, owner, key, req.Quantity)
	})
}

// CartRemove deletes a line; removing a missing line is not an error.
func CartRemove(store lineWriter, svc quoter, logg *logger.Logger) http.HandlerFunc {
	return mutate(store, svc, logg, false, func(ctx context.Context, owner internalcart.Owner, key internalcart.VariantKey, _ lineRequest) error {
		return store.Remove(ctx, owner, key)
	})
}

type mutation func(ctx context.Context, owner internalcart.Owner, key internalcart.VariantKey, req lineRequest) error

func mutate(store lineWriter, svc quoter, logg *logger.Logger, requireVariant bool, apply mutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body lineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key, err := body.key()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if requireVariant && (key.Color == "" || key.Size == "") {
			responses.WriteError(r.Context(), logg, w, errVariantRequired)
			return
		}

		if err := apply(r.Context(), owner, key, body); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart"))
			return
		}
		writeQuote(w, r, svc, owner, logg)
	}
}

func writeQuote(w http.ResponseWriter, r *http.Request, svc quoter, owner internalcart.Owner, logg *logger.Logger) {
	res, err := svc.Quote(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, NewQuoteView(res))
}

func ownerFromRequest(r *http.Request) (internalcart.Owner, error) {
	owner := middleware.CartOwnerFromContext(r.Context())
	if owner == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session missing")
	}
	return owner, nil
}
