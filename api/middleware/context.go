package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/google/uuid"
)

type contextKey string

const (
	ctxCustomerID contextKey = "customer_id"
	ctxAccessID   contextKey = "access_id"
	ctxCartOwner  contextKey = "cart_owner"
)

// CustomerIDFromContext returns the signed-in customer, or uuid.Nil for guests.
func CustomerIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxCustomerID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// AccessIDFromContext returns the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// CartOwnerFromContext returns the cart the request operates on.
func CartOwnerFromContext(ctx context.Context) cart.Owner {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCartOwner).(cart.Owner); ok {
		return v
	}
	return ""
}

// WithCustomerID injects the customer identifier into the context.
func WithCustomerID(ctx context.Context, customerID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCustomerID, customerID)
}

// WithCartOwner injects the resolved cart owner for downstream handlers.
func WithCartOwner(ctx context.Context, owner cart.Owner) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCartOwner, owner)
}
