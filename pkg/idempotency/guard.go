// Package idempotency marks work items as in-flight or done in Redis so
// duplicate deliveries (webhooks, double-clicked captures) are processed once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &Guard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark claims id and reports whether it had already been claimed.
func (g *Guard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	acquired, err := g.Acquire(ctx, id)
	if err != nil {
		return false, err
	}
	return !acquired, nil
}

// Acquire claims id; false means another caller holds it.
func (g *Guard) Acquire(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("id is required")
	}
	key := g.store.IdempotencyKey(g.scope, id)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return set, nil
}

// Release drops the claim so a retry can run again.
func (g *Guard) Release(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, id))
}

// Delete is Release under the name webhook handlers use.
func (g *Guard) Delete(ctx context.Context, id string) error {
	return g.Release(ctx, id)
}
