// Package flash hands a one-shot notice from the request that commits an
// order to the next page the customer loads.
package flash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/google/uuid"
)

const defaultTTL = 10 * time.Minute

// Notice is the order confirmation shown once.
type Notice struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Put replaces any pending notice for owner.
func (s *Store) Put(ctx context.Context, owner string, notice Notice) error {
	if owner == "" {
		return errors.New("flash owner required")
	}
	raw, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.client.FlashKey(owner), raw, s.ttl); err != nil {
		return fmt.Errorf("flash put: %w", err)
	}
	return nil
}

// Take returns and clears the pending notice in one step; nil when none.
func (s *Store) Take(ctx context.Context, owner string) (*Notice, error) {
	if owner == "" {
		return nil, errors.New("flash owner required")
	}
	raw, err := s.client.GetDel(ctx, s.client.FlashKey(owner))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("flash take: %w", err)
	}
	var notice Notice
	if err := json.Unmarshal([]byte(raw), &notice); err != nil {
		return nil, fmt.Errorf("flash decode: %w", err)
	}
	return &notice, nil
}
