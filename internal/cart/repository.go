package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

// Store is the cart contract used by pricing, checkout and the HTTP layer.
type Store interface {
	AddOrIncrement(ctx context.Context, owner Owner, key VariantKey, delta int) error
	SetQuantity(ctx context.Context, owner Owner, key VariantKey, qty int) error
	Remove(ctx context.Context, owner Owner, key VariantKey) error
	Enumerate(ctx context.Context, owner Owner) ([]Line, error)
	Clear(ctx context.Context, owner Owner) error
	Merge(ctx context.Context, from, into Owner) error
}

// upgradeLegacy moves a product's legacy field (ARGV[4]) onto its
// empty-variant field (ARGV[5]) so the first write touching the product sees
// the upgraded line.
const upgradeLegacy = `
local legacy = redis.call('HGET', KEYS[1], ARGV[4])
if legacy then
  redis.call('HDEL', KEYS[1], ARGV[4])
  local n = tonumber(legacy)
  if n and n > 0 then redis.call('HINCRBY', KEYS[1], ARGV[5], n) end
end
`

// Every write refreshes the TTL; ARGV ttl of 0 leaves expiry alone.
var (
	incrementScript = goredis.NewScript(upgradeLegacy + `
local q = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if tonumber(ARGV[3]) > 0 then redis.call('PEXPIRE', KEYS[1], ARGV[3]) end
return q`)

	setIfPresentScript = goredis.NewScript(upgradeLegacy + `
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then return 0 end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if tonumber(ARGV[3]) > 0 then redis.call('PEXPIRE', KEYS[1], ARGV[3]) end
return 1`)

	removeScript = goredis.NewScript(upgradeLegacy + `
return redis.call('HDEL', KEYS[1], ARGV[1])`)

	normalizeScript = goredis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if not v then return 0 end
redis.call('HDEL', KEYS[1], ARGV[1])
local n = tonumber(v)
if not n or n < 1 then return 0 end
redis.call('HINCRBY', KEYS[1], ARGV[2], n)
return 1`)

	mergeScript = goredis.NewScript(`
local src = redis.call('HGETALL', KEYS[1])
for i = 1, #src, 2 do
  local n = tonumber(src[i + 1])
  if n and n > 0 then redis.call('HINCRBY', KEYS[2], src[i], n) end
end
redis.call('DEL', KEYS[1])
if #src > 0 and tonumber(ARGV[1]) > 0 then redis.call('PEXPIRE', KEYS[2], ARGV[1]) end
return #src / 2`)
)

// Repository stores each cart as one Redis hash with a field per variant.
// Field-level commands keep concurrent writes to different variants from
// clobbering each other.
type Repository struct {
	client *redis.Client
	ttl    time.Duration
	logg   *logger.Logger
}

func NewRepository(client *redis.Client, ttl time.Duration, logg *logger.Logger) *Repository {
	if ttl < 0 {
		ttl = 0
	}
	return &Repository{client: client, ttl: ttl, logg: logg}
}

// AddOrIncrement adds delta to the line, creating it if needed. A delta
// below 1 counts as 1.
func (r *Repository) AddOrIncrement(ctx context.Context, owner Owner, key VariantKey, delta int) error {
	if delta < 1 {
		delta = 1
	}
	_, err := r.runWrite(ctx, incrementScript, owner, key, delta)
	if err != nil {
		return fmt.Errorf("cart increment: %w", err)
	}
	return nil
}

// SetQuantity overwrites an existing line. Missing lines stay missing and a
// quantity below 1 counts as 1.
func (r *Repository) SetQuantity(ctx context.Context, owner Owner, key VariantKey, qty int) error {
	if qty < 1 {
		qty = 1
	}
	_, err := r.runWrite(ctx, setIfPresentScript, owner, key, qty)
	if err != nil {
		return fmt.Errorf("cart set quantity: %w", err)
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, owner Owner, key VariantKey) error {
	if _, err := r.runWrite(ctx, removeScript, owner, key, 0); err != nil {
		return fmt.Errorf("cart remove: %w", err)
	}
	return nil
}

// runWrite runs a per-line script with the argument layout upgradeLegacy
// expects.
func (r *Repository) runWrite(ctx context.Context, script *goredis.Script, owner Owner, key VariantKey, n int) (any, error) {
	legacy := VariantKey{ProductID: key.ProductID}
	return r.client.RunScript(ctx, script, []string{r.key(owner)},
		key.field(), n, r.ttl.Milliseconds(), legacy.legacyField(), legacy.field())
}

// Enumerate returns every line. Legacy fields are upgraded in place first.
func (r *Repository) Enumerate(ctx context.Context, owner Owner) ([]Line, error) {
	hashKey := r.key(owner)
	raw, err := r.client.HGetAll(ctx, hashKey)
	if err != nil {
		return nil, fmt.Errorf("cart read: %w", err)
	}

	entries, upgraded, err := r.decode(ctx, hashKey, raw)
	if err != nil {
		return nil, err
	}
	if upgraded {
		raw, err = r.client.HGetAll(ctx, hashKey)
		if err != nil {
			return nil, fmt.Errorf("cart read: %w", err)
		}
		if entries, _, err = r.decode(ctx, hashKey, raw); err != nil {
			return nil, err
		}
	}

	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Line{Key: e.key, Quantity: e.quantity})
	}
	return lines, nil
}

func (r *Repository) decode(ctx context.Context, hashKey string, raw map[string]string) ([]entry, bool, error) {
	entries := make([]entry, 0, len(raw))
	upgraded := false
	for field, value := range raw {
		e, err := decodeEntry(field, value)
		if err != nil {
			if r.logg != nil {
				r.logg.Warn(r.logg.WithField(ctx, "field", field), "skipping unreadable cart field")
			}
			continue
		}
		if e.kind == entryLegacy {
			if err := r.normalize(ctx, hashKey, e); err != nil {
				return nil, false, err
			}
			upgraded = true
			continue
		}
		entries = append(entries, e)
	}
	return entries, upgraded, nil
}

// normalize rewrites a legacy field onto its empty-variant field, merging
// quantities when both exist.
func (r *Repository) normalize(ctx context.Context, hashKey string, e entry) error {
	_, err := r.client.RunScript(ctx, normalizeScript, []string{hashKey}, e.field, e.key.field())
	if err != nil {
		return fmt.Errorf("cart normalize: %w", err)
	}
	return nil
}

func (r *Repository) Clear(ctx context.Context, owner Owner) error {
	if err := r.client.Del(ctx, r.key(owner)); err != nil {
		return fmt.Errorf("cart clear: %w", err)
	}
	return nil
}

// Merge adds every line of from into into and deletes from.
func (r *Repository) Merge(ctx context.Context, from, into Owner) error {
	if from == into {
		return nil
	}
	_, err := r.client.RunScript(ctx, mergeScript, []string{r.key(from), r.key(into)}, r.ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("cart merge: %w", err)
	}
	return nil
}

func (r *Repository) key(owner Owner) string {
	return r.client.CartKey(owner.String())
}
