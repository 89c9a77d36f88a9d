package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const TTL = 30 * 24 * time.Hour

const (
	EventUpdated = "updated"
	EventCleared = "cleared"
)

func key(cartID string) string { return "cart:" + cartID }

// Channel is the pub/sub channel that announces changes to a cart.
func Channel(cartID string) string { return "cart:" + cartID }

// Store keeps carts in Redis as JSON.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, ttl: TTL}
}

// Load returns the stored cart or an empty one.
func (s *Store) Load(ctx context.Context, cartID string) (*Cart, error) {
	data, err := s.rdb.Get(ctx, key(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

// Save writes the cart, refreshing its TTL, and publishes the change. An
// empty cart is deleted instead.
func (s *Store) Save(ctx context.Context, cartID string, c *Cart) error {
	if c.IsEmpty() {
		return s.Delete(ctx, cartID)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, key(cartID), data, s.ttl)
	pipe.Publish(ctx, Channel(cartID), EventUpdated)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete removes the cart and publishes the change.
func (s *Store) Delete(ctx context.Context, cartID string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key(cartID))
	pipe.Publish(ctx, Channel(cartID), EventCleared)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// Subscribe listens for changes to one cart. The caller closes the
// subscription.
func (s *Store) Subscribe(ctx context.Context, cartID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, Channel(cartID))
}
