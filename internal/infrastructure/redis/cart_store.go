package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/domain/cart"

	goredis "github.com/redis/go-redis/v9"
)

const defaultCartTTL = 7 * 24 * time.Hour

func cartKey(cartID string) string {
	return "cart:" + cartID
}

// CartStore keeps cart contents in a Redis hash per cart: product ID -> quantity.
type CartStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewCartStore(client *goredis.Client) *CartStore {
	return &CartStore{client: client, ttl: defaultCartTTL}
}

func (s *CartStore) Dispatch(ctx context.Context, cartID string, action cart.Action) error {
	if cartID == "" {
		return cart.ErrCartIDRequired
	}
	switch action.Type {
	case cart.ActionEmptyCart:
		if err := s.client.Del(ctx, cartKey(cartID)).Err(); err != nil {
			return fmt.Errorf("redis: empty cart: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", cart.ErrUnknownAction, action.Type)
	}
}

// Add increments a cart line. The storefront front end owns cart writes; this is used to
// seed carts in tests and local fixtures.
func (s *CartStore) Add(ctx context.Context, cartID, productID string, quantity int) error {
	key := cartKey(cartID)
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, productID, int64(quantity))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: add cart item: %w", err)
	}
	return nil
}

// Items reads a cart back. Like Add, it serves tests and fixtures only.
func (s *CartStore) Items(ctx context.Context, cartID string) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, cartKey(cartID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read cart: %w", err)
	}
	out := make(map[string]int, len(raw))
	for productID, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("redis: cart quantity for %s: %w", productID, err)
		}
		out[productID] = n
	}
	return out, nil
}
