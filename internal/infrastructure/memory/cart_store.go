package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/storefront/internal/domain/cart"
)

// CartStore holds cart contents keyed by cart ID and counts dispatched actions.
type CartStore struct {
	mu         sync.Mutex
	carts      map[string]map[string]int
	dispatches map[string]int
}

func NewCartStore() *CartStore {
	return &CartStore{
		carts:      make(map[string]map[string]int),
		dispatches: make(map[string]int),
	}
}

func (s *CartStore) Add(cartID, productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.carts[cartID]
	if !ok {
		items = make(map[string]int)
		s.carts[cartID] = items
	}
	items[productID] += quantity
}

func (s *CartStore) Dispatch(ctx context.Context, cartID string, action cart.Action) error {
	_ = ctx
	if cartID == "" {
		return cart.ErrCartIDRequired
	}
	if action.Type != cart.ActionEmptyCart {
		return cart.ErrUnknownAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartID)
	s.dispatches[cartID]++
	return nil
}

func (s *CartStore) Items(cartID string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.carts[cartID]))
	for k, v := range s.carts[cartID] {
		out[k] = v
	}
	return out
}

// Dispatches reports how many actions were applied to cartID.
func (s *CartStore) Dispatches(cartID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatches[cartID]
}
