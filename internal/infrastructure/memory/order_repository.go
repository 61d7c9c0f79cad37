package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"
)

// OrderRepository keys orders by session ID. Reads return copies.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

// Seed stores a record as-is, including empty ones. Meant for fixtures.
func (r *OrderRepository) Seed(order *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.SessionID] = order.Clone()
}

func (r *OrderRepository) CreateIfAbsent(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.SessionID == "" {
		return fmt.Errorf("order repository: session id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.orders[order.SessionID]; ok && !existing.IsEmpty() {
		return domain.ErrConflict
	}
	r.orders[order.SessionID] = order.Clone()
	return nil
}

func (r *OrderRepository) FindBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.SessionID == "" {
		return fmt.Errorf("order repository: session id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.SessionID]; !exists {
		return domain.ErrNotFound
	}
	r.orders[order.SessionID] = order.Clone()
	return nil
}

func (r *OrderRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
