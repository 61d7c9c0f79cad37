package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
)

type InventoryRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewInventoryRepository(seed ...*domain.Product) *InventoryRepository {
	r := &InventoryRepository{
		products: make(map[string]*domain.Product, len(seed)),
	}
	for _, p := range seed {
		if p != nil {
			r.products[p.ID] = p.Clone()
		}
	}
	return r
}

func (r *InventoryRepository) List(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InventoryRepository) UpdateStock(ctx context.Context, productID string, stockQuantity int) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.StockQuantity = stockQuantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Stock returns the current count for one product.
func (r *InventoryRepository) Stock(productID string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[productID]
	if !ok {
		return 0, false
	}
	return p.StockQuantity, true
}
