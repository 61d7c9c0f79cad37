package inventory

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("inventory: product not found")
	ErrInvalidQuantity = errors.New("inventory: quantity must be greater than zero")
)

// Product is one catalogue entry with its stock count. Stock is not floored at zero.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	StockQuantity int       `json:"stock_quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewProduct(id, name string, stock int) *Product {
	return &Product{
		ID:            id,
		Name:          name,
		StockQuantity: stock,
		UpdatedAt:     time.Now().UTC(),
	}
}

// Deduct lowers stock by quantity. The result may be negative; callers decide how to report it.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.StockQuantity -= quantity
	p.touch()
	return nil
}

func (p *Product) Oversold() bool {
	return p.StockQuantity < 0
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// Index keys a product list by ID.
func Index(products []*Product) map[string]*Product {
	out := make(map[string]*Product, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		out[p.ID] = p
	}
	return out
}
