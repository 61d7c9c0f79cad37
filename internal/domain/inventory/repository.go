package inventory

import "context"

type Repository interface {
	List(ctx context.Context) ([]*Product, error)
	// UpdateStock overwrites the stock count of one product. Unknown IDs return ErrNotFound.
	UpdateStock(ctx context.Context, productID string, stockQuantity int) error
}
