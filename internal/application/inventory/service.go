package inventory

import (
	"context"
	"fmt"
	"sort"

	dominv "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
)

// Service serves read-only catalogue queries.
type Service struct {
	invRepo dominv.Repository
}

func NewService(invRepo dominv.Repository) *Service {
	return &Service{invRepo: invRepo}
}

// List returns the current stock snapshot ordered by product ID.
func (s *Service) List(ctx context.Context) ([]*dominv.Product, error) {
	products, err := s.invRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrRepository, err)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}
