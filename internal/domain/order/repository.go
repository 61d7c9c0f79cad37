package order

import "context"

type Repository interface {
	FindBySession(ctx context.Context, sessionID string) (*Order, error)
	// CreateIfAbsent inserts the order unless a non-empty record already exists for its
	// session, in which case it returns ErrConflict. The check and the write are atomic.
	CreateIfAbsent(ctx context.Context, order *Order) error
	Update(ctx context.Context, order *Order) error
}
