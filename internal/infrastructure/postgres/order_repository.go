package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateIfAbsent inserts the order, or overwrites an existing record only while that record
// has no items. Zero affected rows means a settled order already holds the session.
func (r *OrderRepository) CreateIfAbsent(ctx context.Context, o *domain.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("postgres: marshal order items: %w", err)
	}

	const query = `
INSERT INTO orders (session_id, customer_email, items, item_count, subtotal, shipping, total,
                    finalized, status, failure_reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (session_id) DO UPDATE SET
    customer_email = EXCLUDED.customer_email,
    items          = EXCLUDED.items,
    item_count     = EXCLUDED.item_count,
    subtotal       = EXCLUDED.subtotal,
    shipping       = EXCLUDED.shipping,
    total          = EXCLUDED.total,
    finalized      = EXCLUDED.finalized,
    status         = EXCLUDED.status,
    failure_reason = EXCLUDED.failure_reason,
    updated_at     = EXCLUDED.updated_at
WHERE orders.item_count = 0`

	res, err := r.db.ExecContext(ctx, query,
		o.SessionID,
		o.CustomerEmail,
		itemsJSON,
		len(o.Items),
		o.Subtotal,
		o.Shipping,
		o.Total,
		o.Finalized,
		string(o.Status),
		o.FailureReason,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("postgres: insert order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *OrderRepository) FindBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	const query = `
SELECT session_id, customer_email, items, subtotal, shipping, total,
       finalized, status, failure_reason, created_at, updated_at
FROM orders WHERE session_id = $1`

	var (
		o         domain.Order
		itemsJSON []byte
		status    string
	)
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&o.SessionID,
		&o.CustomerEmail,
		&itemsJSON,
		&o.Subtotal,
		&o.Shipping,
		&o.Total,
		&o.Finalized,
		&status,
		&o.FailureReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: query order: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal order items: %w", err)
	}
	o.Status = domain.Status(status)
	return &o, nil
}

// Update persists the status cursor. Items and amounts are fixed once created.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	const query = `
UPDATE orders SET status = $2, failure_reason = $3, finalized = $4, updated_at = $5
WHERE session_id = $1`

	res, err := r.db.ExecContext(ctx, query,
		o.SessionID,
		string(o.Status),
		o.FailureReason,
		o.Finalized,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
