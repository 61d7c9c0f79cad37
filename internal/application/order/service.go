package order

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"
)

// Service exposes order reads and the status cursor updates that follow settlement.
type Service struct {
	repo domain.Repository
	log  observability.Logger
}

func NewService(repo domain.Repository, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		repo: repo,
		log:  logger.With(observability.F("component", "order_service")),
	}
}

func (s *Service) Get(ctx context.Context, sessionID string) (*domain.Order, error) {
	if sessionID == "" {
		return nil, newValidation("session id is required")
	}
	o, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	if o.IsEmpty() {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) MarkStockAdjusted(ctx context.Context, sessionID string) error {
	return s.advance(ctx, sessionID, "stock_adjusted", func(o *domain.Order) error {
		return o.StockAdjusted()
	})
}

// MarkReceipt records the notification outcome. A nil sendErr marks the order completed.
func (s *Service) MarkReceipt(ctx context.Context, sessionID string, sendErr error) error {
	if sendErr == nil {
		return s.advance(ctx, sessionID, "completed", func(o *domain.Order) error {
			return o.ReceiptSent()
		})
	}
	return s.advance(ctx, sessionID, "receipt_failed", func(o *domain.Order) error {
		return o.ReceiptFailed(sendErr.Error())
	})
}

func (s *Service) advance(ctx context.Context, sessionID, step string, transition func(*domain.Order) error) error {
	logger := logctx.FromOr(ctx, s.log)

	o, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("order: load for %s: %w", step, wrapRepositoryError(err))
	}
	prev := o.Status
	if err := transition(o); err != nil {
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			logger.Warn("order_transition_rejected",
				observability.F("session_id", sessionID),
				observability.F("from", string(prev)),
				observability.F("step", step),
			)
		}
		return fmt.Errorf("order: %s: %w", step, err)
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return fmt.Errorf("order: update for %s: %w", step, wrapRepositoryError(err))
	}
	logger.Debug("order_status_advanced",
		observability.F("session_id", sessionID),
		observability.F("from", string(prev)),
		observability.F("to", string(o.Status)),
	)
	return nil
}
