package payment

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound     = errors.New("payment: session not found")
	ErrMalformedSession    = errors.New("payment: malformed session response")
	ErrProviderUnavailable = errors.New("payment: session provider unavailable")
)

type Status string

const (
	StatusPaid              Status = "paid"
	StatusUnpaid            Status = "unpaid"
	StatusNoPaymentRequired Status = "no_payment_required"
)

// LineItem is one purchased product. Prices are integer minor currency units.
type LineItem struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"priceInCents"`
}

// Session is the provider's record of one checkout attempt. It is never mutated after parsing.
type Session struct {
	ID            string
	PaymentStatus Status
	CustomerEmail string
	Items         []LineItem
	Subtotal      int64
	Shipping      int64
	Total         int64
}

func (s *Session) IsPaid() bool {
	return s != nil && s.PaymentStatus == StatusPaid
}

// Validate checks the invariants a parsed session must hold before any settlement step runs.
func (s *Session) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: session missing", ErrMalformedSession)
	}
	if s.ID == "" {
		return fmt.Errorf("%w: session id missing", ErrMalformedSession)
	}
	if s.PaymentStatus == "" {
		return fmt.Errorf("%w: payment status missing", ErrMalformedSession)
	}
	if s.Subtotal < 0 || s.Shipping < 0 || s.Total < 0 {
		return fmt.Errorf("%w: negative amount", ErrMalformedSession)
	}
	if s.IsPaid() && s.CustomerEmail == "" {
		return fmt.Errorf("%w: customer email missing", ErrMalformedSession)
	}
	for i, item := range s.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: item %d has no product id", ErrMalformedSession, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrMalformedSession, i)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d has negative price", ErrMalformedSession, i)
		}
	}
	return nil
}
