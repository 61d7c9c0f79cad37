package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already recorded for session")
	ErrSessionIDRequired      = errors.New("order: session id is required")
	ErrNoItems                = errors.New("order: at least one item is required")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusFinalized     Status = "finalized"
	StatusStockAdjusted Status = "stock_adjusted"
	StatusCompleted     Status = "completed"
	StatusReceiptFailed Status = "receipt_failed"
)

type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Order is the settlement record for one payment session. SessionID is its identity.
type Order struct {
	SessionID     string
	CustomerEmail string
	Items         []Item
	Subtotal      int64
	Shipping      int64
	Total         int64
	Finalized     bool
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func New(sessionID, customerEmail string, items []Item, subtotal, shipping, total int64) (*Order, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	now := time.Now().UTC()
	return &Order{
		SessionID:     sessionID,
		CustomerEmail: customerEmail,
		Items:         append([]Item(nil), items...),
		Subtotal:      subtotal,
		Shipping:      shipping,
		Total:         total,
		Finalized:     true,
		Status:        StatusFinalized,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsEmpty reports whether the record carries no items. Empty records do not count as settled.
func (o *Order) IsEmpty() bool {
	return o == nil || len(o.Items) == 0
}

func (o *Order) StockAdjusted() error {
	next, err := o.state().OnStockAdjusted(o)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

func (o *Order) ReceiptSent() error {
	next, err := o.state().OnReceiptSent(o)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

func (o *Order) ReceiptFailed(reason string) error {
	next, err := o.state().OnReceiptFailed(o, reason)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	return &clone
}

func (o *Order) state() OrderState {
	return stateFor(o.Status)
}

func (o *Order) apply(next OrderState) {
	o.Status = next.Status()
	o.touch()
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
