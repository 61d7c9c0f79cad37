package inventory

import "time"

const (
	FailureReasonNotFound         = "not_found"
	FailureReasonInvalidQuantity  = "invalid_quantity"
	FailureReasonPersistenceError = "persist_error"
)

// StockAdjustedEvent is emitted for each product whose stock was written during settlement.
type StockAdjustedEvent struct {
	SessionID  string    `json:"session_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Remaining  int       `json:"remaining"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (StockAdjustedEvent) EventName() string { return "inventory.stock_adjusted" }

func (e StockAdjustedEvent) PartitionKey() string { return e.ProductID }

func NewStockAdjustedEvent(sessionID, productID string, quantity, remaining int) StockAdjustedEvent {
	return StockAdjustedEvent{
		SessionID:  sessionID,
		ProductID:  productID,
		Quantity:   quantity,
		Remaining:  remaining,
		OccurredAt: time.Now().UTC(),
	}
}
