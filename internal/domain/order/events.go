package order

import "time"

// OrderFinalizedEvent is emitted once per session, right after the order record is created.
type OrderFinalizedEvent struct {
	SessionID     string    `json:"session_id"`
	CustomerEmail string    `json:"customer_email"`
	Items         []Item    `json:"items"`
	Total         int64     `json:"total"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (OrderFinalizedEvent) EventName() string { return "order.finalized" }

func (e OrderFinalizedEvent) PartitionKey() string { return e.SessionID }

func NewOrderFinalizedEvent(o *Order) OrderFinalizedEvent {
	return OrderFinalizedEvent{
		SessionID:     o.SessionID,
		CustomerEmail: o.CustomerEmail,
		Items:         append([]Item(nil), o.Items...),
		Total:         o.Total,
		OccurredAt:    time.Now().UTC(),
	}
}
