package order

// OrderState implements the state pattern for the settlement cursor persisted on each order.
type OrderState interface {
	Status() Status
	OnStockAdjusted(o *Order) (OrderState, error)
	OnReceiptSent(o *Order) (OrderState, error)
	OnReceiptFailed(o *Order, reason string) (OrderState, error)
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusStockAdjusted:
		return stockAdjustedState{}
	case StatusCompleted:
		return completedState{}
	case StatusReceiptFailed:
		return receiptFailedState{}
	default:
		return finalizedState{}
	}
}

type finalizedState struct{}

func (finalizedState) Status() Status { return StatusFinalized }

func (finalizedState) OnStockAdjusted(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return stockAdjustedState{}, nil
}

// Receipt outcomes may land before stock is confirmed when inventory was only partly applied.
func (finalizedState) OnReceiptSent(*Order) (OrderState, error) {
	return completedState{}, nil
}

func (finalizedState) OnReceiptFailed(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return receiptFailedState{}, nil
}

type stockAdjustedState struct{}

func (stockAdjustedState) Status() Status { return StatusStockAdjusted }

func (stockAdjustedState) OnStockAdjusted(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (stockAdjustedState) OnReceiptSent(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return completedState{}, nil
}

func (stockAdjustedState) OnReceiptFailed(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return receiptFailedState{}, nil
}

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) OnStockAdjusted(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnReceiptSent(*Order) (OrderState, error) {
	return completedState{}, nil
}

func (completedState) OnReceiptFailed(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type receiptFailedState struct{}

func (receiptFailedState) Status() Status { return StatusReceiptFailed }

func (receiptFailedState) OnStockAdjusted(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (receiptFailedState) OnReceiptSent(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return completedState{}, nil
}

func (receiptFailedState) OnReceiptFailed(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return receiptFailedState{}, nil
}
