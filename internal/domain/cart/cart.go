package cart

import (
	"context"
	"errors"
)

var (
	ErrUnknownAction  = errors.New("cart: unknown action")
	ErrCartIDRequired = errors.New("cart: cart id is required")
)

type ActionType string

const ActionEmptyCart ActionType = "EMPTY_CART"

type Action struct {
	Type ActionType `json:"type"`
}

func EmptyCart() Action {
	return Action{Type: ActionEmptyCart}
}

// Controller is the handle to a shopper's cart state.
type Controller interface {
	Dispatch(ctx context.Context, cartID string, action Action) error
}
