package notification

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/storefront/internal/domain/payment"
)

var ErrDeliveryFailed = errors.New("notification: receipt delivery failed")

type Receipt struct {
	Recipient string
	Session   *payment.Session
}

// Sender hands a receipt to the external mail service. Delivery is fire and forget.
type Sender interface {
	SendReceipt(ctx context.Context, r Receipt) error
}
