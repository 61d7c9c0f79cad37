package payment

import "context"

// Provider is the external payment-session provider. It owns payment processing; this
// service only reads the outcome.
type Provider interface {
	Retrieve(ctx context.Context, sessionID string) (*Session, error)
}
