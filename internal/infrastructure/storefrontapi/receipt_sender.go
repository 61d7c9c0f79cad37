package storefrontapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Zhima-Mochi/storefront/internal/domain/notification"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/httpclient"
)

const endpointReceipt = "receipt"

// ReceiptSender posts receipt requests to the mail relay.
type ReceiptSender struct {
	client *httpclient.Client
}

func NewReceiptSender(client *httpclient.Client) *ReceiptSender {
	return &ReceiptSender{client: client}
}

func (s *ReceiptSender) SendReceipt(ctx context.Context, r notification.Receipt) error {
	if r.Session == nil {
		return fmt.Errorf("%w: session missing", notification.ErrDeliveryFailed)
	}
	if r.Recipient == "" {
		return fmt.Errorf("%w: recipient missing", notification.ErrDeliveryFailed)
	}
	if _, err := s.client.Do(ctx, http.MethodPost, "/receipt", endpointReceipt, newReceiptPayload(r.Recipient, r.Session)); err != nil {
		return fmt.Errorf("%w: %w", notification.ErrDeliveryFailed, err)
	}
	return nil
}
