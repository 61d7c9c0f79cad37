package storefrontapi

import (
	"encoding/json"
	"fmt"

	dompay "github.com/Zhima-Mochi/storefront/internal/domain/payment"
)

// Wire shapes of the storefront backend. Pointers mark fields whose absence must be detected.
type sessionEnvelope struct {
	Session *sessionDTO   `json:"session"`
	Items   []lineItemDTO `json:"items"`
}

type sessionDTO struct {
	ID              *string             `json:"id"`
	PaymentStatus   *string             `json:"payment_status"`
	AmountSubtotal  *int64              `json:"amount_subtotal"`
	AmountTotal     *int64              `json:"amount_total"`
	ShippingCost    *shippingCostDTO    `json:"shipping_cost"`
	CustomerDetails *customerDetailsDTO `json:"customer_details"`
}

type shippingCostDTO struct {
	AmountTotal *int64 `json:"amount_total"`
}

type customerDetailsDTO struct {
	Email string `json:"email"`
}

type lineItemDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	PriceInCents int64  `json:"priceInCents"`
}

// parseSession turns a provider payload into a validated Session.
func parseSession(body []byte) (*dompay.Session, error) {
	var env sessionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", dompay.ErrMalformedSession, err)
	}
	s := env.Session
	switch {
	case s == nil:
		return nil, fmt.Errorf("%w: session object missing", dompay.ErrMalformedSession)
	case s.ID == nil:
		return nil, fmt.Errorf("%w: session.id missing", dompay.ErrMalformedSession)
	case s.PaymentStatus == nil:
		return nil, fmt.Errorf("%w: session.payment_status missing", dompay.ErrMalformedSession)
	case s.AmountSubtotal == nil:
		return nil, fmt.Errorf("%w: session.amount_subtotal missing", dompay.ErrMalformedSession)
	case s.AmountTotal == nil:
		return nil, fmt.Errorf("%w: session.amount_total missing", dompay.ErrMalformedSession)
	case s.ShippingCost == nil || s.ShippingCost.AmountTotal == nil:
		return nil, fmt.Errorf("%w: session.shipping_cost.amount_total missing", dompay.ErrMalformedSession)
	}

	sess := &dompay.Session{
		ID:            *s.ID,
		PaymentStatus: dompay.Status(*s.PaymentStatus),
		Subtotal:      *s.AmountSubtotal,
		Shipping:      *s.ShippingCost.AmountTotal,
		Total:         *s.AmountTotal,
		Items:         make([]dompay.LineItem, 0, len(env.Items)),
	}
	if s.CustomerDetails != nil {
		sess.CustomerEmail = s.CustomerDetails.Email
	}
	for _, it := range env.Items {
		sess.Items = append(sess.Items, dompay.LineItem{
			ProductID: it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.PriceInCents,
		})
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return sess, nil
}

type receiptPayload struct {
	Recipient string        `json:"recipient"`
	Session   receiptDTO    `json:"session"`
	Items     []lineItemDTO `json:"items"`
}

type receiptDTO struct {
	ID             string          `json:"id"`
	PaymentStatus  string          `json:"payment_status"`
	AmountSubtotal int64           `json:"amount_subtotal"`
	AmountTotal    int64           `json:"amount_total"`
	ShippingCost   shippingAmount  `json:"shipping_cost"`
	Customer       customerDetails `json:"customer_details"`
}

type shippingAmount struct {
	AmountTotal int64 `json:"amount_total"`
}

type customerDetails struct {
	Email string `json:"email"`
}

func newReceiptPayload(recipient string, s *dompay.Session) receiptPayload {
	items := make([]lineItemDTO, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, lineItemDTO{
			ID:           it.ProductID,
			Name:         it.Name,
			Quantity:     it.Quantity,
			PriceInCents: it.UnitPrice,
		})
	}
	return receiptPayload{
		Recipient: recipient,
		Session: receiptDTO{
			ID:             s.ID,
			PaymentStatus:  string(s.PaymentStatus),
			AmountSubtotal: s.Subtotal,
			AmountTotal:    s.Total,
			ShippingCost:   shippingAmount{AmountTotal: s.Shipping},
			Customer:       customerDetails{Email: s.CustomerEmail},
		},
		Items: items,
	}
}
