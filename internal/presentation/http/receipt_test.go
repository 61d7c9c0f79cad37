package httppresentation

import (
	"testing"

	"github.com/Zhima-Mochi/storefront/internal/application/settlement"
	dompay "github.com/Zhima-Mochi/storefront/internal/domain/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidResult() *settlement.SettleResult {
	return &settlement.SettleResult{
		SessionID: "sess_123",
		Outcome:   settlement.OutcomeSettled,
		Session: &dompay.Session{
			ID:            "sess_123",
			PaymentStatus: dompay.StatusPaid,
			CustomerEmail: "a@b.c",
			Items:         []dompay.LineItem{{ProductID: "p1", Name: "Bull Tee", Quantity: 2, UnitPrice: 2500}},
			Subtotal:      5000,
			Shipping:      500,
			Total:         5500,
		},
	}
}

func TestNewReceiptView_Paid(t *testing.T) {
	v := NewReceiptView(paidResult())

	assert.True(t, v.Purchased)
	assert.Equal(t, messageThankYou, v.Message)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "$25.00", v.Items[0].UnitPrice)
	assert.Equal(t, "$50.00", v.Subtotal)
	assert.Equal(t, "$5.00", v.ShippingCost)
	assert.Equal(t, "$55.00", v.Total)
	assert.Equal(t, "You will be sent an email with the receipt to a@b.c", v.EmailNotice)
	assert.Equal(t, "settled", v.Outcome)
}

func TestNewReceiptView_Fallbacks(t *testing.T) {
	unpaid := paidResult()
	unpaid.Session.PaymentStatus = dompay.StatusUnpaid

	empty := paidResult()
	empty.Session.Items = nil

	cases := map[string]*settlement.SettleResult{
		"nil result":    nil,
		"fetch failed":  {SessionID: "sess_x", Outcome: settlement.OutcomeFetchFailed},
		"unpaid":        unpaid,
		"paid no items": empty,
	}
	for name, res := range cases {
		t.Run(name, func(t *testing.T) {
			v := NewReceiptView(res)
			assert.False(t, v.Purchased)
			assert.Equal(t, messageNoItems, v.Message)
			assert.Empty(t, v.Total)
			assert.Equal(t, messageNoItems+"\n", v.Text())
		})
	}
}

func TestReceiptView_Text(t *testing.T) {
	want := messageThankYou + "\n" +
		"Bull Tee 2 x $25.00\n" +
		"Subtotal: $50.00\n" +
		"Shipping cost: $5.00\n" +
		"Total: $55.00\n" +
		"You will be sent an email with the receipt to a@b.c\n"
	assert.Equal(t, want, NewReceiptView(paidResult()).Text())
}
