package storefrontapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zhima-Mochi/storefront/internal/domain/notification"
	dompay "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/httpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionJSON = `{
  "session": {
    "id": "sess_123",
    "payment_status": "paid",
    "amount_subtotal": 5000,
    "amount_total": 5500,
    "shipping_cost": {"amount_total": 500},
    "customer_details": {"email": "a@b.c"}
  },
  "items": [{"id": "p1", "name": "Bull Tee", "quantity": 2, "priceInCents": 2500}]
}`

func TestParseSession(t *testing.T) {
	s, err := parseSession([]byte(sessionJSON))
	require.NoError(t, err)
	assert.Equal(t, &dompay.Session{
		ID:            "sess_123",
		PaymentStatus: dompay.StatusPaid,
		CustomerEmail: "a@b.c",
		Items:         []dompay.LineItem{{ProductID: "p1", Name: "Bull Tee", Quantity: 2, UnitPrice: 2500}},
		Subtotal:      5000,
		Shipping:      500,
		Total:         5500,
	}, s)
}

func TestParseSession_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"no session":       `{"items": []}`,
		"no id":            `{"session": {"payment_status": "paid", "amount_subtotal": 0, "amount_total": 0, "shipping_cost": {"amount_total": 0}}}`,
		"no status":        `{"session": {"id": "s", "amount_subtotal": 0, "amount_total": 0, "shipping_cost": {"amount_total": 0}}}`,
		"no total":         `{"session": {"id": "s", "payment_status": "unpaid", "amount_subtotal": 0, "shipping_cost": {"amount_total": 0}}}`,
		"no shipping":      `{"session": {"id": "s", "payment_status": "unpaid", "amount_subtotal": 0, "amount_total": 0}}`,
		"paid no email":    `{"session": {"id": "s", "payment_status": "paid", "amount_subtotal": 0, "amount_total": 0, "shipping_cost": {"amount_total": 0}}}`,
		"zero qty in line": `{"session": {"id": "s", "payment_status": "unpaid", "amount_subtotal": 0, "amount_total": 0, "shipping_cost": {"amount_total": 0}}, "items": [{"id": "p1", "quantity": 0}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseSession([]byte(body))
			assert.ErrorIs(t, err, dompay.ErrMalformedSession)
		})
	}
}

func TestParseSession_UnpaidWithoutCustomer(t *testing.T) {
	s, err := parseSession([]byte(`{"session": {"id": "s", "payment_status": "unpaid", "amount_subtotal": 0, "amount_total": 0, "shipping_cost": {"amount_total": 0}}}`))
	require.NoError(t, err)
	assert.False(t, s.IsPaid())
	assert.Empty(t, s.Items)
}

func newClient(t *testing.T, h http.HandlerFunc) *httpclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return httpclient.New(httpclient.Config{Peer: "test", BaseURL: srv.URL}, nil)
}

func TestSessionProvider_Retrieve(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/session/sess_123", r.URL.Path)
		_, _ = w.Write([]byte(sessionJSON))
	})
	s, err := NewSessionProvider(c).Retrieve(context.Background(), "sess_123")
	require.NoError(t, err)
	assert.Equal(t, int64(5500), s.Total)
}

func TestSessionProvider_Errors(t *testing.T) {
	notFound := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	_, err := NewSessionProvider(notFound).Retrieve(context.Background(), "sess_x")
	assert.ErrorIs(t, err, dompay.ErrSessionNotFound)

	broken := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err = NewSessionProvider(broken).Retrieve(context.Background(), "sess_x")
	assert.ErrorIs(t, err, dompay.ErrProviderUnavailable)

	garbage := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"session": {}}`))
	})
	_, err = NewSessionProvider(garbage).Retrieve(context.Background(), "sess_x")
	assert.ErrorIs(t, err, dompay.ErrMalformedSession)
}

func TestReceiptSender(t *testing.T) {
	var got map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/receipt", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &got))
		w.WriteHeader(http.StatusAccepted)
	})

	sess, err := parseSession([]byte(sessionJSON))
	require.NoError(t, err)
	require.NoError(t, NewReceiptSender(c).SendReceipt(context.Background(), notification.Receipt{
		Recipient: "a@b.c",
		Session:   sess,
	}))

	assert.Equal(t, "a@b.c", got["recipient"])
	session := got["session"].(map[string]any)
	assert.Equal(t, "sess_123", session["id"])
	assert.EqualValues(t, 5500, session["amount_total"])
	items := got["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].(map[string]any)["id"])
}

func TestReceiptSender_Failures(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	sender := NewReceiptSender(c)
	sess := &dompay.Session{ID: "s"}

	assert.ErrorIs(t, sender.SendReceipt(context.Background(), notification.Receipt{Recipient: "a@b.c", Session: sess}), notification.ErrDeliveryFailed)
	assert.ErrorIs(t, sender.SendReceipt(context.Background(), notification.Receipt{Session: sess}), notification.ErrDeliveryFailed)
	assert.ErrorIs(t, sender.SendReceipt(context.Background(), notification.Receipt{Recipient: "a@b.c"}), notification.ErrDeliveryFailed)
}
