package httppresentation

import (
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/storefront/internal/application/settlement"
	dompay "github.com/Zhima-Mochi/storefront/internal/domain/payment"
)

const (
	messageThankYou = "Thank you for your purchase! Your transaction has been completed successfully."
	messageNoItems  = "No items purchased."
)

type ReceiptLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// ReceiptView is what the success page renders. Purchased=false means only Message is set.
type ReceiptView struct {
	SessionID    string        `json:"session_id,omitempty"`
	Purchased    bool          `json:"purchased"`
	Message      string        `json:"message"`
	Items        []ReceiptLine `json:"items,omitempty"`
	Subtotal     string        `json:"subtotal,omitempty"`
	ShippingCost string        `json:"shipping_cost,omitempty"`
	Total        string        `json:"total,omitempty"`
	EmailNotice  string        `json:"email_notice,omitempty"`
	Outcome      string        `json:"outcome,omitempty"`
}

func NewReceiptView(res *settlement.SettleResult) ReceiptView {
	view := ReceiptView{Message: messageNoItems}
	if res == nil {
		return view
	}
	view.SessionID = res.SessionID
	view.Outcome = string(res.Outcome)

	s := res.Session
	if s == nil || s.PaymentStatus != dompay.StatusPaid || len(s.Items) == 0 {
		return view
	}

	view.Purchased = true
	view.Message = messageThankYou
	view.Items = make([]ReceiptLine, 0, len(s.Items))
	for _, it := range s.Items {
		view.Items = append(view.Items, ReceiptLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: dompay.FormatAmount(it.UnitPrice),
		})
	}
	view.Subtotal = dompay.FormatAmount(s.Subtotal)
	view.ShippingCost = dompay.FormatAmount(s.Shipping)
	view.Total = dompay.FormatAmount(s.Total)
	view.EmailNotice = "You will be sent an email with the receipt to " + s.CustomerEmail
	return view
}

// Text renders the view as plain text, one entry per line.
func (v ReceiptView) Text() string {
	if !v.Purchased {
		return v.Message + "\n"
	}
	var b strings.Builder
	b.WriteString(v.Message)
	b.WriteByte('\n')
	for _, it := range v.Items {
		fmt.Fprintf(&b, "%s %d x %s\n", it.Name, it.Quantity, it.UnitPrice)
	}
	fmt.Fprintf(&b, "Subtotal: %s\n", v.Subtotal)
	fmt.Fprintf(&b, "Shipping cost: %s\n", v.ShippingCost)
	fmt.Fprintf(&b, "Total: %s\n", v.Total)
	b.WriteString(v.EmailNotice)
	b.WriteByte('\n')
	return b.String()
}
