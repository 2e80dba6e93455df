package session

import (
	"fmt"
	"strings"
	"time"

	decodepay "github.com/fiatjaf/ln-decodepay"
)

// InvoiceSummary is what a person wants to see of a payment request before
// paying it. It is decoded locally for display only, the wallet service
// remains the one validating the request.
type InvoiceSummary struct {
	AmountSats  int64     `json:"amount_sats"`
	Description string    `json:"description,omitempty"`
	PaymentHash string    `json:"payment_hash"`
	Payee       string    `json:"payee,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the request can no longer be paid at now.
func (s InvoiceSummary) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Summarize decodes a bolt11 payment request.
func Summarize(paymentRequest string) (InvoiceSummary, error) {
	paymentRequest = strings.ToLower(strings.TrimSpace(paymentRequest))
	// get rid of the URI prefix
	paymentRequest = strings.TrimPrefix(paymentRequest, "lightning:")
	if len(paymentRequest) == 0 {
		return InvoiceSummary{}, fmt.Errorf("empty payment request")
	}
	// decodepay slices the network prefix up to the first digit
	if !strings.HasPrefix(paymentRequest, "ln") || strings.IndexAny(paymentRequest, "0123456789") < 2 {
		return InvoiceSummary{}, fmt.Errorf("not a lightning payment request")
	}
	bolt11, err := decodepay.Decodepay(paymentRequest)
	if err != nil {
		return InvoiceSummary{}, err
	}
	summary := InvoiceSummary{
		AmountSats:  int64(bolt11.MSatoshi / 1000),
		Description: bolt11.Description,
		PaymentHash: bolt11.PaymentHash,
		Payee:       bolt11.Payee,
	}
	if bolt11.CreatedAt > 0 {
		summary.ExpiresAt = time.Unix(int64(bolt11.CreatedAt), 0).Add(time.Duration(bolt11.Expiry) * time.Second)
	}
	return summary, nil
}
