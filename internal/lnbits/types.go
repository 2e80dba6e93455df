package lnbits

import (
	"encoding/json"
	"net/http"

	"github.com/massmux/LnbitsWalletManager/internal/rate"
)

type Client struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient sets the transport used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLimiter throttles outgoing requests per api key.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// Direction is the polarity of a payment request. On the wire it is the
// boolean "out" field: Outgoing pays, Incoming creates an invoice.
type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

// String names the direction in log lines.
func (d Direction) String() string {
	if d == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d == Outgoing)
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var out bool
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*d = Incoming
	if out {
		*d = Outgoing
	}
	return nil
}

type CreateWalletParams struct {
	Name string `json:"name"`
}

type InvoiceParams struct {
	Direction Direction `json:"out"`
	Amount    int64     `json:"amount"` // amount in satoshi
	Memo      string    `json:"memo"`
}

type PaymentParams struct {
	Direction Direction `json:"out"`
	Bolt11    string    `json:"bolt11"`
}

type Wallet struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BalanceMsat int64  `json:"balance_msat"`
	Adminkey    string `json:"adminkey"`
	Inkey       string `json:"inkey"`
}

// BalanceSats is the balance in whole satoshis, rounded down.
func (w Wallet) BalanceSats() int64 {
	return w.BalanceMsat / 1000
}

type Invoice struct {
	Bolt11      string `json:"bolt11,omitempty"`
	Request     string `json:"payment_request,omitempty"`
	PaymentHash string `json:"payment_hash,omitempty"`
	CheckingID  string `json:"checking_id,omitempty"`
	Amount      int64  `json:"amount"`
	Memo        string `json:"memo,omitempty"`
}

// PaymentRequest returns the encoded request, whichever field the service filled.
func (i Invoice) PaymentRequest() string {
	if len(i.Bolt11) > 0 {
		return i.Bolt11
	}
	return i.Request
}

type PaymentReceipt struct {
	PaymentHash string `json:"payment_hash"`
	CheckingID  string `json:"checking_id,omitempty"`
}
