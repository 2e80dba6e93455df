package lnbits

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/imroc/req"
	"github.com/massmux/LnbitsWalletManager/internal/errors"
	"github.com/massmux/LnbitsWalletManager/internal/str"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// NewClient returns a new lnbits api client for the given base url,
// e.g. http://localhost:5000/api/v1. The client holds no keys: every call
// takes the key it has to be authorized with.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url: strings.TrimSuffix(url, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL is the base url all requests are made against.
func (c *Client) URL() string {
	return c.url
}

// ListWallets returns the wallets visible to credential. The service answers
// with a single object or with a list, both come back as a slice.
func (c *Client) ListWallets(ctx context.Context, credential string) ([]Wallet, error) {
	if str.IsBlank(credential) {
		return nil, errors.ErrInvalidCredential
	}
	body, err := c.do(ctx, "list wallets", http.MethodGet, "/wallet", credential, nil)
	if err != nil {
		return nil, err
	}
	wallets, err := NormalizeWallets(body)
	if err != nil {
		return nil, errors.NewNetwork("list wallets", err)
	}
	return wallets, nil
}

// CreateWallet creates a new wallet.
func (c *Client) CreateWallet(ctx context.Context, credential, name string) (wal Wallet, err error) {
	if str.IsBlank(credential) {
		return wal, errors.ErrInvalidCredential
	}
	if str.IsBlank(name) {
		return wal, errors.ErrInvalidName
	}
	body, err := c.do(ctx, "create wallet", http.MethodPost, "/wallets", credential, CreateWalletParams{Name: name})
	if err != nil {
		return
	}
	err = decode("create wallet", body, &wal)
	return
}

// CreateInvoice creates an incoming invoice. inkey is the invoice key of the
// receiving wallet; walletID only names the wallet in the default memo.
func (c *Client) CreateInvoice(ctx context.Context, inkey, walletID string, amountSats int64, memo string) (lntx Invoice, err error) {
	if str.IsBlank(inkey) {
		return lntx, errors.ErrInvalidCredential
	}
	if amountSats <= 0 {
		return lntx, errors.ErrInvalidAmount
	}
	if str.IsBlank(memo) {
		memo = DefaultMemo(walletID)
	}
	params := InvoiceParams{Direction: Incoming, Amount: amountSats, Memo: memo}
	log.Debugf("[lnbits] %s payment of %d sat (key %s)", params.Direction, amountSats, str.MaskKey(inkey))
	body, err := c.do(ctx, "create invoice", http.MethodPost, "/payments", inkey, params)
	if err != nil {
		return
	}
	err = decode("create invoice", body, &lntx)
	return
}

// PayInvoice pays bolt11 with funds of the wallet owning adminkey. The
// request is passed on as is, decoding it is up to the service.
func (c *Client) PayInvoice(ctx context.Context, adminkey, bolt11 string) (receipt PaymentReceipt, err error) {
	if str.IsBlank(adminkey) {
		return receipt, errors.ErrInvalidCredential
	}
	if str.IsBlank(bolt11) {
		return receipt, errors.ErrInvalidBolt11
	}
	params := PaymentParams{Direction: Outgoing, Bolt11: strings.TrimSpace(bolt11)}
	log.Debugf("[lnbits] %s payment (key %s)", params.Direction, str.MaskKey(adminkey))
	body, err := c.do(ctx, "pay invoice", http.MethodPost, "/payments", adminkey, params)
	if err != nil {
		return
	}
	err = decode("pay invoice", body, &receipt)
	return
}

// DefaultMemo is the memo used for invoices created without one.
func DefaultMemo(walletID string) string {
	if str.IsBlank(walletID) {
		return "Invoice from wallet"
	}
	return fmt.Sprintf("Invoice from %s", walletID)
}

// NormalizeWallets turns a wallet object or a list of wallet objects into a slice.
func NormalizeWallets(body []byte) ([]Wallet, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed response")
	}
	res := gjson.ParseBytes(body)
	switch {
	case res.IsObject():
		w, err := parseWallet(res)
		if err != nil {
			return nil, err
		}
		return []Wallet{w}, nil
	case res.IsArray():
		items := res.Array()
		wallets := make([]Wallet, 0, len(items))
		for i, item := range items {
			if !item.IsObject() {
				return nil, fmt.Errorf("wallet %d is not an object", i)
			}
			w, err := parseWallet(item)
			if err != nil {
				return nil, err
			}
			wallets = append(wallets, w)
		}
		return wallets, nil
	default:
		return nil, fmt.Errorf("unexpected wallet response type %s", res.Type)
	}
}

func parseWallet(res gjson.Result) (w Wallet, err error) {
	if err = json.Unmarshal([]byte(res.Raw), &w); err != nil {
		return w, err
	}
	// GET /wallet reports the balance as "balance", in msat as well
	if !res.Get("balance_msat").Exists() {
		w.BalanceMsat = res.Get("balance").Int()
	}
	return w, nil
}

func (c *Client) do(ctx context.Context, op, method, path, key string, body interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewNetwork(op, err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, key); err != nil {
			return nil, errors.NewNetwork(op, err)
		}
	}
	header := req.Header{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"X-Api-Key":    key,
	}
	args := []interface{}{header}
	if body != nil {
		args = append(args, req.BodyJSON(body))
	}
	if c.client != nil {
		args = append(args, c.client)
	}
	args = append(args, ctx)

	log.Debugf("[lnbits] %s %s%s (key %s)", method, c.url, path, str.MaskKey(key))
	resp, err := req.New().Do(method, c.url+path, args...)
	if err != nil {
		log.Warnf("[lnbits] %s failed: %v", op, err)
		return nil, errors.NewNetwork(op, err)
	}
	b, err := resp.ToBytes()
	if err != nil {
		return nil, errors.NewNetwork(op, err)
	}
	status := resp.Response().StatusCode
	if status < 200 || status >= 300 {
		log.Warnf("[lnbits] %s returned status %d", op, status)
		return nil, errors.NewApi(status, errorMessage(b, status))
	}
	return b, nil
}

func decode(op string, body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewNetwork(op, fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

// errorMessage extracts the reason from an lnbits error body.
func errorMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"detail", "message", "error"} {
			if r := gjson.GetBytes(body, path); r.Exists() && len(r.String()) > 0 {
				return r.String()
			}
		}
	}
	return http.StatusText(status)
}
