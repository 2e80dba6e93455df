package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/massmux/LnbitsWalletManager/internal/errors"
	"github.com/massmux/LnbitsWalletManager/internal/lnbits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op  string
	key string
	arg string
}

// gate holds a single call of the fake until it is released.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

// fakeService is an in-memory WalletService that records every call.
type fakeService struct {
	mu       sync.Mutex
	calls    []call
	gates    map[string]*gate
	wallets  []lnbits.Wallet
	byKey    map[string][]lnbits.Wallet
	listErr  error
	payErr   error
	invoice  lnbits.Invoice
	created  lnbits.Wallet
	receipts int
}

// hold makes the next op called with key block until the gate is released.
func (f *fakeService) hold(op, key string) *gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = map[string]*gate{}
	}
	g := &gate{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f.gates[op+":"+key] = g
	return g
}

func (f *fakeService) record(op, key, arg string) {
	f.mu.Lock()
	f.calls = append(f.calls, call{op: op, key: key, arg: arg})
	g := f.gates[op+":"+key]
	delete(f.gates, op+":"+key)
	f.mu.Unlock()
	if g != nil {
		g.entered <- struct{}{}
		<-g.release
	}
}

func (f *fakeService) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (f *fakeService) last(op string) call {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].op == op {
			return f.calls[i]
		}
	}
	return call{}
}

func (f *fakeService) ListWallets(ctx context.Context, credential string) ([]lnbits.Wallet, error) {
	f.record("list", credential, "")
	if f.listErr != nil {
		return nil, f.listErr
	}
	if wallets, ok := f.byKey[credential]; ok {
		return append([]lnbits.Wallet{}, wallets...), nil
	}
	return append([]lnbits.Wallet{}, f.wallets...), nil
}

func (f *fakeService) CreateWallet(ctx context.Context, credential, name string) (lnbits.Wallet, error) {
	f.record("create", credential, name)
	w := f.created
	w.Name = name
	return w, nil
}

func (f *fakeService) CreateInvoice(ctx context.Context, inkey, walletID string, amountSats int64, memo string) (lnbits.Invoice, error) {
	f.record("invoice", inkey, memo)
	return f.invoice, nil
}

func (f *fakeService) PayInvoice(ctx context.Context, adminkey, bolt11 string) (lnbits.PaymentReceipt, error) {
	f.record("pay", adminkey, bolt11)
	if f.payErr != nil {
		return lnbits.PaymentReceipt{}, f.payErr
	}
	f.receipts++
	return lnbits.PaymentReceipt{PaymentHash: "hash"}, nil
}

func newConnected(t *testing.T) (*Session, *fakeService) {
	t.Helper()
	svc := &fakeService{
		wallets: []lnbits.Wallet{{ID: "w1", Name: "Test", BalanceMsat: 5000, Adminkey: "A", Inkey: "I"}},
		invoice: lnbits.Invoice{Bolt11: "lnbc1...", Amount: 100, Memo: "coffee"},
		created: lnbits.Wallet{ID: "w2", Adminkey: "A2", Inkey: "I2"},
	}
	s := New("test", svc)
	require.NoError(t, s.Connect(context.Background(), "abc123"))
	return s, svc
}

func TestConnectLoadsWallets(t *testing.T) {
	s, svc := newConnected(t)
	state := s.Snapshot()
	assert.True(t, state.Connected)
	require.Len(t, state.Wallets, 1)
	assert.Equal(t, int64(5000), state.Wallets[0].BalanceMsat)
	assert.Equal(t, "abc123", svc.last("list").key)
	assert.Empty(t, state.Error)
}

func TestConnectBlankCredential(t *testing.T) {
	svc := &fakeService{}
	s := New("test", svc)
	err := s.Connect(context.Background(), "   ")
	assert.Equal(t, errors.ErrInvalidCredential, err)
	assert.Equal(t, 0, svc.count("list"))
	assert.Contains(t, s.Snapshot().Error, "Failed to connect")
}

func TestRefreshFailureEmptiesWallets(t *testing.T) {
	s, svc := newConnected(t)
	svc.listErr = errors.NewApi(http.StatusUnauthorized, "Invalid key")

	err := s.Refresh(context.Background())
	assert.True(t, errors.Unauthorized(err))
	state := s.Snapshot()
	assert.Empty(t, state.Wallets)
	assert.Equal(t, "Failed to fetch wallets: 401: Invalid key", state.Error)
}

func TestCreateWalletAppends(t *testing.T) {
	s, _ := newConnected(t)
	wallet, err := s.CreateWallet(context.Background(), "Savings")
	require.NoError(t, err)
	assert.Equal(t, "w2", wallet.ID)

	state := s.Snapshot()
	require.Len(t, state.Wallets, 2)
	assert.Equal(t, "w1", state.Wallets[0].ID)
	assert.Equal(t, "w2", state.Wallets[1].ID)
}

func TestCreateInvoiceUsesInkey(t *testing.T) {
	s, svc := newConnected(t)
	invoice, err := s.CreateInvoice(context.Background(), "w1", 100, "coffee")
	require.NoError(t, err)

	assert.Equal(t, "I", svc.last("invoice").key)
	current, ok := s.CurrentInvoice()
	require.True(t, ok)
	assert.Equal(t, invoice, current)
	// not a decodable request, so no summary
	assert.Nil(t, s.Snapshot().InvoiceSummary)
}

func TestCreateInvoiceUnknownWallet(t *testing.T) {
	s, svc := newConnected(t)
	_, err := s.CreateInvoice(context.Background(), "nope", 100, "")
	assert.Equal(t, errors.KindValidation, errors.Kind(err))
	assert.Equal(t, 0, svc.count("invoice"))
}

func TestPayCurrentInvoiceClearsSlotAndRefreshesOnce(t *testing.T) {
	s, svc := newConnected(t)
	_, err := s.CreateInvoice(context.Background(), "w1", 100, "coffee")
	require.NoError(t, err)
	listsBefore := svc.count("list")

	receipt, err := s.PayCurrentInvoice(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "hash", receipt.PaymentHash)

	pay := svc.last("pay")
	assert.Equal(t, "A", pay.key)
	assert.Equal(t, "lnbc1...", pay.arg)
	assert.Equal(t, listsBefore+1, svc.count("list"))

	_, ok := s.CurrentInvoice()
	assert.False(t, ok)
	assert.Empty(t, s.Snapshot().Error)
}

func TestPayFailureClearsSlotAndRecordsError(t *testing.T) {
	s, svc := newConnected(t)
	_, err := s.CreateInvoice(context.Background(), "w1", 100, "coffee")
	require.NoError(t, err)
	svc.payErr = errors.NewApi(http.StatusBadRequest, "Insufficient balance.")
	listsBefore := svc.count("list")

	_, err = s.PayCurrentInvoice(context.Background(), "w1")
	require.Error(t, err)

	_, ok := s.CurrentInvoice()
	assert.False(t, ok)
	assert.Equal(t, "Failed to pay invoice: 400: Insufficient balance.", s.Snapshot().Error)
	assert.Equal(t, listsBefore, svc.count("list"))
}

func TestPayFromUnknownWalletClearsSlot(t *testing.T) {
	s, svc := newConnected(t)
	_, err := s.CreateInvoice(context.Background(), "w1", 100, "coffee")
	require.NoError(t, err)

	_, err = s.PayCurrentInvoice(context.Background(), "nope")
	assert.Equal(t, errors.KindValidation, errors.Kind(err))
	assert.Equal(t, 0, svc.count("pay"))
	_, ok := s.CurrentInvoice()
	assert.False(t, ok)
	assert.Equal(t, "Failed to pay invoice: invalid wallet: unknown wallet", s.Snapshot().Error)
}

func TestPayWithoutCurrentInvoice(t *testing.T) {
	s, svc := newConnected(t)
	_, err := s.PayCurrentInvoice(context.Background(), "w1")
	assert.Equal(t, errNoCurrentInvoice, err)
	assert.Equal(t, 0, svc.count("pay"))
}

func TestCloseForgetsEverything(t *testing.T) {
	s, _ := newConnected(t)
	s.Close()
	state := s.Snapshot()
	assert.False(t, state.Connected)
	assert.Empty(t, state.Wallets)
}

func TestManager(t *testing.T) {
	svc := &fakeService{wallets: []lnbits.Wallet{{ID: "w1"}}}
	m := NewManager(svc)

	s, err := m.Open(context.Background(), "abc123")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	assert.True(t, m.Close(s.ID))
	assert.False(t, m.Close(s.ID))
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())
}

// coffeeInvoice is the "1 cup coffee" request from the BOLT11 test vectors.
const coffeeInvoice = "lnbc2500u1pvjluezpp5qqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqypqdq5xysxxatsyp3k7enxv4jsxqzpuaztrnwngzn3kdzw5hydlzf03qdgm2hdq27cqv3agm2awhz5se903vruatfhq77w3ls4evs3ch9zw97j25emudupq63nyw24cg27h2rspfj9srp"

func TestSummarize(t *testing.T) {
	coffee := InvoiceSummary{
		AmountSats:  250000,
		Description: "1 cup coffee",
		PaymentHash: "0001020304050607080900010203040506070809000102030405060708090102",
		Payee:       "03e7156ae33b0a208d0744199163177e909e80176e55d97a2f221ede0f934dd9ad",
		ExpiresAt:   time.Unix(1496314658+60, 0),
	}
	tests := []struct {
		name    string
		request string
		want    InvoiceSummary
		wantErr bool
	}{
		{name: "plain", request: coffeeInvoice, want: coffee},
		{name: "uri_prefix", request: "lightning:" + coffeeInvoice, want: coffee},
		{name: "upper_case_with_spaces", request: "  LIGHTNING:" + strings.ToUpper(coffeeInvoice) + "\n", want: coffee},
		{name: "empty", request: "", wantErr: true},
		{name: "prefix_only", request: "lightning:", wantErr: true},
		{name: "no_digit", request: "lnbc...", wantErr: true},
		{name: "placeholder", request: "lnbc1...", wantErr: true},
		{name: "not_an_invoice", request: "not an invoice", wantErr: true},
		{name: "bad_checksum", request: coffeeInvoice[:len(coffeeInvoice)-1] + "q", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Summarize(tt.request)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.AmountSats, got.AmountSats)
			assert.Equal(t, tt.want.Description, got.Description)
			assert.Equal(t, tt.want.PaymentHash, got.PaymentHash)
			assert.Equal(t, tt.want.Payee, got.Payee)
			assert.True(t, tt.want.ExpiresAt.Equal(got.ExpiresAt), "expires at %v", got.ExpiresAt)
		})
	}
}

func TestInvoiceSummaryExpired(t *testing.T) {
	created := time.Unix(1496314658, 0)
	summary := InvoiceSummary{ExpiresAt: created.Add(time.Minute)}
	assert.False(t, summary.Expired(created))
	assert.True(t, summary.Expired(created.Add(2*time.Minute)))
	assert.False(t, InvoiceSummary{}.Expired(time.Now()))
}

func TestSnapshotSummarizesCurrentInvoice(t *testing.T) {
	s, svc := newConnected(t)
	svc.invoice = lnbits.Invoice{Request: coffeeInvoice, PaymentHash: "0001020304050607080900010203040506070809000102030405060708090102", Amount: 250000}

	_, err := s.CreateInvoice(context.Background(), "w1", 250000, "1 cup coffee")
	require.NoError(t, err)

	state := s.Snapshot()
	require.NotNil(t, state.CurrentInvoice)
	require.NotNil(t, state.InvoiceSummary)
	assert.Equal(t, int64(250000), state.InvoiceSummary.AmountSats)
	assert.Equal(t, "1 cup coffee", state.InvoiceSummary.Description)
	assert.Equal(t, state.CurrentInvoice.PaymentHash, state.InvoiceSummary.PaymentHash)
	// issued in 2017 with a one minute expiry
	assert.True(t, state.Expired)
}

func TestStaleRefreshIsDropped(t *testing.T) {
	for _, tt := range []struct {
		name   string
		change func(t *testing.T, s *Session)
		want   []string
	}{
		{
			name: "reconnect",
			change: func(t *testing.T, s *Session) {
				require.NoError(t, s.Connect(context.Background(), "key-two"))
			},
			want: []string{"w2"},
		},
		{
			name:   "close",
			change: func(t *testing.T, s *Session) { s.Close() },
			want:   []string{},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{byKey: map[string][]lnbits.Wallet{
				"key-one": {{ID: "w1", Inkey: "I1", Adminkey: "A1"}},
				"key-two": {{ID: "w2", Inkey: "I2", Adminkey: "A2"}},
			}}
			s := New("test", svc)
			g := svc.hold("list", "key-one")

			done := make(chan error, 1)
			go func() { done <- s.Connect(context.Background(), "key-one") }()
			<-g.entered
			tt.change(t, s)
			close(g.release)
			require.NoError(t, <-done)

			ids := []string{}
			for _, w := range s.Snapshot().Wallets {
				ids = append(ids, w.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStaleInvoiceIsDropped(t *testing.T) {
	svc := &fakeService{
		byKey: map[string][]lnbits.Wallet{
			"key-one": {{ID: "w1", Inkey: "I1", Adminkey: "A1"}},
			"key-two": {{ID: "w2", Inkey: "I2", Adminkey: "A2"}},
		},
		invoice: lnbits.Invoice{Bolt11: "lnbc-old-key", Amount: 100},
	}
	s := New("test", svc)
	require.NoError(t, s.Connect(context.Background(), "key-one"))
	g := svc.hold("invoice", "I1")

	type result struct {
		invoice lnbits.Invoice
		err     error
	}
	done := make(chan result, 1)
	go func() {
		invoice, err := s.CreateInvoice(context.Background(), "w1", 100, "")
		done <- result{invoice, err}
	}()
	<-g.entered
	require.NoError(t, s.Connect(context.Background(), "key-two"))
	close(g.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "lnbc-old-key", res.invoice.Bolt11)
	_, ok := s.CurrentInvoice()
	assert.False(t, ok)
	assert.Nil(t, s.Snapshot().CurrentInvoice)
}

func TestStalePaymentFailureIsDropped(t *testing.T) {
	svc := &fakeService{
		byKey: map[string][]lnbits.Wallet{
			"key-one": {{ID: "w1", Inkey: "I1", Adminkey: "A1"}},
			"key-two": {{ID: "w2", Inkey: "I2", Adminkey: "A2"}},
		},
		invoice: lnbits.Invoice{Bolt11: "lnbc-new-key", Amount: 100},
		payErr:  errors.NewApi(http.StatusBadRequest, "Insufficient balance."),
	}
	s := New("test", svc)
	require.NoError(t, s.Connect(context.Background(), "key-one"))
	g := svc.hold("pay", "A1")

	done := make(chan error, 1)
	go func() {
		_, err := s.PayInvoice(context.Background(), "w1", "lnbc-old-key")
		done <- err
	}()
	<-g.entered
	require.NoError(t, s.Connect(context.Background(), "key-two"))
	_, err := s.CreateInvoice(context.Background(), "w2", 100, "")
	require.NoError(t, err)
	close(g.release)

	require.Error(t, <-done)
	state := s.Snapshot()
	assert.Empty(t, state.Error)
	require.NotNil(t, state.CurrentInvoice)
	assert.Equal(t, "lnbc-new-key", state.CurrentInvoice.Bolt11)
}
