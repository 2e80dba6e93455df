package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/massmux/LnbitsWalletManager/internal/errors"
	"github.com/massmux/LnbitsWalletManager/internal/lnbits"
	"github.com/massmux/LnbitsWalletManager/internal/str"
	log "github.com/sirupsen/logrus"
)

// WalletService is the gateway a session drives. *lnbits.Client implements it.
type WalletService interface {
	ListWallets(ctx context.Context, credential string) ([]lnbits.Wallet, error)
	CreateWallet(ctx context.Context, credential, name string) (lnbits.Wallet, error)
	CreateInvoice(ctx context.Context, inkey, walletID string, amountSats int64, memo string) (lnbits.Invoice, error)
	PayInvoice(ctx context.Context, adminkey, bolt11 string) (lnbits.PaymentReceipt, error)
}

var (
	errUnknownWallet    = errors.NewValidation("wallet", "unknown wallet")
	errNoCurrentInvoice = errors.NewValidation("invoice", "there is no current invoice")
)

// Session is the state a user works with: the api key, the wallets last
// fetched with it, the single current invoice and the most recent error.
// The wallet service itself is stateless, everything it returns is applied
// here.
type Session struct {
	ID        string
	CreatedAt time.Time

	service WalletService

	mu         sync.RWMutex
	credential string
	generation uint64 // bumped on every Connect and Close, stale results are dropped
	wallets    []lnbits.Wallet
	current    *lnbits.Invoice
	lastError  string
	loading    bool
	updatedAt  time.Time
}

// State is a copy of the session, safe to hand out.
type State struct {
	Connected      bool            `json:"connected"`
	Loading        bool            `json:"loading"`
	Wallets        []lnbits.Wallet `json:"wallets"`
	CurrentInvoice *lnbits.Invoice `json:"current_invoice,omitempty"`
	InvoiceSummary *InvoiceSummary `json:"invoice_summary,omitempty"`
	Expired        bool            `json:"expired"`
	Error          string          `json:"error,omitempty"`
	UpdatedAt      time.Time       `json:"updated"`
}

func New(id string, service WalletService) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		service:   service,
		wallets:   []lnbits.Wallet{},
		updatedAt: now,
	}
}

// Connect sets the api key and loads its wallets.
func (s *Session) Connect(ctx context.Context, credential string) error {
	credential = strings.TrimSpace(credential)
	if len(credential) == 0 {
		s.fail("connect", errors.ErrInvalidCredential)
		return errors.ErrInvalidCredential
	}
	s.mu.Lock()
	s.credential = credential
	s.generation++
	s.wallets = []lnbits.Wallet{}
	s.current = nil
	s.mu.Unlock()
	log.Infof("[session %s] connecting with key %s", s.ID, str.KeyFingerprint(credential))
	return s.Refresh(ctx)
}

// Refresh replaces the wallet collection with a fresh listing. On failure
// the collection is emptied.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	credential, generation := s.credential, s.generation
	s.loading = true
	s.mu.Unlock()

	wallets, err := s.service.ListWallets(ctx, credential)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		log.Debugf("[session %s] dropping wallets of a previous api key", s.ID)
		return err
	}
	s.loading = false
	s.touch()
	if err != nil {
		s.lastError = failure("fetch wallets", err)
		s.wallets = []lnbits.Wallet{}
		log.Warnf("[session %s] %s", s.ID, s.lastError)
		return err
	}
	s.wallets = wallets
	s.lastError = ""
	log.Debugf("[session %s] loaded %d wallets", s.ID, len(wallets))
	return nil
}

// CreateWallet creates a wallet and appends it to the collection.
func (s *Session) CreateWallet(ctx context.Context, name string) (lnbits.Wallet, error) {
	s.mu.RLock()
	credential, generation := s.credential, s.generation
	s.mu.RUnlock()

	wallet, err := s.service.CreateWallet(ctx, credential, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		log.Debugf("[session %s] dropping wallet of a previous api key", s.ID)
		return wallet, err
	}
	s.touch()
	if err != nil {
		s.lastError = failure("create wallet", err)
		log.Warnf("[session %s] %s", s.ID, s.lastError)
		return wallet, err
	}
	s.wallets = append(s.wallets, wallet)
	s.lastError = ""
	log.Infof("[session %s] created wallet %s (%s)", s.ID, wallet.Name, wallet.ID)
	return wallet, nil
}

// CreateInvoice creates an invoice with the invoice key of walletID and makes
// it the current invoice.
func (s *Session) CreateInvoice(ctx context.Context, walletID string, amountSats int64, memo string) (lnbits.Invoice, error) {
	wallet, generation, err := s.wallet(walletID)
	if err != nil {
		s.fail("create invoice", err)
		return lnbits.Invoice{}, err
	}
	invoice, err := s.service.CreateInvoice(ctx, wallet.Inkey, wallet.ID, amountSats, memo)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		log.Debugf("[session %s] dropping invoice of a previous api key", s.ID)
		return invoice, err
	}
	s.touch()
	if err != nil {
		s.lastError = failure("create invoice", err)
		log.Warnf("[session %s] %s", s.ID, s.lastError)
		return invoice, err
	}
	s.current = &invoice
	s.lastError = ""
	log.Infof("[session %s] invoice of %d sat for wallet %s", s.ID, invoice.Amount, wallet.ID)
	return invoice, nil
}

// PayCurrentInvoice pays the current invoice from walletID.
func (s *Session) PayCurrentInvoice(ctx context.Context, walletID string) (lnbits.PaymentReceipt, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current == nil {
		s.fail("pay invoice", errNoCurrentInvoice)
		return lnbits.PaymentReceipt{}, errNoCurrentInvoice
	}
	return s.PayInvoice(ctx, walletID, current.PaymentRequest())
}

// PayInvoice pays bolt11 with the admin key of walletID. Success or failure,
// the current invoice is cleared afterwards. On success the wallets are
// fetched again so balances are up to date.
func (s *Session) PayInvoice(ctx context.Context, walletID, bolt11 string) (lnbits.PaymentReceipt, error) {
	wallet, generation, err := s.wallet(walletID)
	if err != nil {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		s.fail("pay invoice", err)
		return lnbits.PaymentReceipt{}, err
	}
	receipt, err := s.service.PayInvoice(ctx, wallet.Adminkey, bolt11)

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		log.Debugf("[session %s] dropping payment outcome of a previous api key", s.ID)
		return receipt, err
	}
	s.current = nil
	s.touch()
	if err != nil {
		s.lastError = failure("pay invoice", err)
		s.mu.Unlock()
		log.Warnf("[session %s] %s", s.ID, failure("pay invoice", err))
		return receipt, err
	}
	s.lastError = ""
	s.mu.Unlock()
	log.Infof("[session %s] wallet %s paid invoice %s", s.ID, wallet.ID, receipt.PaymentHash)

	// balances changed, the refresh outcome is visible in the state
	_ = s.Refresh(ctx)
	return receipt, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := State{
		Connected: len(s.credential) > 0,
		Loading:   s.loading,
		Wallets:   append([]lnbits.Wallet{}, s.wallets...),
		Error:     s.lastError,
		UpdatedAt: s.updatedAt,
	}
	if s.current != nil {
		invoice := *s.current
		state.CurrentInvoice = &invoice
		if summary, err := Summarize(invoice.PaymentRequest()); err == nil {
			state.InvoiceSummary = &summary
		}
	}
	return state
}

// CurrentInvoice returns the current invoice, if any.
func (s *Session) CurrentInvoice() (lnbits.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return lnbits.Invoice{}, false
	}
	return *s.current, true
}

// Close forgets the api key and everything loaded with it.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	s.generation++
	s.wallets = []lnbits.Wallet{}
	s.current = nil
	s.lastError = ""
	s.loading = false
}

// wallet looks up id together with the generation it was loaded in.
func (s *Session) wallet(id string) (lnbits.Wallet, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.wallets {
		if w.ID == id {
			return w, s.generation, nil
		}
	}
	return lnbits.Wallet{}, s.generation, errUnknownWallet
}

func (s *Session) fail(action string, err error) {
	s.mu.Lock()
	s.lastError = failure(action, err)
	s.touch()
	s.mu.Unlock()
	log.Warnf("[session %s] %s", s.ID, failure(action, err))
}

// touch must be called with mu held.
func (s *Session) touch() {
	s.updatedAt = time.Now()
}

func failure(action string, err error) string {
	return fmt.Sprintf("Failed to %s: %s", action, err.Error())
}
