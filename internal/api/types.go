package api

import "github.com/massmux/LnbitsWalletManager/internal/session"

type OpenSessionRequest struct {
	ApiKey string `json:"api_key"`
}

type SessionResponse struct {
	ID    string        `json:"id"`
	State session.State `json:"state"`
}

type CreateWalletRequest struct {
	Name string `json:"name"`
}

type CreateInvoiceRequest struct {
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

// PayInvoiceRequest pays Bolt11 if set, the current invoice otherwise.
type PayInvoiceRequest struct {
	Bolt11 string `json:"bolt11"`
}

type ErrorResponse struct {
	Message string `json:"error"`
	Status  int    `json:"status,omitempty"`
}
