package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/massmux/LnbitsWalletManager/internal/errors"
	"github.com/massmux/LnbitsWalletManager/internal/session"
	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

type Service struct {
	Sessions *session.Manager
}

func NewService(sessions *session.Manager) Service {
	return Service{Sessions: sessions}
}

// Register adds all session routes to s.
func (s Service) Register(srv *Server) {
	srv.AppendRoute("/sessions", s.OpenSession, http.MethodPost)
	srv.AppendRoute("/sessions/{id}", s.GetSession, http.MethodGet)
	srv.AppendRoute("/sessions/{id}", s.CloseSession, http.MethodDelete)
	srv.AppendRoute("/sessions/{id}/refresh", s.Refresh, http.MethodPost)
	srv.AppendRoute("/sessions/{id}/wallets", s.CreateWallet, http.MethodPost)
	srv.AppendRoute("/sessions/{id}/wallets/{wallet}/invoice", s.CreateInvoice, http.MethodPost)
	srv.AppendRoute("/sessions/{id}/wallets/{wallet}/pay", s.PayInvoice, http.MethodPost)
	srv.AppendRoute("/sessions/{id}/invoice/qr", s.InvoiceQR, http.MethodGet)
}

func (s Service) OpenSession(w http.ResponseWriter, r *http.Request) {
	var request OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RespondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.Sessions.Open(r.Context(), request.ApiKey)
	if errors.Kind(err) == errors.KindValidation {
		s.Sessions.Close(sess.ID)
		RespondError(w, err)
		return
	}
	if err != nil {
		// the session exists anyway, its state shows the error
		log.Warnf("[api] session %s could not connect: %v", sess.ID, err)
	}
	WriteResponse(w, http.StatusCreated, SessionResponse{ID: sess.ID, State: sess.Snapshot()})
}

func (s Service) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	WriteResponse(w, http.StatusOK, SessionResponse{ID: sess.ID, State: sess.Snapshot()})
}

func (s Service) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.Sessions.Close(mux.Vars(r)["id"]) {
		RespondMessage(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s Service) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Refresh(r.Context()); err != nil {
		RespondError(w, err)
		return
	}
	WriteResponse(w, http.StatusOK, SessionResponse{ID: sess.ID, State: sess.Snapshot()})
}

func (s Service) CreateWallet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var request CreateWalletRequest
	if !decodeBody(w, r, &request) {
		return
	}
	wallet, err := sess.CreateWallet(r.Context(), request.Name)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteResponse(w, http.StatusCreated, wallet)
}

func (s Service) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var request CreateInvoiceRequest
	if !decodeBody(w, r, &request) {
		return
	}
	invoice, err := sess.CreateInvoice(r.Context(), mux.Vars(r)["wallet"], request.Amount, request.Memo)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteResponse(w, http.StatusCreated, invoice)
}

func (s Service) PayInvoice(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var request PayInvoiceRequest
	if !decodeBody(w, r, &request) {
		return
	}
	walletID := mux.Vars(r)["wallet"]
	var err error
	if len(request.Bolt11) > 0 {
		_, err = sess.PayInvoice(r.Context(), walletID, request.Bolt11)
	} else {
		_, err = sess.PayCurrentInvoice(r.Context(), walletID)
	}
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteResponse(w, http.StatusOK, SessionResponse{ID: sess.ID, State: sess.Snapshot()})
}

func (s Service) InvoiceQR(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	invoice, ok := sess.CurrentInvoice()
	if !ok {
		RespondMessage(w, http.StatusNotFound, "no current invoice")
		return
	}
	qr, err := qrcode.Encode(invoice.PaymentRequest(), qrcode.Medium, 256)
	if err != nil {
		log.Errorf("[api] could not create qr code: %v", err)
		RespondMessage(w, http.StatusInternalServerError, "could not create qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(qr)
}

func (s Service) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.Sessions.Get(mux.Vars(r)["id"])
	if !ok {
		RespondMessage(w, http.StatusNotFound, "unknown session")
	}
	return sess, ok
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && err != io.EOF {
		RespondMessage(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func RespondMessage(w http.ResponseWriter, status int, message string) {
	WriteResponse(w, status, ErrorResponse{Message: message})
}

// RespondError maps the error kinds of the wallet service onto HTTP statuses.
func RespondError(w http.ResponseWriter, err error) {
	switch errors.Kind(err) {
	case errors.KindValidation:
		RespondMessage(w, http.StatusBadRequest, err.Error())
	case errors.KindApi:
		status, _ := errors.Status(err)
		WriteResponse(w, http.StatusBadGateway, ErrorResponse{Message: err.Error(), Status: status})
	case errors.KindNetwork:
		RespondMessage(w, http.StatusServiceUnavailable, err.Error())
	default:
		RespondMessage(w, http.StatusInternalServerError, err.Error())
	}
}
