package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	lerrors "github.com/mezonai/credits/errors"
	"github.com/mezonai/credits/exception"
	"github.com/mezonai/credits/interfaces"
	"github.com/mezonai/credits/jsonrpc"
	"github.com/mezonai/credits/jsonx"
	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/monitoring"
	"github.com/mezonai/credits/security/validation"
	"github.com/mezonai/credits/types"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "X-Idempotency-Replayed"

	// retryAfterSeconds is advertised on busy responses
	retryAfterSeconds = 1
	shutdownTimeout   = 5 * time.Second
)

type errorBody struct {
	Error lerrors.LedgerError `json:"error"`
}

type openAccountBody struct {
	Address string `json:"address"`
}

// APIServer exposes the ledger as REST resources for the wallet UI
type APIServer struct {
	ledgerSvc  interfaces.LedgerService
	healthSvc  interfaces.HealthService
	router     *mux.Router
	listenAddr string
	cors       jsonrpc.CORSConfig
}

func NewAPIServer(addr string, ledgerSvc interfaces.LedgerService, healthSvc interfaces.HealthService, cors jsonrpc.CORSConfig) *APIServer {
	s := &APIServer{
		ledgerSvc:  ledgerSvc,
		healthSvc:  healthSvc,
		router:     mux.NewRouter(),
		listenAddr: addr,
		cors:       cors,
	}
	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Ledger endpoints
	v1.HandleFunc("/transfers", s.transfer).Methods(http.MethodPost)
	v1.HandleFunc("/mint", s.mint).Methods(http.MethodPost)
	v1.HandleFunc("/transactions/{id}", s.getTransaction).Methods(http.MethodGet)

	// Account endpoints
	v1.HandleFunc("/accounts", s.openAccount).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{address}", s.getBalance).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{address}/transactions", s.getHistory).Methods(http.MethodGet)

	// Ops endpoints
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	s.router.Handle("/metrics", monitoring.Handler()).Methods(http.MethodGet)
}

// GetRouter returns the configured router
func (s *APIServer) GetRouter() *mux.Router {
	return s.router
}

func (s *APIServer) Handler() http.Handler {
	return jsonrpc.WithCORS(s.cors, s.router)
}

// Serve listens until ctx is cancelled, then shuts down gracefully
func (s *APIServer) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.listenAddr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	exception.SafeGo("api-listen", func() {
		logx.Info("API", "Listening on", s.listenAddr)
		errCh <- srv.ListenAndServe()
	})

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Ledger endpoints

func (s *APIServer) transfer(w http.ResponseWriter, r *http.Request) {
	var body jsonrpc.TransferParams
	if !s.readJSON(w, r, &body) {
		return
	}
	key, ok := s.idempotencyKey(w, r, body.IdempotencyKey)
	if !ok {
		return
	}

	receipt, err := s.ledgerSvc.Transfer(r.Context(), &types.TransferRequest{
		Sender:         body.Sender,
		Receiver:       body.Receiver,
		Amount:         body.Amount,
		IdempotencyKey: key,
		Memo:           body.Memo,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeReceipt(w, receipt)
}

func (s *APIServer) mint(w http.ResponseWriter, r *http.Request) {
	var body jsonrpc.MintParams
	if !s.readJSON(w, r, &body) {
		return
	}
	key, ok := s.idempotencyKey(w, r, body.IdempotencyKey)
	if !ok {
		return
	}

	receipt, err := s.ledgerSvc.Mint(r.Context(), &types.MintRequest{
		Receiver:       body.Receiver,
		Amount:         body.Amount,
		IdempotencyKey: key,
		Memo:           body.Memo,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeReceipt(w, receipt)
}

func (s *APIServer) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledgerSvc.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jsonrpc.NewTransactionResult(tx))
}

// Account endpoints

func (s *APIServer) openAccount(w http.ResponseWriter, r *http.Request) {
	var body openAccountBody
	if !s.readJSON(w, r, &body) {
		return
	}
	acc, err := s.ledgerSvc.OpenAccount(r.Context(), body.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, jsonrpc.NewAccountResult(acc))
}

func (s *APIServer) getBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledgerSvc.GetBalance(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jsonrpc.NewBalanceResult(balance))
}

func (s *APIServer) getHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, lerrors.NewError(lerrors.ErrCodeInvalidOperation, lerrors.ErrMsgInvalidPageSize))
			return
		}
		limit = v
	}

	page, err := s.ledgerSvc.GetHistory(r.Context(), &types.HistoryRequest{
		Address: mux.Vars(r)["address"],
		Cursor:  query.Get("cursor"),
		Limit:   limit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jsonrpc.NewHistoryResult(page))
}

// Ops endpoints

func (s *APIServer) health(w http.ResponseWriter, r *http.Request) {
	status, err := s.healthSvc.Check(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	code := http.StatusOK
	if status.Status != types.HealthServing {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, jsonrpc.NewHealthResult(status))
}

// Helpers

// idempotencyKey prefers the header and rejects a body field that disagrees
func (s *APIServer) idempotencyKey(w http.ResponseWriter, r *http.Request, fromBody string) (string, bool) {
	header := r.Header.Get(IdempotencyKeyHeader)
	switch {
	case header == "":
		return fromBody, true
	case fromBody == "" || fromBody == header:
		return header, true
	}
	s.writeError(w, lerrors.NewError(lerrors.ErrCodeInvalidOperation, "Idempotency key in header and body differ"))
	return "", false
}

func (s *APIServer) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, validation.DefaultRequestBodyLimit)
	defer r.Body.Close()
	if err := jsonx.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, lerrors.NewError(lerrors.ErrCodeInvalidOperation, "Request body is not valid JSON"))
		return false
	}
	return true
}

func (s *APIServer) writeReceipt(w http.ResponseWriter, receipt *types.Receipt) {
	if receipt.Replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	s.writeJSON(w, http.StatusOK, jsonrpc.NewReceiptResult(receipt))
}

func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	code := lerrors.Code(err)
	status := StatusFor(code)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	if status == http.StatusInternalServerError {
		logx.Error("API", "request failed:", err)
	}
	s.writeJSON(w, status, errorBody{Error: lerrors.LedgerError{Code: code, Message: lerrors.Message(err)}})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonx.NewEncoder(w).Encode(data); err != nil {
		logx.Error("API", "Failed to encode JSON response:", err)
	}
}

// StatusFor maps a ledger error code to its HTTP status
func StatusFor(code lerrors.LedgerErrorCode) int {
	switch code {
	case lerrors.ErrCodeInvalidOperation:
		return http.StatusBadRequest
	case lerrors.ErrCodeNotFound:
		return http.StatusNotFound
	case lerrors.ErrCodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case lerrors.ErrCodeAlreadyExists, lerrors.ErrCodeDuplicateRequest:
		return http.StatusConflict
	case lerrors.ErrCodeConflict, lerrors.ErrCodeBusy:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
