package jsonrpc

import (
	"context"
	"net/http"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/mezonai/credits/exception"
	"github.com/mezonai/credits/interfaces"
	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/types"
)

// JSON-RPC Method name constants
const (
	// Ledger methods
	MethodLedgerTransfer       = "ledger.transfer"
	MethodLedgerMint           = "ledger.mint"
	MethodLedgerGetBalance     = "ledger.getbalance"
	MethodLedgerGetHistory     = "ledger.gethistory"
	MethodLedgerGetTransaction = "ledger.gettransaction"

	// Account methods
	MethodAccountOpen = "account.open"

	// Health methods
	MethodHealthCheck = "health.check"
)

const shutdownTimeout = 5 * time.Second

// --- Server ---

type Server struct {
	addr       string
	ledgerSvc  interfaces.LedgerService
	healthSvc  interfaces.HealthService
	corsConfig CORSConfig
}

func NewServer(addr string, ledgerSvc interfaces.LedgerService, healthSvc interfaces.HealthService) *Server {
	return &Server{
		addr:       addr,
		ledgerSvc:  ledgerSvc,
		healthSvc:  healthSvc,
		corsConfig: CORSConfig{},
	}
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

// Handler bridges HTTP POSTs onto the jrpc2 method map
func (s *Server) Handler() http.Handler {
	bridge := jhttp.NewBridge(s.Methods(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
	return WithCORS(s.corsConfig, bridge)
}

// Serve listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	exception.SafeGo("jsonrpc-listen", func() {
		logx.Info("JSONRPC", "Listening on", s.addr)
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
		logx.Info("JSONRPC", "Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Methods is the jrpc2 method map
func (s *Server) Methods() handler.Map {
	return handler.Map{
		MethodLedgerTransfer: handler.New(func(ctx context.Context, p TransferParams) (*ReceiptResult, error) {
			receipt, err := s.ledgerSvc.Transfer(ctx, &types.TransferRequest{
				Sender:         p.Sender,
				Receiver:       p.Receiver,
				Amount:         p.Amount,
				IdempotencyKey: p.IdempotencyKey,
				Memo:           p.Memo,
			})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return NewReceiptResult(receipt), nil
		}),
		MethodLedgerMint: handler.New(func(ctx context.Context, p MintParams) (*ReceiptResult, error) {
			receipt, err := s.ledgerSvc.Mint(ctx, &types.MintRequest{
				Receiver:       p.Receiver,
				Amount:         p.Amount,
				IdempotencyKey: p.IdempotencyKey,
				Memo:           p.Memo,
			})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return NewReceiptResult(receipt), nil
		}),
		MethodLedgerGetBalance: handler.New(func(ctx context.Context, p AddressParams) (*BalanceResult, error) {
			balance, err := s.ledgerSvc.GetBalance(ctx, p.Address)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return NewBalanceResult(balance), nil
		}),
		MethodLedgerGetHistory: handler.New(func(ctx context.Context, p HistoryParams) (*HistoryResult, error) {
			page, err := s.ledgerSvc.GetHistory(ctx, &types.HistoryRequest{Address: p.Address, Cursor: p.Cursor, Limit: p.Limit})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return NewHistoryResult(page), nil
		}),
		MethodLedgerGetTransaction: handler.New(func(ctx context.Context, p TransactionParams) (*TransactionResult, error) {
			tx, err := s.ledgerSvc.GetTransaction(ctx, p.ID)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			res := NewTransactionResult(tx)
			return &res, nil
		}),
		MethodAccountOpen: handler.New(func(ctx context.Context, p AddressParams) (*AccountResult, error) {
			acc, err := s.ledgerSvc.OpenAccount(ctx, p.Address)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return NewAccountResult(acc), nil
		}),
		MethodHealthCheck: handler.New(func(ctx context.Context) (*HealthResult, error) {
			status, err := s.healthSvc.Check(ctx)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return NewHealthResult(status), nil
		}),
	}
}
