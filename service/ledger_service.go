package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	lerrors "github.com/mezonai/credits/errors"
	"github.com/mezonai/credits/events"
	"github.com/mezonai/credits/interfaces"
	"github.com/mezonai/credits/ledger"
	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/security/validation"
	"github.com/mezonai/credits/store"
	"github.com/mezonai/credits/types"
)

// HistoryConfig bounds history page sizes
type HistoryConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{DefaultPageSize: store.DefaultPageSize, MaxPageSize: store.MaxPageSize}
}

// LedgerServiceImpl validates request shape, delegates and maps every
// error onto the ledger taxonomy. It keeps no state of its own.
type LedgerServiceImpl struct {
	engine    *ledger.Engine
	accounts  store.AccountStore
	txs       store.TransactionLog
	publisher events.Publisher
	history   HistoryConfig
}

var _ interfaces.LedgerService = (*LedgerServiceImpl)(nil)

func NewLedgerService(engine *ledger.Engine, accounts store.AccountStore, txs store.TransactionLog, publisher events.Publisher, history HistoryConfig) *LedgerServiceImpl {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if history.DefaultPageSize <= 0 {
		history.DefaultPageSize = store.DefaultPageSize
	}
	if history.MaxPageSize <= 0 || history.MaxPageSize > store.MaxPageSize {
		history.MaxPageSize = store.MaxPageSize
	}
	if history.DefaultPageSize > history.MaxPageSize {
		history.DefaultPageSize = history.MaxPageSize
	}
	return &LedgerServiceImpl{
		engine:    engine,
		accounts:  accounts,
		txs:       txs,
		publisher: publisher,
		history:   history,
	}
}

func (s *LedgerServiceImpl) Transfer(ctx context.Context, req *types.TransferRequest) (*types.Receipt, error) {
	if req == nil {
		return nil, lerrors.NewError(lerrors.ErrCodeInvalidOperation, "empty transfer request")
	}
	if err := validation.ValidateAddress(validation.SenderField, req.Sender); err != nil {
		return nil, err
	}
	if err := validation.ValidateAddress(validation.ReceiverField, req.Receiver); err != nil {
		return nil, err
	}
	if req.Sender == req.Receiver {
		return nil, lerrors.NewError(lerrors.ErrCodeInvalidOperation, lerrors.ErrMsgSelfTransfer)
	}
	amount, err := validation.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateIdempotencyKey(req.IdempotencyKey); err != nil {
		return nil, err
	}
	memo, err := validation.NormalizeMemo(req.Memo)
	if err != nil {
		return nil, err
	}

	receipt, err := s.engine.Submit(ctx, ledger.Request{
		Type:           types.TxTypeTransfer,
		Sender:         req.Sender,
		Receiver:       req.Receiver,
		Amount:         amount,
		IdempotencyKey: req.IdempotencyKey,
		Memo:           memo,
	})
	if err != nil {
		return nil, s.translate("transfer", err)
	}
	return receipt, nil
}

func (s *LedgerServiceImpl) Mint(ctx context.Context, req *types.MintRequest) (*types.Receipt, error) {
	if req == nil {
		return nil, lerrors.NewError(lerrors.ErrCodeInvalidOperation, "empty mint request")
	}
	if err := validation.ValidateAddress(validation.ReceiverField, req.Receiver); err != nil {
		return nil, err
	}
	amount, err := validation.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateIdempotencyKey(req.IdempotencyKey); err != nil {
		return nil, err
	}
	memo, err := validation.NormalizeMemo(req.Memo)
	if err != nil {
		return nil, err
	}

	receipt, err := s.engine.Submit(ctx, ledger.Request{
		Type:           types.TxTypeMint,
		Sender:         types.SystemAddress,
		Receiver:       req.Receiver,
		Amount:         amount,
		IdempotencyKey: req.IdempotencyKey,
		Memo:           memo,
	})
	if err != nil {
		return nil, s.translate("mint", err)
	}
	return receipt, nil
}

// GetBalance returns the balance together with the address, which the UI
// renders as the receive QR code.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, address string) (*types.BalanceView, error) {
	if err := validation.ValidateAddress(validation.AddressField, address); err != nil {
		return nil, err
	}
	balance, version, err := s.accounts.GetBalance(address)
	if err != nil {
		return nil, s.translate("get balance", err)
	}
	return &types.BalanceView{Address: address, Balance: balance, Version: version}, nil
}

func (s *LedgerServiceImpl) GetHistory(ctx context.Context, req *types.HistoryRequest) (*types.TxPage, error) {
	if req == nil {
		return nil, lerrors.NewError(lerrors.ErrCodeInvalidOperation, "empty history request")
	}
	if err := validation.ValidateAddress(validation.AddressField, req.Address); err != nil {
		return nil, err
	}
	if err := validation.ValidatePageSize(req.Limit, s.history.MaxPageSize); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.history.DefaultPageSize
	}

	page, err := s.txs.ListByAccount(req.Address, store.PageRequest{Limit: limit, Cursor: req.Cursor})
	if err != nil {
		return nil, s.translate("get history", err)
	}
	return page, nil
}

func (s *LedgerServiceImpl) GetTransaction(ctx context.Context, id string) (*types.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, lerrors.NewError(lerrors.ErrCodeInvalidOperation, "transaction id is not a valid uuid")
	}
	tx, err := s.txs.GetByID(id)
	if err != nil {
		return nil, s.translate("get transaction", err)
	}
	return tx, nil
}

func (s *LedgerServiceImpl) OpenAccount(ctx context.Context, address string) (*types.Account, error) {
	if err := validation.ValidateAddress(validation.AddressField, address); err != nil {
		return nil, err
	}
	acc, err := s.accounts.Open(ctx, address)
	if err != nil {
		return nil, s.translate("open account", err)
	}
	s.publisher.PublishAccountOpened(address)
	return acc, nil
}

// translate passes ledger errors through and hides everything else behind
// internal_error after logging it.
func (s *LedgerServiceImpl) translate(op string, err error) error {
	var le *lerrors.LedgerError
	if stderrors.As(err, &le) {
		if le.Code == lerrors.ErrCodeConflict {
			return lerrors.NewError(lerrors.ErrCodeBusy, lerrors.ErrMsgBusy)
		}
		return le
	}
	logx.Error("LEDGER_SERVICE", fmt.Sprintf("%s failed: %v", op, err))
	return lerrors.NewError(lerrors.ErrCodeInternal, lerrors.ErrMsgInternal)
}
