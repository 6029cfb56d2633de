package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	lerrors "github.com/mezonai/credits/errors"
	"github.com/mezonai/credits/events"
	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/monitoring"
	"github.com/mezonai/credits/retry"
	"github.com/mezonai/credits/security/validation"
	"github.com/mezonai/credits/store"
	"github.com/mezonai/credits/stringutil"
	"github.com/mezonai/credits/types"
)

// resolveAttempts bounds the lookup/append race on one idempotency key
const resolveAttempts = 3

// WriteSetFactory opens atomic write sets over the shared provider
type WriteSetFactory interface {
	NewWriteSet() *store.WriteSet
}

// Request is one transfer or mint as the engine sees it
type Request struct {
	Type           types.TxType
	Sender         string
	Receiver       string
	Amount         *uint256.Int
	IdempotencyKey string
	Memo           string
}

// GenesisAllocation is an initial balance minted at startup
type GenesisAllocation struct {
	Address string
	Amount  *uint256.Int
}

// Engine executes transfers with optimistic concurrency. It holds no lock
// across I/O: every attempt reads, stages a conditional write set and
// commits, and a lost race is simply retried.
type Engine struct {
	accounts  store.AccountStore
	txs       store.TransactionLog
	sets      WriteSetFactory
	publisher events.Publisher
	policy    retry.Policy
	now       func() time.Time
	lastTS    atomic.Int64
}

func NewEngine(accounts store.AccountStore, txs store.TransactionLog, sets WriteSetFactory, publisher events.Publisher, policy retry.Policy) *Engine {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Engine{
		accounts:  accounts,
		txs:       txs,
		sets:      sets,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
	}
}

// Execute transfers amount from sender to receiver at most once per
// idempotency key.
func (e *Engine) Execute(ctx context.Context, sender, receiver string, amount *uint256.Int, idempotencyKey string) (*types.Receipt, error) {
	return e.Submit(ctx, Request{
		Type:           types.TxTypeTransfer,
		Sender:         sender,
		Receiver:       receiver,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
	})
}

// Mint credits receiver from the system address. It is the only operation
// that changes total supply.
func (e *Engine) Mint(ctx context.Context, receiver string, amount *uint256.Int, idempotencyKey string) (*types.Receipt, error) {
	return e.Submit(ctx, Request{
		Type:           types.TxTypeMint,
		Sender:         types.SystemAddress,
		Receiver:       receiver,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
	})
}

// ApplyGenesis mints the initial allocations. Keys are derived from the
// address so restarting with the same genesis is a no-op.
func (e *Engine) ApplyGenesis(ctx context.Context, allocations []GenesisAllocation) error {
	for _, alloc := range allocations {
		receipt, err := e.Mint(ctx, alloc.Address, alloc.Amount, "genesis:"+alloc.Address)
		if err != nil {
			return fmt.Errorf("could not create genesis account %s: %w", alloc.Address, err)
		}
		if !receipt.Replayed {
			logx.Info("LEDGER", fmt.Sprintf("Genesis credit %s to %s", alloc.Amount.Dec(), stringutil.ShortenLog(alloc.Address)))
		}
	}
	return nil
}

// Submit runs the full transfer algorithm for req
func (e *Engine) Submit(ctx context.Context, req Request) (*types.Receipt, error) {
	start := time.Now()
	receipt, err := e.submit(ctx, req)
	monitoring.RecordTransfer(resultOf(receipt, err), time.Since(start))
	if err == nil && !receipt.Replayed && req.Type == types.TxTypeMint {
		monitoring.RecordMint(amountFloat(req.Amount))
	}
	return receipt, err
}

func (e *Engine) submit(ctx context.Context, req Request) (*types.Receipt, error) {
	if err := checkPreconditions(req); err != nil {
		return nil, err
	}

	tx, receipt, err := e.resolve(ctx, req)
	if err != nil || receipt != nil {
		return receipt, err
	}
	return e.drive(ctx, tx)
}

// resolve finds the transaction this request maps to. A terminal one is
// answered from its record; a pending one (an earlier call that returned
// busy or was abandoned) is handed back to be driven again.
func (e *Engine) resolve(ctx context.Context, req Request) (*types.Transaction, *types.Receipt, error) {
	candidate := &types.Transaction{
		Type:           req.Type,
		Sender:         req.Sender,
		Receiver:       req.Receiver,
		Amount:         req.Amount.Clone(),
		Memo:           req.Memo,
		Status:         types.TxStatusPending,
		IdempotencyKey: req.IdempotencyKey,
	}

	for attempt := 0; attempt < resolveAttempts; attempt++ {
		existing, err := e.txs.GetByIdempotencyKey(req.IdempotencyKey)
		switch {
		case err == nil:
			if !existing.SameRequest(candidate) {
				return nil, nil, lerrors.NewError(lerrors.ErrCodeInvalidOperation, lerrors.ErrMsgKeyReused)
			}
			if existing.Status.IsTerminal() {
				logx.Debug("LEDGER", "Replaying ", existing.ID, " for key ", req.IdempotencyKey)
				receipt, err := outcome(existing, true)
				return nil, receipt, err
			}
			logx.Info("LEDGER", "Resuming pending transaction ", existing.ID)
			return existing, nil, nil
		case lerrors.Code(err) != lerrors.ErrCodeNotFound:
			return nil, nil, err
		}

		candidate.Timestamp = e.timestamp()
		candidate.UpdatedAt = candidate.Timestamp
		err = e.txs.Append(ctx, candidate)
		if err == nil {
			return candidate, nil, nil
		}
		if lerrors.Code(err) != lerrors.ErrCodeDuplicateRequest {
			return nil, nil, err
		}
		// lost the append race to a concurrent call with the same key
		candidate.ID = ""
	}
	return nil, nil, lerrors.ErrBusy
}

// drive retries attempt until the transaction is terminal or the retry
// bound is hit. On busy the record stays pending for a later resume.
func (e *Engine) drive(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	var final *types.Transaction
	var replayed bool
	policy := e.policy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		logx.Debug("LEDGER", fmt.Sprintf("tx %s attempt %d conflicted, retrying in %s", tx.ID, attempt, wait))
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		f, settledElsewhere, err := e.attempt(ctx, tx)
		if err != nil {
			return err
		}
		final, replayed = f, settledElsewhere
		return nil
	})
	if err != nil {
		switch {
		case lerrors.Code(err) == lerrors.ErrCodeConflict:
			monitoring.IncreaseRetriesExceeded()
			logx.Warn("LEDGER", "Retries exhausted for ", tx.ID, ", left pending")
			return nil, lerrors.ErrBusy
		case ctx.Err() != nil:
			return nil, lerrors.NewError(lerrors.ErrCodeBusy, "request cancelled, retry with the same idempotency key")
		}
		return nil, err
	}

	if !replayed {
		e.announce(final)
	}
	return outcome(final, replayed)
}

// attempt is one read-validate-commit pass. It returns the terminal record,
// and whether some other caller wrote it.
func (e *Engine) attempt(ctx context.Context, tx *types.Transaction) (*types.Transaction, bool, error) {
	ws := e.sets.NewWriteSet()
	ws.SetNow(e.timestamp())
	final := tx.Clone()
	final.Status = types.TxStatusCommitted

	if tx.Type == types.TxTypeTransfer {
		balance, version, err := e.accounts.GetBalance(tx.Sender)
		if lerrors.Code(err) == lerrors.ErrCodeNotFound {
			return e.fail(ctx, tx, lerrors.NewError(lerrors.ErrCodeNotFound, lerrors.ErrMsgAccountNotFound))
		}
		if err != nil {
			return nil, false, err
		}
		if balance.Lt(tx.Amount) {
			return e.fail(ctx, tx, lerrors.ErrInsufficientFunds)
		}
		debited := new(uint256.Int).Sub(balance, tx.Amount)
		sender, err := e.accounts.StageSwap(ws, tx.Sender, version, debited)
		if err != nil {
			return e.onError(ctx, tx, err)
		}
		final.SenderBalance = sender.Balance.Clone()
	}

	receiver, err := e.accounts.StageCredit(ws, tx.Receiver, tx.Amount)
	if err != nil {
		return e.onError(ctx, tx, err)
	}
	final.ReceiverBalance = receiver.Balance.Clone()

	if err := e.txs.StageStatus(ws, final); err != nil {
		return e.onError(ctx, tx, err)
	}
	if err := ws.Commit(ctx); err != nil {
		return e.onError(ctx, tx, err)
	}
	final.UpdatedAt = ws.Now()
	return final, false, nil
}

// onError sorts a staging or commit error: conflicts are retried unless the
// transaction was settled by someone else, invalid operations are terminal.
func (e *Engine) onError(ctx context.Context, tx *types.Transaction, err error) (*types.Transaction, bool, error) {
	switch lerrors.Code(err) {
	case lerrors.ErrCodeConflict:
		if settled := e.settled(tx.ID); settled != nil {
			return settled, true, nil
		}
		return nil, false, err
	case lerrors.ErrCodeInvalidOperation:
		return e.fail(ctx, tx, err)
	}
	return nil, false, err
}

// fail records tx as Failed with cause
func (e *Engine) fail(ctx context.Context, tx *types.Transaction, cause error) (*types.Transaction, bool, error) {
	failed := tx.Clone()
	failed.Status = types.TxStatusFailed
	failed.ErrorCode = string(lerrors.Code(cause))
	failed.Error = lerrors.Message(cause)

	ws := e.sets.NewWriteSet()
	ws.SetNow(e.timestamp())
	err := e.txs.StageStatus(ws, failed)
	if err == nil {
		err = ws.Commit(ctx)
	}
	if err != nil {
		if lerrors.Code(err) == lerrors.ErrCodeConflict {
			if settled := e.settled(tx.ID); settled != nil {
				return settled, true, nil
			}
		}
		return nil, false, err
	}
	failed.UpdatedAt = ws.Now()
	return failed, false, nil
}

// settled returns the stored record if it is already terminal
func (e *Engine) settled(id string) *types.Transaction {
	stored, err := e.txs.GetByID(id)
	if err != nil || !stored.Status.IsTerminal() {
		return nil
	}
	return stored
}

func (e *Engine) announce(tx *types.Transaction) {
	switch tx.Status {
	case types.TxStatusCommitted:
		logx.Info("LEDGER", fmt.Sprintf("Committed %s %s %s -> %s amount=%s", tx.Type, tx.ID, stringutil.ShortenLog(tx.Sender), stringutil.ShortenLog(tx.Receiver), tx.Amount.Dec()))
	case types.TxStatusFailed:
		logx.Info("LEDGER", fmt.Sprintf("Failed %s %s %s -> %s: %s", tx.Type, tx.ID, stringutil.ShortenLog(tx.Sender), stringutil.ShortenLog(tx.Receiver), tx.ErrorCode))
	}
	e.publisher.PublishTransaction(tx)
}

// timestamp is wall-clock milliseconds, never lower than a previous value
// handed out by this engine.
func (e *Engine) timestamp() int64 {
	now := e.now().UnixMilli()
	for {
		last := e.lastTS.Load()
		if now <= last {
			return last
		}
		if e.lastTS.CompareAndSwap(last, now) {
			return now
		}
	}
}

// outcome turns a terminal record into what the caller gets back
func outcome(tx *types.Transaction, replayed bool) (*types.Receipt, error) {
	if tx.Status == types.TxStatusFailed {
		code := lerrors.LedgerErrorCode(tx.ErrorCode)
		if code == "" {
			code = lerrors.ErrCodeInternal
		}
		return nil, lerrors.NewError(code, tx.Error)
	}
	return types.NewReceipt(tx, replayed), nil
}

func checkPreconditions(req Request) error {
	if err := validation.ValidateAmount(req.Amount); err != nil {
		return err
	}
	if err := validation.ValidateIdempotencyKey(req.IdempotencyKey); err != nil {
		return err
	}
	if err := validation.ValidateAddress(validation.ReceiverField, req.Receiver); err != nil {
		return err
	}
	switch req.Type {
	case types.TxTypeTransfer:
		if err := validation.ValidateAddress(validation.SenderField, req.Sender); err != nil {
			return err
		}
		if req.Sender == req.Receiver {
			return lerrors.NewError(lerrors.ErrCodeInvalidOperation, lerrors.ErrMsgSelfTransfer)
		}
	case types.TxTypeMint:
		if req.Sender != types.SystemAddress {
			return lerrors.Errorf(lerrors.ErrCodeInvalidOperation, "mint sender must be %s", types.SystemAddress)
		}
	default:
		return lerrors.Errorf(lerrors.ErrCodeInvalidOperation, "unknown transaction type %q", req.Type)
	}
	return nil
}

func resultOf(receipt *types.Receipt, err error) monitoring.TransferResult {
	if err == nil {
		if receipt.Replayed {
			return monitoring.TransferReplayed
		}
		return monitoring.TransferCommitted
	}
	switch lerrors.Code(err) {
	case lerrors.ErrCodeInsufficientFunds:
		return monitoring.TransferInsufficientFunds
	case lerrors.ErrCodeNotFound:
		return monitoring.TransferSenderNotFound
	case lerrors.ErrCodeInvalidOperation:
		return monitoring.TransferInvalid
	case lerrors.ErrCodeBusy, lerrors.ErrCodeConflict:
		return monitoring.TransferBusy
	}
	return monitoring.TransferError
}

func amountFloat(v *uint256.Int) float64 {
	f, _ := strconv.ParseFloat(v.Dec(), 64)
	return f
}
