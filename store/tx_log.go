package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mezonai/credits/db"
	lerrors "github.com/mezonai/credits/errors"
	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/types"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// appendAttempts bounds re-sequencing when another writer took our seq
	appendAttempts = 5
)

// PageRequest selects one page of an account history
type PageRequest struct {
	Limit  int
	Cursor string
}

// TransactionLog is the append-only record of transfers and mints
type TransactionLog interface {
	Append(ctx context.Context, tx *types.Transaction) error
	GetByID(id string) (*types.Transaction, error)
	GetByIdempotencyKey(key string) (*types.Transaction, error)
	ListByAccount(addr string, page PageRequest) (*types.TxPage, error)
	StageStatus(ws *WriteSet, tx *types.Transaction) error
}

// GenericTxLog stores each transaction once under its id, plus index
// entries by idempotency key, by global sequence and by account.
type GenericTxLog struct {
	dbProvider db.ConditionalProvider
	tm         *db.DBTxManager

	seqMu sync.Mutex
	seq   atomic.Uint64
}

func NewGenericTxLog(dbProvider db.ConditionalProvider) (*GenericTxLog, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	l := &GenericTxLog{
		dbProvider: dbProvider,
		tm:         db.NewDBTxManager(dbProvider),
	}
	if err := l.reseed(); err != nil {
		return nil, err
	}
	return l, nil
}

// LastSeq is the highest sequence this log has handed out or observed
func (l *GenericTxLog) LastSeq() uint64 {
	return l.seq.Load()
}

// reseed raises the counter to the newest sequence found in storage
func (l *GenericTxLog) reseed() error {
	l.seqMu.Lock()
	defer l.seqMu.Unlock()

	var last uint64
	var parseErr error
	err := l.dbProvider.IterateReverse([]byte(PrefixTxSeq), nil, func(key, _ []byte) bool {
		last, parseErr = seqFromKey(key)
		return false
	})
	if err != nil {
		return fmt.Errorf("failed to scan tx sequence: %w", err)
	}
	if parseErr != nil {
		return parseErr
	}
	if last > l.seq.Load() {
		l.seq.Store(last)
	}
	return nil
}

// Append writes tx once, assigning its id (when empty) and its sequence. It
// fails with duplicate_request when the idempotency key is already taken.
func (l *GenericTxLog) Append(ctx context.Context, tx *types.Transaction) error {
	if tx.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transaction id: %w", err)
		}
		tx.ID = id.String()
	}
	if tx.UpdatedAt == 0 {
		tx.UpdatedAt = tx.Timestamp
	}

	for attempt := 0; attempt < appendAttempts; attempt++ {
		tx.Seq = l.seq.Add(1)
		data, err := encodeTx(tx)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction: %w", err)
		}
		ref := []byte(tx.ID)

		ws := NewWriteSet(l.tm)
		ws.Expect(idempotencyKey(tx.IdempotencyKey), nil)
		ws.Expect(txKey(tx.ID), nil)
		ws.Expect(seqKey(tx.Seq), nil)
		ws.Put(txKey(tx.ID), data)
		ws.Put(idempotencyKey(tx.IdempotencyKey), ref)
		ws.Put(seqKey(tx.Seq), ref)
		if tx.Sender != types.SystemAddress {
			ws.Put(accountTxKey(tx.Sender, tx.Seq), ref)
		}
		ws.Put(accountTxKey(tx.Receiver, tx.Seq), ref)

		err = ws.Commit(ctx)
		if err == nil {
			logx.Debug("TX_LOG", fmt.Sprintf("Appended tx %s seq=%d status=%s", tx.ID, tx.Seq, tx.Status))
			return nil
		}
		if lerrors.Code(err) != lerrors.ErrCodeConflict {
			return fmt.Errorf("failed to append transaction: %w", err)
		}

		taken, hasErr := l.dbProvider.Has(idempotencyKey(tx.IdempotencyKey))
		if hasErr != nil {
			return fmt.Errorf("failed to check idempotency key: %w", hasErr)
		}
		if taken {
			return lerrors.ErrDuplicateRequest
		}
		// another writer owns this sequence number
		if err := l.reseed(); err != nil {
			return err
		}
	}
	return lerrors.ErrConflict
}

// GetByID retrieves a transaction by its id
func (l *GenericTxLog) GetByID(id string) (*types.Transaction, error) {
	tx, _, err := l.load(id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, lerrors.NewError(lerrors.ErrCodeNotFound, lerrors.ErrMsgTransactionNotFound)
	}
	return tx, nil
}

// GetByIdempotencyKey finds the transaction created for key
func (l *GenericTxLog) GetByIdempotencyKey(key string) (*types.Transaction, error) {
	ref, err := l.dbProvider.Get(idempotencyKey(key))
	if err != nil {
		return nil, fmt.Errorf("could not get idempotency key from db: %w", err)
	}
	if ref == nil {
		return nil, lerrors.NewError(lerrors.ErrCodeNotFound, lerrors.ErrMsgTransactionNotFound)
	}
	return l.GetByID(string(ref))
}

// ListByAccount returns one page of addr's transactions, newest first. The
// cursor is the sequence of the last entry returned, so entries appended
// after the first page never shift later pages.
func (l *GenericTxLog) ListByAccount(addr string, page PageRequest) (*types.TxPage, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	beforeSeq, err := DecodeCursor(page.Cursor)
	if err != nil {
		return nil, err
	}

	prefix := accountTxPrefix(addr)
	var before []byte
	if beforeSeq > 0 {
		before = accountTxKey(addr, beforeSeq)
	}

	type ref struct {
		seq uint64
		id  string
	}
	refs := make([]ref, 0, limit+1)
	var scanErr error
	err = l.dbProvider.IterateReverse(prefix, before, func(key, value []byte) bool {
		seq, err := seqFromKey(key)
		if err != nil {
			scanErr = err
			return false
		}
		refs = append(refs, ref{seq: seq, id: string(value)})
		return len(refs) <= limit
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan history of %s: %w", addr, err)
	}
	if scanErr != nil {
		return nil, scanErr
	}

	result := &types.TxPage{Transactions: make([]*types.Transaction, 0, limit)}
	if len(refs) > limit {
		refs = refs[:limit]
		result.NextCursor = EncodeCursor(refs[limit-1].seq)
	}

	keys := make([][]byte, len(refs))
	for i, r := range refs {
		keys[i] = txKey(r.id)
	}
	raw, err := l.dbProvider.GetBatch(keys)
	if err != nil {
		return nil, fmt.Errorf("could not get transactions from db: %w", err)
	}
	for _, r := range refs {
		data, ok := raw[string(txKey(r.id))]
		if !ok {
			logx.Warn("TX_LOG", "Index entry without record: ", r.id)
			continue
		}
		tx, err := decodeTx(data)
		if err != nil {
			return nil, err
		}
		result.Transactions = append(result.Transactions, tx)
	}
	return result, nil
}

// StageStatus stages the terminal version of tx, guarded by the stored
// record still being pending. Only Pending -> Committed|Failed is allowed.
func (l *GenericTxLog) StageStatus(ws *WriteSet, tx *types.Transaction) error {
	if !tx.Status.IsTerminal() {
		return lerrors.Errorf(lerrors.ErrCodeInvalidOperation, "status %s is not terminal", tx.Status)
	}
	current, raw, err := l.load(tx.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return lerrors.NewError(lerrors.ErrCodeNotFound, lerrors.ErrMsgTransactionNotFound)
	}
	if current.Status != types.TxStatusPending {
		return lerrors.ErrConflict
	}
	if current.Seq != tx.Seq || !current.SameRequest(tx) {
		return lerrors.Errorf(lerrors.ErrCodeInvalidOperation, "transaction %s does not match stored record", tx.ID)
	}

	final := tx.Clone()
	final.UpdatedAt = ws.Now()
	data, err := encodeTx(final)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	ws.Expect(txKey(tx.ID), raw)
	ws.Put(txKey(tx.ID), data)
	return nil
}

func (l *GenericTxLog) load(id string) (*types.Transaction, []byte, error) {
	data, err := l.dbProvider.Get(txKey(id))
	if err != nil {
		return nil, nil, fmt.Errorf("could not get transaction %s from db: %w", id, err)
	}
	if data == nil {
		return nil, nil, nil
	}
	tx, err := decodeTx(data)
	if err != nil {
		return nil, nil, err
	}
	return tx, data, nil
}
