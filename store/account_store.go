package store

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/mezonai/credits/db"
	lerrors "github.com/mezonai/credits/errors"
	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/monitoring"
	"github.com/mezonai/credits/retry"
	"github.com/mezonai/credits/stringutil"
	"github.com/mezonai/credits/types"
)

type AccountStore interface {
	GetByAddr(addr string) (*types.Account, error)
	GetBalance(addr string) (*uint256.Int, uint64, error)
	GetBatch(addrs []string) (map[string]*types.Account, error)
	Exists(addr string) (bool, error)
	Open(ctx context.Context, addr string) (*types.Account, error)
	CompareAndSwap(ctx context.Context, addr string, expectedVersion uint64, newBalance *uint256.Int) (uint64, error)
	Credit(ctx context.Context, addr string, amount *uint256.Int) (*types.Account, error)
	StageSwap(ws *WriteSet, addr string, expectedVersion uint64, newBalance *uint256.Int) (*types.Account, error)
	StageCredit(ws *WriteSet, addr string, amount *uint256.Int) (*types.Account, error)
}

// GenericAccountStore keeps one versioned record per address. It holds no
// locks of its own: every mutation is a conditional write on the record
// bytes it was computed from.
type GenericAccountStore struct {
	dbProvider db.ConditionalProvider
	tm         *db.DBTxManager
	policy     retry.Policy
}

func NewGenericAccountStore(dbProvider db.ConditionalProvider, policy retry.Policy) (*GenericAccountStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericAccountStore{
		dbProvider: dbProvider,
		tm:         db.NewDBTxManager(dbProvider),
		policy:     policy,
	}, nil
}

// GetByAddr returns account instance from db, return both nil if not exist
func (as *GenericAccountStore) GetByAddr(addr string) (*types.Account, error) {
	acc, _, err := as.load(addr)
	return acc, err
}

// GetBalance returns the balance and version or a not_found error
func (as *GenericAccountStore) GetBalance(addr string) (*uint256.Int, uint64, error) {
	acc, _, err := as.load(addr)
	if err != nil {
		return nil, 0, err
	}
	if acc == nil {
		return nil, 0, lerrors.NewError(lerrors.ErrCodeNotFound, lerrors.ErrMsgAccountNotFound)
	}
	return acc.Balance, acc.Version, nil
}

// GetBatch retrieves multiple accounts by addresses. Missing accounts return as nil entries.
func (as *GenericAccountStore) GetBatch(addrs []string) (map[string]*types.Account, error) {
	keys := make([][]byte, 0, len(addrs))
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		keys = append(keys, accountKey(addr))
	}
	raw, err := as.dbProvider.GetBatch(keys)
	if err != nil {
		return nil, fmt.Errorf("could not get accounts from db: %w", err)
	}

	result := make(map[string]*types.Account, len(addrs))
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		data, ok := raw[string(accountKey(addr))]
		if !ok {
			result[addr] = nil
			continue
		}
		acc, err := decodeAccount(data)
		if err != nil {
			return nil, err
		}
		result[addr] = acc
	}
	return result, nil
}

func (as *GenericAccountStore) Exists(addr string) (bool, error) {
	return as.dbProvider.Has(accountKey(addr))
}

// Open provisions an empty account. Existing accounts are left untouched.
func (as *GenericAccountStore) Open(ctx context.Context, addr string) (*types.Account, error) {
	ws := NewWriteSet(as.tm)
	acc := types.NewAccount(addr, ws.Now())
	data, err := encodeAccount(acc)
	if err != nil {
		return nil, err
	}
	ws.Expect(accountKey(addr), nil)
	ws.Put(accountKey(addr), data)

	if err := ws.Commit(ctx); err != nil {
		if lerrors.Code(err) == lerrors.ErrCodeConflict {
			return nil, lerrors.NewError(lerrors.ErrCodeAlreadyExists, lerrors.ErrMsgAccountExists)
		}
		return nil, fmt.Errorf("failed to open account %s: %w", addr, err)
	}
	monitoring.IncreaseAccountsOpened()
	logx.Info("ACCOUNT_STORE", "Opened account ", stringutil.ShortenLog(addr))
	return acc, nil
}

// CompareAndSwap sets the balance only if the stored version still equals
// expectedVersion, and returns the new version.
func (as *GenericAccountStore) CompareAndSwap(ctx context.Context, addr string, expectedVersion uint64, newBalance *uint256.Int) (uint64, error) {
	ws := NewWriteSet(as.tm)
	acc, err := as.StageSwap(ws, addr, expectedVersion, newBalance)
	if err != nil {
		return 0, err
	}
	if err := ws.Commit(ctx); err != nil {
		return 0, err
	}
	return acc.Version, nil
}

// Credit adds amount to addr, creating the account if needed. Conflicts are
// retried under the store policy and surface as busy when it runs out.
func (as *GenericAccountStore) Credit(ctx context.Context, addr string, amount *uint256.Int) (*types.Account, error) {
	var out *types.Account
	err := retry.Do(ctx, as.policy, func(ctx context.Context) error {
		ws := NewWriteSet(as.tm)
		acc, err := as.StageCredit(ws, addr, amount)
		if err != nil {
			return err
		}
		if err := ws.Commit(ctx); err != nil {
			return err
		}
		out = acc
		return nil
	})
	if lerrors.Code(err) == lerrors.ErrCodeConflict {
		monitoring.IncreaseRetriesExceeded()
		return nil, lerrors.ErrBusy
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StageSwap stages a balance replacement guarded by the current record.
func (as *GenericAccountStore) StageSwap(ws *WriteSet, addr string, expectedVersion uint64, newBalance *uint256.Int) (*types.Account, error) {
	current, raw, err := as.load(addr)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, lerrors.NewError(lerrors.ErrCodeNotFound, lerrors.ErrMsgAccountNotFound)
	}
	if current.Version != expectedVersion {
		monitoring.IncreaseCASConflict()
		return nil, lerrors.ErrConflict
	}

	next := current.Clone()
	next.Balance = newBalance.Clone()
	next.Version++
	next.UpdatedAt = ws.Now()
	return next, as.stage(ws, addr, raw, next)
}

// StageCredit stages current+amount, or a new account holding amount.
func (as *GenericAccountStore) StageCredit(ws *WriteSet, addr string, amount *uint256.Int) (*types.Account, error) {
	current, raw, err := as.load(addr)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if next == nil {
		next = types.NewAccount(addr, ws.Now())
	}
	sum, overflow := new(uint256.Int).AddOverflow(next.Balance, amount)
	if overflow {
		return nil, lerrors.NewError(lerrors.ErrCodeInvalidOperation, lerrors.ErrMsgInvalidAmount)
	}
	next.Balance = sum
	next.Version++
	next.UpdatedAt = ws.Now()
	return next, as.stage(ws, addr, raw, next)
}

func (as *GenericAccountStore) stage(ws *WriteSet, addr string, raw []byte, next *types.Account) error {
	data, err := encodeAccount(next)
	if err != nil {
		return fmt.Errorf("failed to marshal account %s: %w", addr, err)
	}
	ws.Expect(accountKey(addr), raw)
	ws.Put(accountKey(addr), data)
	return nil
}

// load returns the decoded account and the exact bytes it came from
func (as *GenericAccountStore) load(addr string) (*types.Account, []byte, error) {
	data, err := as.dbProvider.Get(accountKey(addr))
	if err != nil {
		return nil, nil, fmt.Errorf("could not get account %s from db: %w", addr, err)
	}
	if data == nil {
		return nil, nil, nil
	}
	acc, err := decodeAccount(data)
	if err != nil {
		return nil, nil, fmt.Errorf("account %s: %w", addr, err)
	}
	return acc, data, nil
}
