package types

import (
	"github.com/holiman/uint256"
)

// Account is the current state of a wallet address. Version is bumped on
// every balance mutation and is the guard for conditional writes.
type Account struct {
	Address   string
	Balance   *uint256.Int
	Version   uint64
	CreatedAt int64
	UpdatedAt int64
}

func NewAccount(addr string, now int64) *Account {
	return &Account{
		Address:   addr,
		Balance:   uint256.NewInt(0),
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can compute a new state without
// touching the one they read.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Balance != nil {
		cp.Balance = a.Balance.Clone()
	} else {
		cp.Balance = uint256.NewInt(0)
	}
	return &cp
}

// BalanceView is what callers see when they ask for a balance. Address is
// echoed back so the receive screen can render it as a QR code.
type BalanceView struct {
	Address string
	Balance *uint256.Int
	Version uint64
}
