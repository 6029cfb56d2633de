package types

import (
	"github.com/holiman/uint256"
)

// SystemAddress is the sender of mint transactions. It has no account and
// no balance; crediting from it is the only way total supply changes.
const SystemAddress = "system"

type TxType string

const (
	TxTypeTransfer TxType = "transfer"
	TxTypeMint     TxType = "mint"
)

type TxStatus string

const (
	TxStatusPending   TxStatus = "PENDING"
	TxStatusCommitted TxStatus = "COMMITTED"
	TxStatusFailed    TxStatus = "FAILED"
)

func (s TxStatus) IsTerminal() bool {
	return s == TxStatusCommitted || s == TxStatusFailed
}

func (s TxStatus) Valid() bool {
	switch s {
	case TxStatusPending, TxStatusCommitted, TxStatusFailed:
		return true
	}
	return false
}

type Transaction struct {
	ID             string
	Seq            uint64
	Type           TxType
	Sender         string
	Receiver       string
	Amount         *uint256.Int
	Memo           string
	Timestamp      int64
	Status         TxStatus
	IdempotencyKey string
	ErrorCode      string
	Error          string
	UpdatedAt      int64

	// Balances right after the commit; nil unless Status is Committed.
	SenderBalance   *uint256.Int
	ReceiverBalance *uint256.Int
}

// Involves reports whether addr is on either side of the transaction.
func (tx *Transaction) Involves(addr string) bool {
	return tx.Sender == addr || tx.Receiver == addr
}

// SameRequest reports whether other describes the same logical request,
// which is what an idempotency key is allowed to stand for.
func (tx *Transaction) SameRequest(other *Transaction) bool {
	if tx == nil || other == nil {
		return false
	}
	if tx.Type != other.Type || tx.Sender != other.Sender || tx.Receiver != other.Receiver {
		return false
	}
	if tx.Amount == nil || other.Amount == nil {
		return tx.Amount == other.Amount
	}
	return tx.Amount.Eq(other.Amount)
}

func (tx *Transaction) Clone() *Transaction {
	if tx == nil {
		return nil
	}
	cp := *tx
	if tx.Amount != nil {
		cp.Amount = tx.Amount.Clone()
	}
	if tx.SenderBalance != nil {
		cp.SenderBalance = tx.SenderBalance.Clone()
	}
	if tx.ReceiverBalance != nil {
		cp.ReceiverBalance = tx.ReceiverBalance.Clone()
	}
	return &cp
}

// TxPage is one newest-first page of an account history. NextCursor is
// empty when there is nothing older.
type TxPage struct {
	Transactions []*Transaction
	NextCursor   string
}
