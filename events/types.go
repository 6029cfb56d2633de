package events

import (
	"time"

	"github.com/mezonai/credits/types"
)

// EventType is an enum-like string type for ledger events
type EventType string

const (
	EventTransactionCommitted EventType = "TransactionCommitted"
	EventTransactionFailed    EventType = "TransactionFailed"
	EventAccountOpened        EventType = "AccountOpened"
)

// LedgerEvent represents anything observable that happened to the ledger
type LedgerEvent interface {
	Type() EventType
	Timestamp() time.Time
	TxID() string
}

// TransactionCommitted is published after a transfer or mint is durably applied
type TransactionCommitted struct {
	tx        *types.Transaction
	timestamp time.Time
}

func NewTransactionCommitted(tx *types.Transaction) *TransactionCommitted {
	return &TransactionCommitted{tx: tx.Clone(), timestamp: time.Now()}
}

func (e *TransactionCommitted) Type() EventType {
	return EventTransactionCommitted
}

func (e *TransactionCommitted) Timestamp() time.Time {
	return e.timestamp
}

func (e *TransactionCommitted) TxID() string {
	return e.tx.ID
}

func (e *TransactionCommitted) Transaction() *types.Transaction {
	return e.tx
}

// TransactionFailed is published when a transaction is recorded as Failed
type TransactionFailed struct {
	tx        *types.Transaction
	timestamp time.Time
}

func NewTransactionFailed(tx *types.Transaction) *TransactionFailed {
	return &TransactionFailed{tx: tx.Clone(), timestamp: time.Now()}
}

func (e *TransactionFailed) Type() EventType {
	return EventTransactionFailed
}

func (e *TransactionFailed) Timestamp() time.Time {
	return e.timestamp
}

func (e *TransactionFailed) TxID() string {
	return e.tx.ID
}

func (e *TransactionFailed) Transaction() *types.Transaction {
	return e.tx
}

func (e *TransactionFailed) ErrorMessage() string {
	return e.tx.Error
}

// AccountOpened is published when an address is provisioned explicitly
type AccountOpened struct {
	address   string
	timestamp time.Time
}

func NewAccountOpened(address string) *AccountOpened {
	return &AccountOpened{address: address, timestamp: time.Now()}
}

func (e *AccountOpened) Type() EventType {
	return EventAccountOpened
}

func (e *AccountOpened) Timestamp() time.Time {
	return e.timestamp
}

func (e *AccountOpened) TxID() string {
	return ""
}

func (e *AccountOpened) Address() string {
	return e.address
}
