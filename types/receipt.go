package types

import "github.com/holiman/uint256"

// Receipt is the durable outcome of a committed transaction. It is built
// from the stored record alone, so a replay returns the same values.
type Receipt struct {
	TransactionID   string
	Type            TxType
	Sender          string
	Receiver        string
	Amount          *uint256.Int
	SenderBalance   *uint256.Int
	ReceiverBalance *uint256.Int
	Status          TxStatus
	Timestamp       int64
	Replayed        bool
}

func NewReceipt(tx *Transaction, replayed bool) *Receipt {
	return &Receipt{
		TransactionID:   tx.ID,
		Type:            tx.Type,
		Sender:          tx.Sender,
		Receiver:        tx.Receiver,
		Amount:          tx.Amount,
		SenderBalance:   tx.SenderBalance,
		ReceiverBalance: tx.ReceiverBalance,
		Status:          tx.Status,
		Timestamp:       tx.Timestamp,
		Replayed:        replayed,
	}
}
