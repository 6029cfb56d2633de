package store

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/mezonai/credits/jsonx"
	"github.com/mezonai/credits/types"
)

// Stored shapes. Amounts are decimal strings so records stay readable in
// redis-cli and psql.

type accountRecord struct {
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Version   uint64 `json:"version"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type txRecord struct {
	ID              string `json:"id"`
	Seq             uint64 `json:"seq"`
	Type            string `json:"type"`
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	Amount          string `json:"amount"`
	Memo            string `json:"memo,omitempty"`
	Timestamp       int64  `json:"timestamp"`
	Status          string `json:"status"`
	IdempotencyKey  string `json:"idempotency_key"`
	ErrorCode       string `json:"error_code,omitempty"`
	Error           string `json:"error,omitempty"`
	UpdatedAt       int64  `json:"updated_at"`
	SenderBalance   string `json:"sender_balance,omitempty"`
	ReceiverBalance string `json:"receiver_balance,omitempty"`
}

func encodeAccount(acc *types.Account) ([]byte, error) {
	return jsonx.Marshal(accountRecord{
		Address:   acc.Address,
		Balance:   decString(acc.Balance),
		Version:   acc.Version,
		CreatedAt: acc.CreatedAt,
		UpdatedAt: acc.UpdatedAt,
	})
}

func decodeAccount(data []byte) (*types.Account, error) {
	var rec accountRecord
	if err := jsonx.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	balance, err := parseDec(rec.Balance)
	if err != nil {
		return nil, fmt.Errorf("account %s: bad balance: %w", rec.Address, err)
	}
	return &types.Account{
		Address:   rec.Address,
		Balance:   balance,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func encodeTx(tx *types.Transaction) ([]byte, error) {
	rec := txRecord{
		ID:             tx.ID,
		Seq:            tx.Seq,
		Type:           string(tx.Type),
		Sender:         tx.Sender,
		Receiver:       tx.Receiver,
		Amount:         decString(tx.Amount),
		Memo:           tx.Memo,
		Timestamp:      tx.Timestamp,
		Status:         string(tx.Status),
		IdempotencyKey: tx.IdempotencyKey,
		ErrorCode:      tx.ErrorCode,
		Error:          tx.Error,
		UpdatedAt:      tx.UpdatedAt,
	}
	if tx.SenderBalance != nil {
		rec.SenderBalance = tx.SenderBalance.Dec()
	}
	if tx.ReceiverBalance != nil {
		rec.ReceiverBalance = tx.ReceiverBalance.Dec()
	}
	return jsonx.Marshal(rec)
}

func decodeTx(data []byte) (*types.Transaction, error) {
	var rec txRecord
	if err := jsonx.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	amount, err := parseDec(rec.Amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: bad amount: %w", rec.ID, err)
	}
	tx := &types.Transaction{
		ID:             rec.ID,
		Seq:            rec.Seq,
		Type:           types.TxType(rec.Type),
		Sender:         rec.Sender,
		Receiver:       rec.Receiver,
		Amount:         amount,
		Memo:           rec.Memo,
		Timestamp:      rec.Timestamp,
		Status:         types.TxStatus(rec.Status),
		IdempotencyKey: rec.IdempotencyKey,
		ErrorCode:      rec.ErrorCode,
		Error:          rec.Error,
		UpdatedAt:      rec.UpdatedAt,
	}
	if !tx.Status.Valid() {
		return nil, fmt.Errorf("transaction %s: unknown status %q", rec.ID, rec.Status)
	}
	if rec.SenderBalance != "" {
		if tx.SenderBalance, err = parseDec(rec.SenderBalance); err != nil {
			return nil, fmt.Errorf("transaction %s: bad sender balance: %w", rec.ID, err)
		}
	}
	if rec.ReceiverBalance != "" {
		if tx.ReceiverBalance, err = parseDec(rec.ReceiverBalance); err != nil {
			return nil, fmt.Errorf("transaction %s: bad receiver balance: %w", rec.ID, err)
		}
	}
	return tx, nil
}

func decString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func parseDec(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	return uint256.FromDecimal(s)
}
