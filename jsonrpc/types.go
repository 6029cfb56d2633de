package jsonrpc

import (
	"github.com/holiman/uint256"
	"github.com/mezonai/credits/types"
)

// --- Params ---

type TransferParams struct {
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
	Memo           string `json:"memo,omitempty"`
}

type MintParams struct {
	Receiver       string `json:"receiver"`
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
	Memo           string `json:"memo,omitempty"`
}

type AddressParams struct {
	Address string `json:"address"`
}

type HistoryParams struct {
	Address string `json:"address"`
	Cursor  string `json:"cursor,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type TransactionParams struct {
	ID string `json:"id"`
}

// --- Results ---

type ReceiptResult struct {
	TransactionID   string `json:"transaction_id"`
	Type            string `json:"type"`
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	Amount          string `json:"amount"`
	SenderBalance   string `json:"sender_balance,omitempty"`
	ReceiverBalance string `json:"receiver_balance"`
	Status          string `json:"status"`
	Timestamp       int64  `json:"timestamp"`
	Replayed        bool   `json:"replayed"`
}

type TransactionResult struct {
	ID             string `json:"id"`
	Seq            uint64 `json:"seq"`
	Type           string `json:"type"`
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	Amount         string `json:"amount"`
	Memo           string `json:"memo,omitempty"`
	Timestamp      int64  `json:"timestamp"`
	Status         string `json:"status"`
	IdempotencyKey string `json:"idempotency_key"`
	ErrorCode      string `json:"error_code,omitempty"`
	Error          string `json:"error,omitempty"`
	UpdatedAt      int64  `json:"updated_at"`
}

type HistoryResult struct {
	Transactions []TransactionResult `json:"transactions"`
	NextCursor   string              `json:"next_cursor,omitempty"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Version uint64 `json:"version"`
}

type AccountResult struct {
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Version   uint64 `json:"version"`
	CreatedAt int64  `json:"created_at"`
}

type HealthResult struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	LastSeq   uint64 `json:"last_seq"`
	Timestamp int64  `json:"timestamp"`
	Uptime    int64  `json:"uptime"`
	Version   string `json:"version"`
	Error     string `json:"error,omitempty"`
}

// --- Conversions ---

func decString(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}

func NewReceiptResult(r *types.Receipt) *ReceiptResult {
	return &ReceiptResult{
		TransactionID:   r.TransactionID,
		Type:            string(r.Type),
		Sender:          r.Sender,
		Receiver:        r.Receiver,
		Amount:          decString(r.Amount),
		SenderBalance:   decString(r.SenderBalance),
		ReceiverBalance: decString(r.ReceiverBalance),
		Status:          string(r.Status),
		Timestamp:       r.Timestamp,
		Replayed:        r.Replayed,
	}
}

func NewTransactionResult(tx *types.Transaction) TransactionResult {
	return TransactionResult{
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
}

func NewHistoryResult(page *types.TxPage) *HistoryResult {
	out := &HistoryResult{
		Transactions: make([]TransactionResult, 0, len(page.Transactions)),
		NextCursor:   page.NextCursor,
	}
	for _, tx := range page.Transactions {
		out.Transactions = append(out.Transactions, NewTransactionResult(tx))
	}
	return out
}

func NewBalanceResult(b *types.BalanceView) *BalanceResult {
	return &BalanceResult{Address: b.Address, Balance: decString(b.Balance), Version: b.Version}
}

func NewAccountResult(a *types.Account) *AccountResult {
	return &AccountResult{Address: a.Address, Balance: decString(a.Balance), Version: a.Version, CreatedAt: a.CreatedAt}
}

func NewHealthResult(h *types.HealthStatus) *HealthResult {
	return &HealthResult{
		Status:    h.Status,
		Store:     h.Store,
		LastSeq:   h.LastSeq,
		Timestamp: h.Timestamp,
		Uptime:    h.Uptime,
		Version:   h.Version,
		Error:     h.Error,
	}
}
