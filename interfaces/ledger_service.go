package interfaces

import (
	"context"

	"github.com/mezonai/credits/types"
)

// LedgerService is the request/response boundary used by every transport
type LedgerService interface {
	Transfer(ctx context.Context, req *types.TransferRequest) (*types.Receipt, error)
	Mint(ctx context.Context, req *types.MintRequest) (*types.Receipt, error)
	GetBalance(ctx context.Context, address string) (*types.BalanceView, error)
	GetHistory(ctx context.Context, req *types.HistoryRequest) (*types.TxPage, error)
	GetTransaction(ctx context.Context, id string) (*types.Transaction, error)
	OpenAccount(ctx context.Context, address string) (*types.Account, error)
}
