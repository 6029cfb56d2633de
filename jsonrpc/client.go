package jsonrpc

import (
	"context"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
)

// Client calls a ledger node over JSON-RPC/HTTP. Errors carrying ledger
// data come back as *errors.LedgerError.
type Client struct {
	cli *jrpc2.Client
}

func Dial(url string) *Client {
	return NewClient(jrpc2.NewClient(jhttp.NewChannel(url, nil), nil))
}

func NewClient(cli *jrpc2.Client) *Client {
	return &Client{cli: cli}
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	return FromRPCError(c.cli.CallResult(ctx, method, params, result))
}

func (c *Client) Transfer(ctx context.Context, p TransferParams) (*ReceiptResult, error) {
	var res ReceiptResult
	if err := c.call(ctx, MethodLedgerTransfer, p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Mint(ctx context.Context, p MintParams) (*ReceiptResult, error) {
	var res ReceiptResult
	if err := c.call(ctx, MethodLedgerMint, p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (*BalanceResult, error) {
	var res BalanceResult
	if err := c.call(ctx, MethodLedgerGetBalance, AddressParams{Address: address}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetHistory(ctx context.Context, p HistoryParams) (*HistoryResult, error) {
	var res HistoryResult
	if err := c.call(ctx, MethodLedgerGetHistory, p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*TransactionResult, error) {
	var res TransactionResult
	if err := c.call(ctx, MethodLedgerGetTransaction, TransactionParams{ID: id}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) OpenAccount(ctx context.Context, address string) (*AccountResult, error) {
	var res AccountResult
	if err := c.call(ctx, MethodAccountOpen, AddressParams{Address: address}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResult, error) {
	var res HealthResult
	if err := c.call(ctx, MethodHealthCheck, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}
