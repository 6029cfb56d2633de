package cmd

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/mezonai/credits/config"
	"github.com/mezonai/credits/jsonrpc"
	"github.com/mezonai/credits/retry"
	"github.com/mezonai/credits/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisAddr = "2ZragYd1u8ydRHnK9ge9iVwdw4z7P7gnxuxZVb9jDrDr"

func testNode(t *testing.T) *node {
	t.Helper()
	cfg := &config.LedgerConfig{
		Node:    config.NodeConfig{JSONRPCAddr: "127.0.0.1:0", RESTAddr: "127.0.0.1:0"},
		Store:   store.StoreConfig{Type: store.MemoryStoreType},
		Genesis: []config.GenesisAccount{{Address: genesisAddr, Amount: "1000"}},
	}
	def := retry.DefaultPolicy()
	engineCfg := &config.EngineConfig{MaxRetries: def.MaxAttempts, BaseBackoffMs: 1, MaxBackoffMs: 10}
	historyCfg := &config.HistoryConfig{DefaultPageSize: 20, MaxPageSize: 100}

	n, err := buildNode(cfg, engineCfg, historyCfg)
	require.NoError(t, err)
	t.Cleanup(n.stores.Close)
	return n
}

func TestApplyGenesisIsIdempotent(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()

	require.NoError(t, n.applyGenesis(ctx))
	require.NoError(t, n.applyGenesis(ctx))

	bal, err := n.ledger.GetBalance(ctx, genesisAddr)
	require.NoError(t, err)
	assert.Equal(t, "1000", bal.Balance.Dec())
	assert.Equal(t, uint64(1), n.stores.Txs.LastSeq())
}

func TestClientAgainstNode(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()
	require.NoError(t, n.applyGenesis(ctx))

	ts := httptest.NewServer(n.jsonrpc.Handler())
	defer ts.Close()
	client := jsonrpc.Dial(ts.URL)
	defer client.Close()

	receiver := "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	receipt, err := client.Transfer(ctx, jsonrpc.TransferParams{
		Sender:         genesisAddr,
		Receiver:       receiver,
		Amount:         normalizeAmount("1_00"),
		IdempotencyKey: "cli-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "900", receipt.SenderBalance)

	bal, err := client.GetBalance(ctx, receiver)
	require.NoError(t, err)
	assert.Equal(t, "100", bal.Balance)
}

func TestNormalizeAmount(t *testing.T) {
	assert.Equal(t, "1000000", normalizeAmount("1_000_000"))
	assert.Equal(t, "42", normalizeAmount("42"))
}
