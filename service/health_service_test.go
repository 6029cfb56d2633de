package service

import (
	"context"
	"testing"

	"github.com/mezonai/credits/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, DefaultHistoryConfig())
	f.mint(t, addr("alice"), "5")

	hs := NewHealthService(f.stores.Provider, f.stores.Txs, "memory")
	status, err := hs.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthServing, status.Status)
	assert.Equal(t, "memory", status.Store)
	assert.Equal(t, uint64(1), status.LastSeq)
	assert.Equal(t, Version, status.Version)
}

func TestHealthCheck_NoStore(t *testing.T) {
	hs := NewHealthService(nil, nil, "")
	status, err := hs.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthNotServing, status.Status)
	assert.NotEmpty(t, status.Error)
}

func TestHealthCheck_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHealthService(nil, nil, "").Check(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
