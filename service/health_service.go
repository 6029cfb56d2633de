package service

import (
	"context"
	"time"

	"github.com/mezonai/credits/db"
	"github.com/mezonai/credits/store"
	"github.com/mezonai/credits/types"
)

const Version = "1.0.0"

// healthProbeKey is read, never written, to prove the store answers
var healthProbeKey = []byte("health:probe")

type HealthServiceImpl struct {
	provider  db.DatabaseProvider
	txs       *store.GenericTxLog
	storeType string
	startedAt time.Time
}

func NewHealthService(provider db.DatabaseProvider, txs *store.GenericTxLog, storeType string) *HealthServiceImpl {
	return &HealthServiceImpl{provider: provider, txs: txs, storeType: storeType, startedAt: time.Now()}
}

func (hs *HealthServiceImpl) Check(ctx context.Context) (*types.HealthStatus, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := time.Now()
	resp := &types.HealthStatus{
		Status:    types.HealthServing,
		Store:     hs.storeType,
		Timestamp: now.Unix(),
		Uptime:    int64(now.Sub(hs.startedAt).Seconds()),
		Version:   Version,
	}
	if hs.txs != nil {
		resp.LastSeq = hs.txs.LastSeq()
	}

	if hs.provider == nil {
		resp.Status = types.HealthNotServing
		resp.Error = "store is not configured"
		return resp, nil
	}
	if _, err := hs.provider.Get(healthProbeKey); err != nil {
		resp.Status = types.HealthNotServing
		resp.Error = "store is not reachable"
	}
	return resp, nil
}
