package store

import (
	"context"
	"errors"
	"time"

	"github.com/mezonai/credits/db"
	lerrors "github.com/mezonai/credits/errors"
	"github.com/mezonai/credits/monitoring"
)

type kv struct {
	key   []byte
	value []byte
}

// WriteSet collects account and transaction mutations together with the
// exact stored bytes they were computed from. Commit applies all of them or
// none.
type WriteSet struct {
	tm     *db.DBTxManager
	now    int64
	puts   []kv
	expect []db.Expectation
}

func NewWriteSet(tm *db.DBTxManager) *WriteSet {
	return &WriteSet{tm: tm, now: time.Now().UnixMilli()}
}

// Now is the timestamp stamped on every record staged into this set.
func (ws *WriteSet) Now() int64 {
	return ws.now
}

// SetNow overrides the staging timestamp.
func (ws *WriteSet) SetNow(ms int64) {
	ws.now = ms
}

// Expect adds a precondition. A nil value requires the key to be absent.
func (ws *WriteSet) Expect(key, value []byte) {
	ws.expect = append(ws.expect, db.Expectation{Key: key, Value: value})
}

func (ws *WriteSet) Put(key, value []byte) {
	ws.puts = append(ws.puts, kv{key: key, value: value})
}

func (ws *WriteSet) Len() int {
	return len(ws.puts)
}

// Commit writes the set. A failed precondition is reported as a conflict.
func (ws *WriteSet) Commit(ctx context.Context) error {
	if len(ws.puts) == 0 {
		return nil
	}
	err := ws.tm.WithConditionalBatch(ctx, func(batch db.DatabaseBatch) ([]db.Expectation, error) {
		for _, p := range ws.puts {
			batch.Put(p.key, p.value)
		}
		return ws.expect, nil
	})
	if errors.Is(err, db.ErrConditionFailed) {
		monitoring.IncreaseCASConflict()
		return lerrors.ErrConflict
	}
	return err
}
