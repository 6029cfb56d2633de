package db

import (
	"context"
	"fmt"

	"github.com/mezonai/credits/logx"
)

// DBTxManager manages database transactions (batches) for atomic operations
// across multiple stores. It uses the shared ConditionalProvider.
type DBTxManager struct {
	provider ConditionalProvider
}

// NewDBTxManager creates a new transaction manager with the given provider
func NewDBTxManager(provider ConditionalProvider) *DBTxManager {
	return &DBTxManager{provider: provider}
}

// WithBatch executes the given function within a batch context.
// If the function returns nil, the batch is committed; otherwise, it's discarded.
func (tm *DBTxManager) WithBatch(fn func(batch DatabaseBatch) error) error {
	batch := tm.provider.Batch()
	defer closeBatch(batch)

	if err := fn(batch); err != nil {
		batch.Reset()
		return fmt.Errorf("transaction failed: %w", err)
	}

	if err := batch.Write(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

// WithConditionalBatch is WithBatch guarded by expectations. fn stages both
// the writes and the preconditions; ErrConditionFailed is returned unwrapped
// by the provider and stays matchable with errors.Is.
func (tm *DBTxManager) WithConditionalBatch(ctx context.Context, fn func(batch DatabaseBatch) ([]Expectation, error)) error {
	batch := tm.provider.Batch()
	defer closeBatch(batch)

	expect, err := fn(batch)
	if err != nil {
		batch.Reset()
		return fmt.Errorf("transaction failed: %w", err)
	}

	if err := tm.provider.WriteIf(ctx, expect, batch); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

func closeBatch(batch DatabaseBatch) {
	if err := batch.Close(); err != nil {
		logx.Error("TX_MANAGER", "Failed to close batch:", err)
	}
}
