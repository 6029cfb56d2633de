package db

import (
	"context"
	"errors"
)

// ErrConditionFailed is returned by WriteIf when at least one expectation
// did not hold. Nothing from the batch has been written.
var ErrConditionFailed = errors.New("db: write condition failed")

// DatabaseProvider abstracts the low-level database operations
// This interface allows stores to work with different database backends
// without knowing the specific implementation details
type DatabaseProvider interface {
	// Get retrieves a value by key, nil when absent
	Get(key []byte) ([]byte, error)

	// GetBatch retrieves multiple values by keys in a single operation.
	// Missing keys are left out of the result.
	GetBatch(keys [][]byte) (map[string][]byte, error)

	// Put stores a key-value pair
	Put(key, value []byte) error

	// Delete removes a key-value pair
	Delete(key []byte) error

	// Has checks if a key exists
	Has(key []byte) (bool, error)

	// Close closes the database connection
	Close() error

	// Batch returns a new batch for atomic operations
	Batch() DatabaseBatch
}

// IterableProvider extends DatabaseProvider with iteration capabilities
type IterableProvider interface {
	DatabaseProvider

	// IteratePrefix iterates over all key-value pairs with the given prefix
	// in ascending key order. The callback function should return false to
	// stop iteration
	IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error

	// IterateReverse walks keys with the given prefix in descending order,
	// starting strictly below before (or at the last key when before is nil)
	IterateReverse(prefix, before []byte, callback func(key, value []byte) bool) error
}

// Expectation is a precondition on one key. A nil Value means the key must
// be absent; otherwise the stored bytes must equal Value exactly.
type Expectation struct {
	Key   []byte
	Value []byte
}

// ConditionalProvider can apply a batch only if a set of expectations holds,
// atomically with respect to other WriteIf calls on the same keys.
type ConditionalProvider interface {
	IterableProvider

	// WriteIf checks every expectation and writes batch, or writes nothing
	// and returns ErrConditionFailed. batch must come from this provider.
	WriteIf(ctx context.Context, expect []Expectation, batch DatabaseBatch) error
}

// DatabaseBatch provides atomic batch operations
type DatabaseBatch interface {
	// Put adds a key-value pair to the batch
	Put(key, value []byte)

	// Delete adds a deletion to the batch
	Delete(key []byte)

	// Write commits all operations in the batch
	Write() error

	// Reset clears the batch
	Reset()

	// Close releases batch resources
	Close() error
}

// prefixEnd returns the smallest key greater than every key with prefix, or
// nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// upperBound is the exclusive upper key for a reverse scan.
func upperBound(prefix, before []byte) []byte {
	if before != nil {
		return before
	}
	return prefixEnd(prefix)
}
