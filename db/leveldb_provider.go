package db

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBProvider implements ConditionalProvider for LevelDB
type LevelDBProvider struct {
	once  sync.Once
	db    *leveldb.DB
	locks stripedLock
}

// NewLevelDBProvider creates a new LevelDB provider
func NewLevelDBProvider(directory string) (*LevelDBProvider, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB: %w", err)
	}

	return &LevelDBProvider{db: db}, nil
}

// NewMemLevelDBProvider opens LevelDB over in-memory storage, used by
// tests and by `run --store=memory`.
func NewMemLevelDBProvider() (*LevelDBProvider, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory LevelDB: %w", err)
	}
	return &LevelDBProvider{db: db}, nil
}

// Get retrieves a value by key
func (p *LevelDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil // Return nil for not found, consistent with interface
		}
		return nil, errors.Wrapf(err, "leveldb get %q", key)
	}
	return value, nil
}

// GetBatch retrieves multiple values by keys in a single operation
func (p *LevelDBProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	// One snapshot so the values are mutually consistent
	snap, err := p.db.GetSnapshot()
	if err != nil {
		return nil, errors.Wrap(err, "leveldb snapshot")
	}
	defer snap.Release()

	for _, key := range keys {
		value, err := snap.Get(key, nil)
		if err != nil {
			if err != leveldb.ErrNotFound {
				return nil, errors.Wrapf(err, "leveldb get %q", key)
			}
			continue
		}
		result[string(key)] = value
	}

	return result, nil
}

// Put stores a key-value pair
func (p *LevelDBProvider) Put(key, value []byte) error {
	return p.db.Put(key, value, nil)
}

// Delete removes a key-value pair
func (p *LevelDBProvider) Delete(key []byte) error {
	return p.db.Delete(key, nil)
}

// Has checks if a key exists
func (p *LevelDBProvider) Has(key []byte) (bool, error) {
	return p.db.Has(key, nil)
}

// Close closes the database connection
func (p *LevelDBProvider) Close() error {
	// avoid double close when being used for multiple store
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

// Batch returns a new batch for atomic operations
func (p *LevelDBProvider) Batch() DatabaseBatch {
	return &LevelDBBatch{
		batch: new(leveldb.Batch),
		db:    p.db,
	}
}

// IteratePrefix iterates over all key-value pairs with the given prefix
func (p *LevelDBProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		if !callback(copyBytes(iter.Key()), copyBytes(iter.Value())) {
			break
		}
	}

	return iter.Error()
}

// IterateReverse walks the prefix range backwards from before
func (p *LevelDBProvider) IterateReverse(prefix, before []byte, callback func(key, value []byte) bool) error {
	rng := util.BytesPrefix(prefix)
	if before != nil && (rng.Limit == nil || bytes.Compare(before, rng.Limit) < 0) {
		rng.Limit = before
	}
	iter := p.db.NewIterator(rng, nil)
	defer iter.Release()

	for ok := iter.Last(); ok; ok = iter.Prev() {
		if !callback(copyBytes(iter.Key()), copyBytes(iter.Value())) {
			break
		}
	}

	return iter.Error()
}

// WriteIf runs read-compare-write under the stripes of the expected keys.
// Writers that only add brand new keys are not serialized.
func (p *LevelDBProvider) WriteIf(ctx context.Context, expect []Expectation, batch DatabaseBatch) error {
	lb, ok := batch.(*LevelDBBatch)
	if !ok {
		return fmt.Errorf("leveldb: foreign batch type %T", batch)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	keys := make([][]byte, len(expect))
	for i, e := range expect {
		keys[i] = e.Key
	}
	unlock := p.locks.lock(keys)
	defer unlock()

	for _, e := range expect {
		current, err := p.Get(e.Key)
		if err != nil {
			return err
		}
		if !matches(current, e.Value) {
			return ErrConditionFailed
		}
	}

	return lb.Write()
}

// LevelDBBatch implements DatabaseBatch for LevelDB
type LevelDBBatch struct {
	batch *leveldb.Batch
	db    *leveldb.DB
}

// Put adds a key-value pair to the batch
func (b *LevelDBBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

// Delete adds a deletion to the batch
func (b *LevelDBBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

// Write commits all operations in the batch
func (b *LevelDBBatch) Write() error {
	return errors.Wrap(b.db.Write(b.batch, nil), "leveldb write batch")
}

// Reset clears the batch
func (b *LevelDBBatch) Reset() {
	b.batch.Reset()
}

// Close releases batch resources
func (b *LevelDBBatch) Close() error {
	// LevelDB batch doesn't need explicit closing
	return nil
}

func matches(current, want []byte) bool {
	if want == nil {
		return current == nil
	}
	return current != nil && bytes.Equal(current, want)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
