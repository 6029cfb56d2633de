//go:build rocksdb
// +build rocksdb

package db

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/linxGnu/grocksdb"
	"github.com/pkg/errors"
)

// RocksDBProvider implements ConditionalProvider for RocksDB
type RocksDBProvider struct {
	once  sync.Once
	db    *grocksdb.DB
	ro    *grocksdb.ReadOptions
	wo    *grocksdb.WriteOptions
	locks stripedLock
}

// NewRocksDBProvider creates a new RocksDB provider
func NewRocksDBProvider(directory string) (ConditionalProvider, error) {
	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	db, err := grocksdb.OpenDb(opts, directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open RocksDB: %w", err)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(true)

	return &RocksDBProvider{
		db: db,
		ro: grocksdb.NewDefaultReadOptions(),
		wo: wo,
	}, nil
}

// Get retrieves a value by key
func (p *RocksDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.Get(p.ro, key)
	if err != nil {
		return nil, errors.Wrapf(err, "rocksdb get %q", key)
	}
	defer value.Free()

	if !value.Exists() {
		return nil, nil // Return nil for not found, consistent with interface
	}

	// Copy the data since we're freeing the slice
	return copyBytes(value.Data()), nil
}

// GetBatch retrieves multiple values with MultiGet
func (p *RocksDBProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	values, err := p.db.MultiGet(p.ro, keys...)
	if err != nil {
		return nil, errors.Wrap(err, "rocksdb multiget")
	}
	defer values.Destroy()
	for i, v := range values {
		if v.Exists() {
			result[string(keys[i])] = copyBytes(v.Data())
		}
	}
	return result, nil
}

// Put stores a key-value pair
func (p *RocksDBProvider) Put(key, value []byte) error {
	return p.db.Put(p.wo, key, value)
}

// Delete removes a key-value pair
func (p *RocksDBProvider) Delete(key []byte) error {
	return p.db.Delete(p.wo, key)
}

// Has checks if a key exists
func (p *RocksDBProvider) Has(key []byte) (bool, error) {
	v, err := p.Get(key)
	return v != nil, err
}

// Close closes the database connection
func (p *RocksDBProvider) Close() error {
	// avoid double close when being used for multiple store
	p.once.Do(func() {
		p.ro.Destroy()
		p.wo.Destroy()
		p.db.Close()
	})
	return nil
}

// Batch creates a new batch for atomic operations
func (p *RocksDBProvider) Batch() DatabaseBatch {
	return &RocksDBBatch{
		batch:    grocksdb.NewWriteBatch(),
		provider: p,
	}
}

// IteratePrefix implements IterableProvider for RocksDB
func (p *RocksDBProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	it := p.db.NewIterator(p.ro)
	defer it.Close()

	for it.Seek(prefix); it.Valid(); it.Next() {
		k := it.Key()
		v := it.Value()
		if !bytes.HasPrefix(k.Data(), prefix) {
			k.Free()
			v.Free()
			break
		}
		kdata := copyBytes(k.Data())
		vdata := copyBytes(v.Data())
		k.Free()
		v.Free()
		if !fn(kdata, vdata) {
			break
		}
	}
	return it.Err()
}

// IterateReverse seeks to the upper bound and walks backwards
func (p *RocksDBProvider) IterateReverse(prefix, before []byte, fn func(key, value []byte) bool) error {
	it := p.db.NewIterator(p.ro)
	defer it.Close()

	if end := upperBound(prefix, before); end != nil {
		it.SeekForPrev(end)
		if it.Valid() && bytes.Equal(it.Key().Data(), end) {
			it.Prev()
		}
	} else {
		it.SeekToLast()
	}

	for ; it.Valid(); it.Prev() {
		k := it.Key()
		v := it.Value()
		if !bytes.HasPrefix(k.Data(), prefix) {
			k.Free()
			v.Free()
			break
		}
		kdata := copyBytes(k.Data())
		vdata := copyBytes(v.Data())
		k.Free()
		v.Free()
		if !fn(kdata, vdata) {
			break
		}
	}
	return it.Err()
}

// WriteIf runs read-compare-write under the stripes of the expected keys
func (p *RocksDBProvider) WriteIf(ctx context.Context, expect []Expectation, batch DatabaseBatch) error {
	rb, ok := batch.(*RocksDBBatch)
	if !ok {
		return fmt.Errorf("rocksdb: foreign batch type %T", batch)
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
	return rb.Write()
}

// RocksDBBatch implements DatabaseBatch for RocksDB
type RocksDBBatch struct {
	batch    *grocksdb.WriteBatch
	provider *RocksDBProvider
}

// Put adds a key-value pair to the batch
func (b *RocksDBBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

// Delete adds a deletion to the batch
func (b *RocksDBBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

// Write commits all operations in the batch
func (b *RocksDBBatch) Write() error {
	return b.provider.db.Write(b.provider.wo, b.batch)
}

// Reset clears the batch
func (b *RocksDBBatch) Reset() {
	b.batch.Clear()
}

// Close releases batch resources
func (b *RocksDBBatch) Close() error {
	b.batch.Destroy()
	return nil
}
