package db

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/mezonai/credits/logx"
	"github.com/pkg/errors"
)

const createKVTableSQL = `
CREATE TABLE IF NOT EXISTS credits_kv (
	k BYTEA PRIMARY KEY,
	v BYTEA NOT NULL
);`

const (
	selectValueSQL   = `SELECT v FROM credits_kv WHERE k = $1`
	selectManySQL    = `SELECT k, v FROM credits_kv WHERE k = ANY($1)`
	upsertSQL        = `INSERT INTO credits_kv (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`
	deleteSQL        = `DELETE FROM credits_kv WHERE k = $1`
	advisoryLockSQL  = `SELECT pg_advisory_xact_lock($1)`
	rangeAscSQL      = `SELECT k, v FROM credits_kv WHERE k >= $1 AND k < $2 ORDER BY k ASC`
	rangeAscOpenSQL  = `SELECT k, v FROM credits_kv WHERE k >= $1 ORDER BY k ASC`
	rangeDescSQL     = `SELECT k, v FROM credits_kv WHERE k >= $1 AND k < $2 ORDER BY k DESC`
	rangeDescOpenSQL = `SELECT k, v FROM credits_kv WHERE k >= $1 ORDER BY k DESC`
)

// PostgresProvider implements ConditionalProvider on a single key/value
// table. Conditional writes hold transaction-scoped advisory locks on the
// expected keys, which also covers keys that do not exist yet.
type PostgresProvider struct {
	db  *sql.DB
	ctx context.Context
}

// NewPostgresProvider connects with retry and makes sure the table exists
func NewPostgresProvider(databaseURL string) (*PostgresProvider, error) {
	const maxRetries = 5
	const retryDelay = time.Second * 2

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			logx.Warn("POSTGRES", fmt.Sprintf("Retrying database connection (attempt %d/%d) after error: %v", attempt+1, maxRetries, lastErr))
			time.Sleep(retryDelay)
		}

		conn, err := sql.Open("postgres", databaseURL)
		if err != nil {
			lastErr = fmt.Errorf("failed to open database connection: %w", err)
			continue
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			lastErr = fmt.Errorf("failed to ping database: %w", err)
			continue
		}
		return NewPostgresProviderFromDB(conn)
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
}

// NewPostgresProviderFromDB wraps an existing pool
func NewPostgresProviderFromDB(conn *sql.DB) (*PostgresProvider, error) {
	ctx := context.Background()
	if _, err := conn.ExecContext(ctx, createKVTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create credits_kv table: %w", err)
	}
	return &PostgresProvider{db: conn, ctx: ctx}, nil
}

// Get retrieves a value by key
func (p *PostgresProvider) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(p.ctx, selectValueSQL, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "postgres get %q", key)
	}
	return value, nil
}

// GetBatch retrieves multiple values by keys in a single query
func (p *PostgresProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	rows, err := p.db.QueryContext(p.ctx, selectManySQL, pq.ByteaArray(keys))
	if err != nil {
		return nil, errors.Wrap(err, "postgres get batch")
	}
	defer rows.Close()
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, errors.Wrap(err, "postgres scan")
		}
		result[string(k)] = v
	}
	return result, rows.Err()
}

// Put stores a key-value pair
func (p *PostgresProvider) Put(key, value []byte) error {
	_, err := p.db.ExecContext(p.ctx, upsertSQL, key, value)
	return errors.Wrapf(err, "postgres put %q", key)
}

// Delete removes a key-value pair
func (p *PostgresProvider) Delete(key []byte) error {
	_, err := p.db.ExecContext(p.ctx, deleteSQL, key)
	return errors.Wrapf(err, "postgres delete %q", key)
}

// Has checks if a key exists
func (p *PostgresProvider) Has(key []byte) (bool, error) {
	v, err := p.Get(key)
	return v != nil, err
}

// Close closes the database connection
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}

// Batch returns a new batch for atomic operations
func (p *PostgresProvider) Batch() DatabaseBatch {
	return &PostgresBatch{provider: p}
}

// IteratePrefix iterates over all key-value pairs with the given prefix
func (p *PostgresProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	if end := prefixEnd(prefix); end != nil {
		return p.scan(fn, rangeAscSQL, prefix, end)
	}
	return p.scan(fn, rangeAscOpenSQL, prefix)
}

// IterateReverse walks keys with prefix below before, newest key first
func (p *PostgresProvider) IterateReverse(prefix, before []byte, fn func(key, value []byte) bool) error {
	if end := upperBound(prefix, before); end != nil {
		return p.scan(fn, rangeDescSQL, prefix, end)
	}
	return p.scan(fn, rangeDescOpenSQL, prefix)
}

func (p *PostgresProvider) scan(fn func(key, value []byte) bool, query string, args ...interface{}) error {
	rows, err := p.db.QueryContext(p.ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "postgres range query")
	}
	defer rows.Close()
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return errors.Wrap(err, "postgres scan")
		}
		if !fn(k, v) {
			return nil
		}
	}
	return rows.Err()
}

// WriteIf locks, compares and writes inside one SQL transaction
func (p *PostgresProvider) WriteIf(ctx context.Context, expect []Expectation, batch DatabaseBatch) (err error) {
	pb, ok := batch.(*PostgresBatch)
	if !ok {
		return fmt.Errorf("postgres: foreign batch type %T", batch)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "postgres begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, id := range advisoryLockIDs(expect) {
		if _, err = tx.ExecContext(ctx, advisoryLockSQL, id); err != nil {
			return errors.Wrap(err, "postgres advisory lock")
		}
	}

	for _, e := range expect {
		var current []byte
		scanErr := tx.QueryRowContext(ctx, selectValueSQL, e.Key).Scan(&current)
		if scanErr == sql.ErrNoRows {
			current = nil
		} else if scanErr != nil {
			err = errors.Wrapf(scanErr, "postgres get %q", e.Key)
			return err
		}
		if !matches(current, e.Value) {
			err = ErrConditionFailed
			return err
		}
	}

	if err = pb.apply(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "postgres commit")
	}
	return nil
}

// advisoryLockIDs maps keys to sorted unique lock ids so every writer takes
// them in the same order.
func advisoryLockIDs(expect []Expectation) []int64 {
	seen := make(map[int64]struct{}, len(expect))
	ids := make([]int64, 0, len(expect))
	for _, e := range expect {
		h := fnv.New64a()
		_, _ = h.Write(e.Key)
		id := int64(h.Sum64())
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type pgOp struct {
	key    []byte
	value  []byte
	delete bool
}

// PostgresBatch implements DatabaseBatch for PostgreSQL
type PostgresBatch struct {
	provider *PostgresProvider
	ops      []pgOp
}

// Put adds a key-value pair to the batch
func (b *PostgresBatch) Put(key, value []byte) {
	b.ops = append(b.ops, pgOp{key: key, value: value})
}

// Delete adds a deletion to the batch
func (b *PostgresBatch) Delete(key []byte) {
	b.ops = append(b.ops, pgOp{key: key, delete: true})
}

func (b *PostgresBatch) apply(ctx context.Context, tx *sql.Tx) error {
	for _, op := range b.ops {
		var err error
		if op.delete {
			_, err = tx.ExecContext(ctx, deleteSQL, op.key)
		} else {
			_, err = tx.ExecContext(ctx, upsertSQL, op.key, op.value)
		}
		if err != nil {
			return errors.Wrapf(err, "postgres write %q", op.key)
		}
	}
	return nil
}

// Write commits all operations in the batch
func (b *PostgresBatch) Write() (err error) {
	if len(b.ops) == 0 {
		return nil
	}
	ctx := b.provider.ctx
	tx, err := b.provider.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "postgres begin")
	}
	if err = b.apply(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "postgres commit")
}

// Reset clears the batch
func (b *PostgresBatch) Reset() {
	b.ops = b.ops[:0]
}

// Close releases batch resources
func (b *PostgresBatch) Close() error {
	b.ops = nil
	return nil
}
