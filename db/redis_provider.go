package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/mezonai/credits/logx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// keyIndex is a sorted set holding every key written through the provider,
// all with score 0, so prefix scans can use lexicographic range queries.
const keyIndex = "credits:__keys"

const scanPageSize = 256

// RedisProvider implements ConditionalProvider for Redis
type RedisProvider struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisProvider creates a new Redis provider. address is either host:port
// or a redis:// URL carrying the DB number and credentials.
func NewRedisProvider(address string) (*RedisProvider, error) {
	var opts *redis.Options
	if strings.HasPrefix(address, "redis://") || strings.HasPrefix(address, "rediss://") {
		parsed, err := redis.ParseURL(address)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: address}
	}
	client := redis.NewClient(opts)

	ctx := context.Background()

	// Test connection
	_, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisProvider{
		client: client,
		ctx:    ctx,
	}, nil
}

// Get retrieves a value by key
func (p *RedisProvider) Get(key []byte) ([]byte, error) {
	value, err := p.client.Get(p.ctx, string(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Return nil for not found, consistent with interface
		}
		return nil, errors.Wrapf(err, "redis get %q", key)
	}
	return value, nil
}

// GetBatch retrieves multiple values with one MGET
func (p *RedisProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	strKeys := make([]string, len(keys))
	for i, k := range keys {
		strKeys[i] = string(k)
	}
	values, err := p.client.MGet(p.ctx, strKeys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis mget")
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			result[strKeys[i]] = []byte(s)
		}
	}
	return result, nil
}

// Put stores a key-value pair
func (p *RedisProvider) Put(key, value []byte) error {
	logx.Debug("REDIS", "Put key:", string(key), " value length:", len(value))
	b := p.Batch()
	b.Put(key, value)
	return b.Write()
}

// Delete removes a key-value pair
func (p *RedisProvider) Delete(key []byte) error {
	b := p.Batch()
	b.Delete(key)
	return b.Write()
}

// Has checks if a key exists
func (p *RedisProvider) Has(key []byte) (bool, error) {
	count, err := p.client.Exists(p.ctx, string(key)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis exists %q", key)
	}
	return count > 0, nil
}

// Close closes the database connection
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// Batch returns a new batch for atomic operations
func (p *RedisProvider) Batch() DatabaseBatch {
	return &RedisBatch{
		client: p.client,
		ctx:    p.ctx,
	}
}

// IteratePrefix walks the key index with ZRANGEBYLEX
func (p *RedisProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	lo := "[" + string(prefix)
	hi := "+"
	if end := prefixEnd(prefix); end != nil {
		hi = "(" + string(end)
	}
	var offset int64
	for {
		keys, err := p.client.ZRangeByLex(p.ctx, keyIndex, &redis.ZRangeBy{
			Min: lo, Max: hi, Offset: offset, Count: scanPageSize,
		}).Result()
		if err != nil {
			return errors.Wrap(err, "redis zrangebylex")
		}
		if cont, err := p.visit(keys, fn); err != nil || !cont {
			return err
		}
		if len(keys) < scanPageSize {
			return nil
		}
		offset += int64(len(keys))
	}
}

// IterateReverse walks the key index with ZREVRANGEBYLEX
func (p *RedisProvider) IterateReverse(prefix, before []byte, fn func(key, value []byte) bool) error {
	lo := "[" + string(prefix)
	hi := "+"
	if end := upperBound(prefix, before); end != nil {
		hi = "(" + string(end)
	}
	var offset int64
	for {
		keys, err := p.client.ZRevRangeByLex(p.ctx, keyIndex, &redis.ZRangeBy{
			Min: lo, Max: hi, Offset: offset, Count: scanPageSize,
		}).Result()
		if err != nil {
			return errors.Wrap(err, "redis zrevrangebylex")
		}
		if cont, err := p.visit(keys, fn); err != nil || !cont {
			return err
		}
		if len(keys) < scanPageSize {
			return nil
		}
		offset += int64(len(keys))
	}
}

func (p *RedisProvider) visit(keys []string, fn func(key, value []byte) bool) (bool, error) {
	if len(keys) == 0 {
		return true, nil
	}
	values, err := p.client.MGet(p.ctx, keys...).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis mget")
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if !fn([]byte(keys[i]), []byte(s)) {
			return false, nil
		}
	}
	return true, nil
}

// WriteIf uses WATCH on the expected keys and applies the batch in
// MULTI/EXEC. A concurrent change to a watched key aborts EXEC.
func (p *RedisProvider) WriteIf(ctx context.Context, expect []Expectation, batch DatabaseBatch) error {
	rb, ok := batch.(*RedisBatch)
	if !ok {
		return fmt.Errorf("redis: foreign batch type %T", batch)
	}
	keys := make([]string, len(expect))
	for i, e := range expect {
		keys[i] = string(e.Key)
	}

	txf := func(tx *redis.Tx) error {
		for _, e := range expect {
			current, err := tx.Get(ctx, string(e.Key)).Bytes()
			if err == redis.Nil {
				current = nil
			} else if err != nil {
				return errors.Wrapf(err, "redis get %q", e.Key)
			}
			if !matches(current, e.Value) {
				return ErrConditionFailed
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			rb.apply(ctx, pipe)
			return nil
		})
		return err
	}

	err := p.client.Watch(ctx, txf, keys...)
	if err == redis.TxFailedErr {
		return ErrConditionFailed
	}
	return err
}

type redisOp struct {
	key    string
	value  []byte
	delete bool
}

// RedisBatch implements DatabaseBatch for Redis. Operations are recorded and
// replayed onto a transactional pipeline on Write.
type RedisBatch struct {
	client *redis.Client
	ctx    context.Context
	ops    []redisOp
}

// Put adds a key-value pair to the batch
func (b *RedisBatch) Put(key, value []byte) {
	b.ops = append(b.ops, redisOp{key: string(key), value: value})
}

// Delete adds a deletion to the batch
func (b *RedisBatch) Delete(key []byte) {
	b.ops = append(b.ops, redisOp{key: string(key), delete: true})
}

func (b *RedisBatch) apply(ctx context.Context, pipe redis.Pipeliner) {
	for _, op := range b.ops {
		if op.delete {
			pipe.Del(ctx, op.key)
			pipe.ZRem(ctx, keyIndex, op.key)
			continue
		}
		pipe.Set(ctx, op.key, op.value, 0)
		pipe.ZAdd(ctx, keyIndex, redis.Z{Score: 0, Member: op.key})
	}
}

// Write commits all operations in the batch
func (b *RedisBatch) Write() error {
	if len(b.ops) == 0 {
		return nil
	}
	_, err := b.client.TxPipelined(b.ctx, func(pipe redis.Pipeliner) error {
		b.apply(b.ctx, pipe)
		return nil
	})
	return errors.Wrap(err, "redis write batch")
}

// Reset clears the batch
func (b *RedisBatch) Reset() {
	b.ops = b.ops[:0]
}

// Close releases batch resources
func (b *RedisBatch) Close() error {
	b.ops = nil
	return nil
}
