package db

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runProviderSuite exercises the behaviour every ConditionalProvider must share.
func runProviderSuite(t *testing.T, newProvider func(t *testing.T) ConditionalProvider) {
	t.Run("get put delete", func(t *testing.T) {
		p := newProvider(t)

		v, err := p.Get([]byte("missing"))
		require.NoError(t, err)
		assert.Nil(t, v)

		require.NoError(t, p.Put([]byte("k1"), []byte("v1")))
		v, err = p.Get([]byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), v)

		ok, err := p.Has([]byte("k1"))
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, p.Delete([]byte("k1")))
		ok, err = p.Has([]byte("k1"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("get batch skips missing", func(t *testing.T) {
		p := newProvider(t)
		require.NoError(t, p.Put([]byte("a"), []byte("1")))
		require.NoError(t, p.Put([]byte("b"), []byte("2")))

		got, err := p.GetBatch([][]byte{[]byte("a"), []byte("b"), []byte("c")})
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, got)
	})

	t.Run("prefix iteration both directions", func(t *testing.T) {
		p := newProvider(t)
		for i := 1; i <= 5; i++ {
			require.NoError(t, p.Put([]byte(fmt.Sprintf("idx:%02d", i)), []byte{byte(i)}))
		}
		require.NoError(t, p.Put([]byte("idy:01"), []byte("other")))
		require.NoError(t, p.Put([]byte("ida"), []byte("other")))

		var asc []string
		require.NoError(t, p.IteratePrefix([]byte("idx:"), func(k, _ []byte) bool {
			asc = append(asc, string(k))
			return true
		}))
		assert.Equal(t, []string{"idx:01", "idx:02", "idx:03", "idx:04", "idx:05"}, asc)

		var desc []string
		require.NoError(t, p.IterateReverse([]byte("idx:"), nil, func(k, _ []byte) bool {
			desc = append(desc, string(k))
			return true
		}))
		assert.Equal(t, []string{"idx:05", "idx:04", "idx:03", "idx:02", "idx:01"}, desc)

		var below []string
		require.NoError(t, p.IterateReverse([]byte("idx:"), []byte("idx:04"), func(k, _ []byte) bool {
			below = append(below, string(k))
			return len(below) < 2
		}))
		assert.Equal(t, []string{"idx:03", "idx:02"}, below)
	})

	t.Run("write if succeeds when expectations hold", func(t *testing.T) {
		p := newProvider(t)
		require.NoError(t, p.Put([]byte("acct"), []byte("v1")))

		b := p.Batch()
		b.Put([]byte("acct"), []byte("v2"))
		b.Put([]byte("fresh"), []byte("x"))
		err := p.WriteIf(context.Background(), []Expectation{
			{Key: []byte("acct"), Value: []byte("v1")},
			{Key: []byte("fresh")},
		}, b)
		require.NoError(t, err)

		v, _ := p.Get([]byte("acct"))
		assert.Equal(t, []byte("v2"), v)
		v, _ = p.Get([]byte("fresh"))
		assert.Equal(t, []byte("x"), v)
	})

	t.Run("write if writes nothing on mismatch", func(t *testing.T) {
		p := newProvider(t)
		require.NoError(t, p.Put([]byte("acct"), []byte("v1")))
		require.NoError(t, p.Put([]byte("taken"), []byte("y")))

		b := p.Batch()
		b.Put([]byte("acct"), []byte("v2"))
		b.Put([]byte("taken"), []byte("z"))
		err := p.WriteIf(context.Background(), []Expectation{
			{Key: []byte("acct"), Value: []byte("v1")},
			{Key: []byte("taken")},
		}, b)
		assert.True(t, stderrors.Is(err, ErrConditionFailed))

		v, _ := p.Get([]byte("acct"))
		assert.Equal(t, []byte("v1"), v)
		v, _ = p.Get([]byte("taken"))
		assert.Equal(t, []byte("y"), v)
	})

	t.Run("concurrent write if admits one winner per version", func(t *testing.T) {
		p := newProvider(t)
		require.NoError(t, p.Put([]byte("counter"), []byte("0")))

		const workers = 16
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				b := p.Batch()
				b.Put([]byte("counter"), []byte(fmt.Sprintf("w%d", i)))
				err := p.WriteIf(context.Background(), []Expectation{{Key: []byte("counter"), Value: []byte("0")}}, b)
				if err == nil {
					atomic.AddInt32(&wins, 1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})
}
