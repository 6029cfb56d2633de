package db

import (
	"hash/fnv"
	"sort"
	"sync"
)

const lockStripes = 256

// stripedLock serializes conditional writes that share a key without a
// lock per key. Stripes are always taken in ascending order.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func stripeOf(key []byte) int {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % lockStripes)
}

// lock acquires the stripes covering keys and returns the matching unlock.
func (l *stripedLock) lock(keys [][]byte) func() {
	seen := make(map[int]struct{}, len(keys))
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		s := stripeOf(k)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		idx = append(idx, s)
	}
	sort.Ints(idx)
	for _, s := range idx {
		l.stripes[s].Lock()
	}
	return func() {
		for i := len(idx) - 1; i >= 0; i-- {
			l.stripes[idx[i]].Unlock()
		}
	}
}
