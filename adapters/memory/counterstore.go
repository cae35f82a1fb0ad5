package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/ports"
)

// counterShard is a single shard of the counter store.
type counterShard struct {
	mu     sync.Mutex
	counts map[string]int64
}

// CounterStore is a sharded in-memory implementation of ports.CounterStore.
// Uses sharding to reduce lock contention between tenants; the check and
// the increment for one tenant happen under a single shard lock.
type CounterStore struct {
	shards    []*counterShard
	numShards int
}

// NewCounterStore creates a counter store with numShards shards (default 32).
func NewCounterStore(numShards int) *CounterStore {
	if numShards <= 0 {
		numShards = 32
	}
	s := &CounterStore{
		shards:    make([]*counterShard, numShards),
		numShards: numShards,
	}
	for i := range s.shards {
		s.shards[i] = &counterShard{counts: make(map[string]int64)}
	}
	return s
}

func (s *CounterStore) key(userID string, periodStart time.Time) string {
	return userID + ":" + periodStart.UTC().Format("2006-01-02")
}

func (s *CounterStore) shard(key string) *counterShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// IncrementIfBelow adds one when the counter is below ceiling.
func (s *CounterStore) IncrementIfBelow(ctx context.Context, userID string, periodStart time.Time, ceiling int64) (int64, bool, error) {
	k := s.key(userID, periodStart)
	sh := s.shard(k)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	current := sh.counts[k]
	if !quota.Admits(current, ceiling) {
		return current, false, nil
	}
	current++
	sh.counts[k] = current
	return current, true, nil
}

// Get returns the counter value for a period.
func (s *CounterStore) Get(ctx context.Context, userID string, periodStart time.Time) (int64, error) {
	k := s.key(userID, periodStart)
	sh := s.shard(k)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.counts[k], nil
}

// Ensure interface compliance.
var _ ports.CounterStore = (*CounterStore)(nil)
