package redis_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/ritan/adapters/redis"
	"github.com/google/uuid"
)

// newStore connects to the Redis at RITAN_TEST_REDIS_ADDR or skips.
func newStore(t *testing.T) *redis.CounterStore {
	t.Helper()
	addr := os.Getenv("RITAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RITAN_TEST_REDIS_ADDR not set")
	}
	store, err := redis.NewCounterStore(context.Background(), redis.Options{
		Addr:      addr,
		KeyPrefix: "ritan-test:" + uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewCounterStore_EmptyAddr(t *testing.T) {
	if _, err := redis.NewCounterStore(context.Background(), redis.Options{}); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestCounterStore_IncrementIfBelow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	period := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 3; i++ {
		n, ok, err := store.IncrementIfBelow(ctx, "u1", period, 3)
		if err != nil || !ok || n != i {
			t.Fatalf("increment %d = %d, %v, %v", i, n, ok, err)
		}
	}
	n, ok, err := store.IncrementIfBelow(ctx, "u1", period, 3)
	if err != nil || ok || n != 3 {
		t.Errorf("at ceiling = %d, %v, %v", n, ok, err)
	}
	if got, _ := store.Get(ctx, "u1", period); got != 3 {
		t.Errorf("Get = %d, want 3", got)
	}
	if got, _ := store.Get(ctx, "nobody", period); got != 0 {
		t.Errorf("Get missing = %d, want 0", got)
	}
}

func TestCounterStore_ConcurrentAtLimitMinusOne(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	period := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	const ceiling = 20

	for i := 0; i < ceiling-1; i++ {
		store.IncrementIfBelow(ctx, "u1", period, ceiling)
	}

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := store.IncrementIfBelow(ctx, "u1", period, ceiling); err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 1 {
		t.Errorf("admitted = %d, want 1", admitted.Load())
	}
}
