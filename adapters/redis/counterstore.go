// Package redis provides a Redis-backed admission counter so several
// gateway processes can share one per-tenant ceiling.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/ritan/ports"
	goredis "github.com/redis/go-redis/v9"
)

// incrementIfBelowScript adds one to KEYS[1] only while it is below
// ARGV[1], and sets the expiry (ARGV[2] ms) on first write.
// Returns {count, incremented}.
const incrementIfBelowScript = `
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local ceiling = tonumber(ARGV[1])
if current >= ceiling then
  return {current, 0}
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {current, 1}
`

// Options configures the Redis connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// CounterStore implements ports.CounterStore with a Lua script, which
// Redis runs atomically.
type CounterStore struct {
	client *goredis.Client
	script *goredis.Script
	prefix string
}

// NewCounterStore connects to Redis and verifies the connection.
func NewCounterStore(ctx context.Context, opts Options) (*CounterStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is empty")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewCounterStoreWithClient(client, opts.KeyPrefix), nil
}

// NewCounterStoreWithClient wraps an existing client.
func NewCounterStoreWithClient(client *goredis.Client, prefix string) *CounterStore {
	if prefix == "" {
		prefix = "ritan:admission"
	}
	return &CounterStore{
		client: client,
		script: goredis.NewScript(incrementIfBelowScript),
		prefix: prefix,
	}
}

func (s *CounterStore) key(userID string, periodStart time.Time) string {
	return s.prefix + ":" + periodStart.UTC().Format("2006-01-02") + ":" + userID
}

// ttlFor keeps a counter a day past the end of its calendar month.
func ttlFor(periodStart time.Time) time.Duration {
	end := periodStart.UTC().AddDate(0, 1, 1)
	ttl := time.Until(end)
	if ttl < time.Hour {
		ttl = time.Hour
	}
	return ttl
}

// IncrementIfBelow adds one when the counter is below ceiling.
func (s *CounterStore) IncrementIfBelow(ctx context.Context, userID string, periodStart time.Time, ceiling int64) (int64, bool, error) {
	res, err := s.script.Run(
		ctx,
		s.client,
		[]string{s.key(userID, periodStart)},
		ceiling,
		int64(ttlFor(periodStart)/time.Millisecond),
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("admission script: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("admission script: unexpected reply %v", res)
	}
	return res[0], res[1] == 1, nil
}

// Get returns the counter value for a period.
func (s *CounterStore) Get(ctx context.Context, userID string, periodStart time.Time) (int64, error) {
	n, err := s.client.Get(ctx, s.key(userID, periodStart)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return n, err
}

// Ping checks the connection. Used by the readiness probe.
func (s *CounterStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *CounterStore) Close() error {
	return s.client.Close()
}

// Ensure interface compliance.
var _ ports.CounterStore = (*CounterStore)(nil)
