package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

// peakScript stores max(current, candidate) server-side so concurrent
// callers cannot lose a higher mark to a read-then-write race.
var peakScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local candidate = tonumber(ARGV[1])
if candidate > current then
	redis.call('SET', KEYS[1], candidate)
	if tonumber(ARGV[2]) > 0 then
		redis.call('EXPIRE', KEYS[1], ARGV[2])
	end
	return candidate
end
return current
`)

// RedisLedger implements Ledger on Redis. Counters are centi-unit integers
// so INCRBY gives an atomic fixed-point increment; keys expire after the
// window closes plus a retention margin, which is the best-effort sweep.
//
// Redis keeps only live counters, so History is not served here; pair this
// ledger with a history-capable backend when running the recommendation
// engine.
type RedisLedger struct {
	client    redis.UniversalClient
	keyPrefix string
	retention time.Duration
}

// RedisLedgerOption configures a RedisLedger.
type RedisLedgerOption func(*RedisLedger)

// WithKeyPrefix namespaces ledger keys, default "quota".
func WithKeyPrefix(prefix string) RedisLedgerOption {
	return func(rl *RedisLedger) {
		if prefix != "" {
			rl.keyPrefix = prefix
		}
	}
}

// WithRedisRetention sets how long counters outlive their window close.
func WithRedisRetention(retention time.Duration) RedisLedgerOption {
	return func(rl *RedisLedger) {
		if retention > 0 {
			rl.retention = retention
		}
	}
}

// NewRedisLedger creates a Redis-backed ledger.
func NewRedisLedger(client redis.UniversalClient, opts ...RedisLedgerOption) *RedisLedger {
	rl := &RedisLedger{
		client:    client,
		keyPrefix: "quota",
		retention: 35 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

func (rl *RedisLedger) usageKey(key Key) string {
	return rl.keyPrefix + ":usage:" + key.String()
}

func (rl *RedisLedger) peakKey(key Key) string {
	return rl.keyPrefix + ":peak:" + key.String()
}

// ttlFor keeps the key alive until the window closes plus the retention
// margin, measured from now so late increments never shorten the life.
func (rl *RedisLedger) ttlFor(key Key) time.Duration {
	ttl := time.Until(key.Window.End) + rl.retention
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

// Increment atomically adds delta via INCRBY and returns the new total.
func (rl *RedisLedger) Increment(ctx context.Context, key Key, delta Quantity) (Quantity, error) {
	if delta < 0 {
		return 0, ErrNegativeDelta
	}

	pipe := rl.client.TxPipeline()
	incr := pipe.IncrBy(ctx, rl.usageKey(key), int64(delta))
	pipe.Expire(ctx, rl.usageKey(key), rl.ttlFor(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Join(ErrStorageUnavailable, err)
	}

	return Quantity(incr.Val()), nil
}

// Peek returns the current consumption; a missing key reads as zero.
func (rl *RedisLedger) Peek(ctx context.Context, key Key) (Quantity, error) {
	val, err := rl.client.Get(ctx, rl.usageKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, errors.Join(ErrStorageUnavailable, err)
	}
	return Quantity(val), nil
}

// SetPeakConcurrent stores max(current, candidate) via a Lua script.
func (rl *RedisLedger) SetPeakConcurrent(ctx context.Context, key Key, candidate int64) (int64, error) {
	ttlSeconds := int64(rl.ttlFor(key) / time.Second)
	val, err := peakScript.Run(ctx, rl.client, []string{rl.peakKey(key)}, candidate, ttlSeconds).Int64()
	if err != nil {
		return 0, errors.Join(ErrStorageUnavailable, err)
	}
	return val, nil
}

// History is not supported on Redis; closed counters expire away.
func (rl *RedisLedger) History(ctx context.Context, subjectID uuid.UUID, res plan.Resource, t period.Type, since time.Time) ([]Counter, error) {
	return nil, ErrHistoryUnavailable
}
