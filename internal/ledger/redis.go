package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout: selfdestruct:{messageId} is a hash with fields
// "viewed" ("0"/"1") and "created" (unix ms). The key carries the retention
// TTL, so Prune has nothing to do.
const (
	redisKeyPrefix = "selfdestruct:"
	fieldViewed    = "viewed"
	fieldCreated   = "created"
)

// markViewedScript flips viewed only when the record exists, in one round
// trip. It returns the Mark value: 0 missing, 1 flipped, 2 already viewed.
var markViewedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('HGET', KEYS[1], 'viewed') == '1' then
  return 2
end
redis.call('HSET', KEYS[1], 'viewed', '1')
return 1
`)

// Redis is a Ledger shared by every server pointed at the same Redis.
type Redis struct {
	rdb       *redis.Client
	retention time.Duration
}

// OpenRedis connects to addr and verifies the connection with PING.
func OpenRedis(ctx context.Context, addr string, retention time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ledger: redis %s: %w", addr, err)
	}
	return NewRedis(rdb, retention), nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, retention time.Duration) *Redis {
	return &Redis{rdb: rdb, retention: retention}
}

func (r *Redis) Register(ctx context.Context, id string) error {
	key := redisKeyPrefix + id
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, key, fieldViewed, "0")
		p.HSetNX(ctx, key, fieldCreated, strconv.FormatInt(time.Now().UnixMilli(), 10))
		if r.retention > 0 {
			p.Expire(ctx, key, r.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: register %s: %w", id, err)
	}
	return nil
}

func (r *Redis) IsViewed(ctx context.Context, id string) (bool, error) {
	v, err := r.rdb.HGet(ctx, redisKeyPrefix+id, fieldViewed).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: lookup %s: %w", id, err)
	}
	return v == "1", nil
}

func (r *Redis) MarkViewed(ctx context.Context, id string) (Mark, error) {
	n, err := markViewedScript.Run(ctx, r.rdb, []string{redisKeyPrefix + id}).Int()
	if err != nil {
		return MarkMissing, fmt.Errorf("ledger: mark %s: %w", id, err)
	}
	switch m := Mark(n); m {
	case MarkMissing, MarkFlipped, MarkAlready:
		return m, nil
	default:
		return MarkMissing, fmt.Errorf("ledger: mark %s: unexpected script result %d", id, n)
	}
}

// Prune is a no-op: Redis expires records on its own.
func (r *Redis) Prune(context.Context, time.Time) (int, error) { return 0, nil }

func (r *Redis) Close() error { return r.rdb.Close() }
