package coordinator

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"dexarb/internal/metrics"
)

// extendScript performs a compare-and-expire: it only refreshes the
// lease TTL if this holder still owns it, so a follower whose lease
// already expired and was re-acquired elsewhere can never extend
// someone else's lease (spec.md §9 "not a naive extend").
const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// LeaderElector manages a single distributed leader lease key (spec.md
// §6: "setIfAbsent(key, value, ttlMillis) + Lua-equivalent
// compare-and-expire for the leader lease").
type LeaderElector struct {
	client   *redis.Client
	key      string
	holderID string
	ttl      time.Duration
}

// NewLeaderElector constructs a LeaderElector. holderID must be unique
// per coordinator process (e.g. hostname+pid).
func NewLeaderElector(client *redis.Client, key, holderID string, ttl time.Duration) *LeaderElector {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &LeaderElector{client: client, key: key, holderID: holderID, ttl: ttl}
}

// TryAcquire attempts to become leader via SET NX PX; returns true if
// this call won the lease (spec.md §9).
func (e *LeaderElector) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.key, e.holderID, e.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		metrics.LeaderStatus.Set(1)
	}
	return ok, nil
}

// Extend refreshes the lease TTL only if this holder still owns it
// (Lua compare-and-expire, not a naive PEXPIRE). Returns false if the
// lease was lost (expired and possibly re-acquired by another
// process).
func (e *LeaderElector) Extend(ctx context.Context) (bool, error) {
	res, err := e.client.Eval(ctx, extendScript, []string{e.key}, e.holderID, e.ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	held := toInt64(res) == 1
	if held {
		metrics.LeaderStatus.Set(1)
	} else {
		metrics.LeaderStatus.Set(0)
	}
	return held, nil
}

// Release gives up the lease if still held, allowing a faster failover
// than waiting out the TTL (graceful shutdown path).
func (e *LeaderElector) Release(ctx context.Context) error {
	_, err := e.client.Eval(ctx, releaseScript, []string{e.key}, e.holderID).Result()
	metrics.LeaderStatus.Set(0)
	return err
}

// IsLeader reports whether this holder currently owns the lease key,
// without attempting to acquire or extend it.
func (e *LeaderElector) IsLeader(ctx context.Context) (bool, error) {
	v, err := e.client.Get(ctx, e.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == e.holderID, nil
}

// RunLeaseLoop periodically attempts acquire-or-extend until ctx is
// cancelled, matching the teacher's long-lived-task convention (one
// goroutine, ticker-driven). isLeader reports the last-observed result
// on every tick via the returned channel.
func (e *LeaderElector) RunLeaseLoop(ctx context.Context, interval time.Duration) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			held, _ := e.Extend(ctx)
			if !held {
				held, _ = e.TryAcquire(ctx)
			}
			select {
			case out <- held:
			default:
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
