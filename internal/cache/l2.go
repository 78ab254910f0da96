package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// L2 is the distributed KV contract the Hierarchical Cache promotes
// from (spec.md §6: "Simple get(key)/set(key, value, ttlMillis?)"). Kept
// as an interface, per spec.md §1 ("Concrete choice of distributed KV...
// replaced by the abstract contracts"), so a Redis-backed implementation
// and a test fake can both satisfy it.
type L2 interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ErrL2Miss is returned by an L2 implementation's Get when the key does
// not exist; distinguished from a transport error so the cache can tell
// "miss" from "backend unreachable" while still treating both as a
// cache-level miss to the caller (spec.md §4.4 "Failure semantics").
var ErrL2Miss = redis.Nil

// RedisL2 is the production L2 backed by go-redis (teacher go.mod;
// conventions grounded on the pack's ethereum-go-ethereum/ethdb/redisdb
// Get/Set usage). Every call is issued under a per-call deadline
// (spec.md §5 "default 200ms").
type RedisL2 struct {
	Client   *redis.Client
	Deadline time.Duration
}

// NewRedisL2 constructs a RedisL2 with the spec's default 200ms deadline.
func NewRedisL2(client *redis.Client) *RedisL2 {
	return &RedisL2{Client: client, Deadline: 200 * time.Millisecond}
}

func (r *RedisL2) Get(ctx context.Context, key string) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, r.Deadline)
	defer cancel()
	val, err := r.Client.Get(cctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisL2) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, r.Deadline)
	defer cancel()
	return r.Client.Set(cctx, key, value, ttl).Err()
}
