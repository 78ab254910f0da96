package cache

import (
	"context"
	"errors"
	"time"

	"dexarb/internal/metrics"
)

// Cache is the Hierarchical Cache (C5): L1 (always present), L2
// (required), and L3 (optional, nil when disabled). Get probes L1 then
// L2 with promote-on-hit; Set writes L1 synchronously and schedules L2
// (and L3, if present) writes as fire-and-forget (spec.md §4.4).
type Cache struct {
	L1 *L1
	L2 L2
	L3 L3

	// asyncWrites runs fire-and-forget L2/L3 writes; bounded so a burst
	// of Set calls cannot spawn unbounded goroutines (spec.md §9
	// "background work submitted through a bounded worker pool so
	// shutdown can drain it").
	asyncWrites chan func()
	stop        chan struct{}
}

// NewCache constructs a Cache. workers bounds the fire-and-forget write
// pool size.
func NewCache(l1Capacity int, l2 L2, l3 L3, workers int) *Cache {
	if workers <= 0 {
		workers = 4
	}
	c := &Cache{
		L1:          NewL1(l1Capacity),
		L2:          l2,
		L3:          l3,
		asyncWrites: make(chan func(), 1024),
		stop:        make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go c.runAsyncWriter()
	}
	return c
}

func (c *Cache) runAsyncWriter() {
	for {
		select {
		case fn := <-c.asyncWrites:
			fn()
		case <-c.stop:
			for {
				select {
				case fn := <-c.asyncWrites:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Close stops the async write workers. Queued writes already accepted
// are still drained; writes submitted after Close are queued but never
// run.
func (c *Cache) Close() {
	close(c.stop)
}

// Get probes L1, then L2 (with promote-on-hit into L1). An L2 error is
// treated as a miss (spec.md §4.4 "Failure semantics").
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.L1.Get(key); ok {
		metrics.L1HitsTotal.WithLabelValues("all").Inc()
		return v, true
	}
	metrics.L1MissesTotal.WithLabelValues("all").Inc()

	v, err := c.L2.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrL2Miss) {
			metrics.L2ErrorsTotal.WithLabelValues("get").Inc()
		}
		return nil, false
	}

	c.L1.Set(key, v)
	return v, true
}

// Set writes L1 synchronously and schedules L2 (and L3, if present)
// writes as fire-and-forget. An L2/L3 write error is logged-by-counter
// and absorbed; it never propagates to the caller (spec.md §4.4).
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	c.L1.Set(key, value)

	c.submitAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		if err := c.L2.Set(ctx, key, value, ttl); err != nil {
			metrics.L2ErrorsTotal.WithLabelValues("set").Inc()
		}
	})

	if c.L3 != nil {
		c.submitAsync(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			_ = c.L3.Set(ctx, key, value) // L3 errors are absorbed the same way as L2's.
		})
	}
}

func (c *Cache) submitAsync(fn func()) {
	select {
	case c.asyncWrites <- fn:
	default:
		// Pool saturated: drop rather than block the Set caller's hot
		// path (spec.md §5 backpressure policy for bounded pools).
		metrics.L2ErrorsTotal.WithLabelValues("queue_saturated").Inc()
	}
}

// GetFromL1 is the direct L1 accessor used by the Predictive Warmer
// (C7) to check whether a candidate is already promoted without
// triggering an L2 probe (spec.md §4.4 "getFromL1").
func (c *Cache) GetFromL1(key string) ([]byte, bool) {
	return c.L1.Get(key)
}

// SetInL1 is the direct L1 accessor used by C7 to promote a value it
// already fetched from L2, without re-triggering an L2 write (spec.md
// §4.4 "setInL1" and §4.6 invariant: "Only L2->L1 promotion; the warmer
// must not initiate new L2 writes").
func (c *Cache) SetInL1(key string, value []byte) {
	c.L1.Set(key, value)
}

// FetchForWarming is the single-fetch the warmer performs per candidate
// (spec.md §4.6 step 5): it checks L1 first; only if absent does it
// probe L2, exactly once. inL1 reports whether the value was already
// promoted (caller should count pairsAlreadyInL1 and skip); otherwise
// found reports whether L2 had a value at all (caller counts
// pairsNotFound when false).
func (c *Cache) FetchForWarming(ctx context.Context, key string) (inL1 bool, value []byte, found bool) {
	if v, ok := c.L1.Get(key); ok {
		return true, v, true
	}
	v, ok := c.GetFromL2(ctx, key)
	return false, v, ok
}

// GetFromL2 fetches directly from L2 without touching L1, used by the
// warmer's single-fetch promotion step (spec.md §4.6 step 5: "call
// cache.getFromL1 in a single fetch that returns (inL1, valueFromL2?)").
func (c *Cache) GetFromL2(ctx context.Context, key string) ([]byte, bool) {
	v, err := c.L2.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrL2Miss) {
			metrics.L2ErrorsTotal.WithLabelValues("get").Inc()
		}
		return nil, false
	}
	return v, true
}
