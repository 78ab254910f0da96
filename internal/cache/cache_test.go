package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeL2 is an in-memory stand-in for the distributed KV backend, used
// so these tests never require a real Redis instance.
type fakeL2 struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newFakeL2() *fakeL2 { return &fakeL2{data: make(map[string][]byte)} }

func (f *fakeL2) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	v, ok := f.data[key]
	if !ok {
		return nil, ErrL2Miss
	}
	return v, nil
}

func (f *fakeL2) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	f.data[key] = value
	return nil
}

func TestL1_EvictsLeastRecentlyUsed(t *testing.T) {
	l1 := NewL1(2)
	l1.Set("a", []byte("1"))
	l1.Set("b", []byte("2"))
	l1.Get("a") // touch a, making b the LRU
	l1.Set("c", []byte("3"))

	if _, ok := l1.Get("b"); ok {
		t.Error("expected b to be evicted as the least recently used entry")
	}
	if _, ok := l1.Get("a"); !ok {
		t.Error("expected a to survive (recently touched)")
	}
	if _, ok := l1.Get("c"); !ok {
		t.Error("expected c to be present (just inserted)")
	}
	if l1.Len() != 2 {
		t.Errorf("expected Len()=2, got %d", l1.Len())
	}
}

func TestL1_SizeNeverExceedsCapacity(t *testing.T) {
	l1 := NewL1(3)
	for i := 0; i < 100; i++ {
		l1.Set(string(rune('a'+i%26))+string(rune(i)), []byte{byte(i)})
	}
	if l1.Len() > 3 {
		t.Fatalf("L1 size exceeded capacity: %d", l1.Len())
	}
}

func TestCache_GetPromotesL2HitIntoL1(t *testing.T) {
	l2 := newFakeL2()
	l2.data["k"] = []byte("v")
	c := NewCache(10, l2, nil, 2)
	defer c.Close()

	v, ok := c.Get(context.Background(), "k")
	if !ok || string(v) != "v" {
		t.Fatalf("expected L2 hit promoted, got ok=%v v=%s", ok, v)
	}
	if _, ok := c.L1.Get("k"); !ok {
		t.Error("expected value promoted into L1 after an L2 hit")
	}
}

func TestCache_GetMissReturnsFalseOnL2Error(t *testing.T) {
	l2 := newFakeL2()
	l2.fail = true
	c := NewCache(10, l2, nil, 2)
	defer c.Close()

	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("expected a miss when L2 errors")
	}
}

func TestCache_SetWritesL1Synchronously(t *testing.T) {
	l2 := newFakeL2()
	c := NewCache(10, l2, nil, 2)
	defer c.Close()

	c.Set("k", []byte("v"), time.Minute)

	if _, ok := c.L1.Get("k"); !ok {
		t.Error("expected Set to write L1 synchronously")
	}
}

func TestCache_FetchForWarming_SingleFetchSemantics(t *testing.T) {
	l2 := newFakeL2()
	l2.data["warm"] = []byte("v")
	c := NewCache(10, l2, nil, 2)
	defer c.Close()

	inL1, value, found := c.FetchForWarming(context.Background(), "warm")
	if inL1 {
		t.Error("value should not already be in L1")
	}
	if !found || string(value) != "v" {
		t.Fatalf("expected L2 value to be found, got found=%v value=%s", found, value)
	}

	c.SetInL1("warm", value)
	inL1, _, found = c.FetchForWarming(context.Background(), "warm")
	if !inL1 || !found {
		t.Error("expected subsequent fetch to report inL1=true")
	}
}

func TestCache_SetInL1DoesNotTouchL2(t *testing.T) {
	l2 := newFakeL2()
	c := NewCache(10, l2, nil, 2)
	defer c.Close()

	c.SetInL1("k", []byte("v"))

	l2.mu.Lock()
	_, ok := l2.data["k"]
	l2.mu.Unlock()
	if ok {
		t.Error("SetInL1 must never write through to L2")
	}
}
