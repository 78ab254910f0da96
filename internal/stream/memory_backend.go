package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dexarb/internal/models"
)

// MemoryBackend is an in-process Backend used by tests and local
// development without a Redis instance, mirroring the semantics
// RedisBackend provides against the real server.
type MemoryBackend struct {
	mu      sync.Mutex
	streams map[string]*memStream
	seq     int64
}

type memStream struct {
	entries []memEntry
	groups  map[string]*memGroup
}

type memEntry struct {
	id     string
	fields map[string]string
}

type memGroup struct {
	nextIdx int // index into entries of the first undelivered message
	pending map[string]*memPending
}

type memPending struct {
	consumer      string
	deliveryCount int64
	deliveredAt   time.Time
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{streams: make(map[string]*memStream)}
}

func (b *MemoryBackend) streamFor(name string) *memStream {
	s, ok := b.streams[name]
	if !ok {
		s = &memStream{groups: make(map[string]*memGroup)}
		b.streams[name] = s
	}
	return s
}

func (b *MemoryBackend) Append(ctx context.Context, stream string, fields map[string]string) (string, error) {
	return b.AppendWithLimit(ctx, stream, fields, 0)
}

func (b *MemoryBackend) AppendWithLimit(ctx context.Context, stream string, fields map[string]string, maxLen int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	id := fmt.Sprintf("%d-0", b.seq)
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	s := b.streamFor(stream)
	s.entries = append(s.entries, memEntry{id: id, fields: copied})

	if maxLen > 0 && int64(len(s.entries)) > maxLen {
		drop := int64(len(s.entries)) - maxLen
		s.entries = s.entries[drop:]
		for _, g := range s.groups {
			g.nextIdx -= int(drop)
			if g.nextIdx < 0 {
				g.nextIdx = 0
			}
		}
	}
	return id, nil
}

func (b *MemoryBackend) CreateGroup(ctx context.Context, stream, group, startID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.streamFor(stream)
	if _, ok := s.groups[group]; ok {
		return nil // idempotent
	}
	start := len(s.entries)
	if startID == "0" {
		start = 0
	}
	s.groups[group] = &memGroup{nextIdx: start, pending: make(map[string]*memPending)}
	return nil
}

func (b *MemoryBackend) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]models.StreamMessage, error) {
	deadline := time.Now().Add(block)
	for {
		b.mu.Lock()
		s := b.streamFor(stream)
		g, ok := s.groups[group]
		if !ok {
			b.mu.Unlock()
			return nil, nil
		}

		var out []models.StreamMessage
		for g.nextIdx < len(s.entries) && int64(len(out)) < count {
			e := s.entries[g.nextIdx]
			g.nextIdx++
			g.pending[e.id] = &memPending{consumer: consumer, deliveryCount: 1, deliveredAt: time.Now()}
			out = append(out, models.StreamMessage{
				ID:            e.id,
				Stream:        stream,
				Group:         group,
				Consumer:      consumer,
				Data:          e.fields,
				DeliveryCount: 1,
			})
		}
		b.mu.Unlock()

		if len(out) > 0 || block <= 0 || time.Now().After(deadline) {
			return out, nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (b *MemoryBackend) Ack(ctx context.Context, stream, group, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[stream]
	if !ok {
		return nil
	}
	g, ok := s.groups[group]
	if !ok {
		return nil
	}
	delete(g.pending, id) // ack of an already-acked id is a no-op
	return nil
}

func (b *MemoryBackend) Info(ctx context.Context, stream string) (models.StreamInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[stream]
	if !ok {
		return models.StreamInfo{}, nil
	}
	lastID := ""
	if len(s.entries) > 0 {
		lastID = s.entries[len(s.entries)-1].id
	}
	return models.StreamInfo{
		Length:          int64(len(s.entries)),
		LastGeneratedID: lastID,
		Groups:          int64(len(s.groups)),
	}, nil
}

func (b *MemoryBackend) Pending(ctx context.Context, stream, group string) ([]models.PendingEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[stream]
	if !ok {
		return nil, nil
	}
	g, ok := s.groups[group]
	if !ok {
		return nil, nil
	}

	out := make([]models.PendingEntry, 0, len(g.pending))
	now := time.Now()
	for id, p := range g.pending {
		out = append(out, models.PendingEntry{
			ID:            id,
			Consumer:      p.consumer,
			IdleMillis:    now.Sub(p.deliveredAt).Milliseconds(),
			DeliveryCount: p.deliveryCount,
		})
	}
	return out, nil
}

// Redeliver reassigns every pending entry idle for at least minIdle to
// consumer, incrementing its delivery count, and returns the redelivered
// messages — used to simulate claim-timeout redelivery in tests
// (spec.md §4.7 "consumers must assume redeliveries after a claim
// timeout").
func (b *MemoryBackend) Redeliver(stream, group, consumer string, minIdle time.Duration) []models.StreamMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[stream]
	if !ok {
		return nil
	}
	g, ok := s.groups[group]
	if !ok {
		return nil
	}

	byID := make(map[string]memEntry, len(s.entries))
	for _, e := range s.entries {
		byID[e.id] = e
	}

	var out []models.StreamMessage
	now := time.Now()
	for id, p := range g.pending {
		if now.Sub(p.deliveredAt) < minIdle {
			continue
		}
		p.consumer = consumer
		p.deliveryCount++
		p.deliveredAt = now
		if e, ok := byID[id]; ok {
			out = append(out, models.StreamMessage{
				ID:            id,
				Stream:        stream,
				Group:         group,
				Consumer:      consumer,
				Data:          e.fields,
				DeliveryCount: p.deliveryCount,
			})
		}
	}
	return out
}
