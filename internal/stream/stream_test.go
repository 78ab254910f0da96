package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"dexarb/internal/models"
)

func TestClient_AppendAndBlockingReadGroup(t *testing.T) {
	backend := NewMemoryBackend()
	client := NewClient(backend)
	ctx := context.Background()

	if err := client.CreateGroup(ctx, "orders", "g1", "$"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := client.Append(ctx, "orders", map[string]string{"a": "1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	msgs, err := client.BlockingReadGroup(ctx, "orders", "g1", "c1", 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("BlockingReadGroup: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Data["a"] != "1" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestClient_CreateGroup_IsIdempotent(t *testing.T) {
	backend := NewMemoryBackend()
	client := NewClient(backend)
	ctx := context.Background()

	if err := client.CreateGroup(ctx, "s", "g", "0"); err != nil {
		t.Fatalf("first CreateGroup: %v", err)
	}
	if err := client.CreateGroup(ctx, "s", "g", "0"); err != nil {
		t.Fatalf("second CreateGroup must not error: %v", err)
	}
}

func TestClient_AckOfAlreadyAckedIdIsNoop(t *testing.T) {
	backend := NewMemoryBackend()
	client := NewClient(backend)
	ctx := context.Background()

	client.CreateGroup(ctx, "s", "g", "0")
	id, _ := client.Append(ctx, "s", map[string]string{"x": "1"})
	client.BlockingReadGroup(ctx, "s", "g", "c1", 10, 10*time.Millisecond)

	if err := client.Ack(ctx, "s", "g", id); err != nil {
		t.Fatalf("first ack: %v", err)
	}
	if err := client.Ack(ctx, "s", "g", id); err != nil {
		t.Fatalf("second ack must be a no-op, not an error: %v", err)
	}
}

func TestClient_StreamInfoAndPending_DefaultsWhenMissing(t *testing.T) {
	backend := NewMemoryBackend()
	client := NewClient(backend)
	ctx := context.Background()

	info, err := client.StreamInfo(ctx, "never-created")
	if err != nil || info.Length != 0 {
		t.Fatalf("expected zero-value defaults for unknown stream, got %+v, err=%v", info, err)
	}

	pending, err := client.Pending(ctx, "never-created", "none")
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected empty pending list for unknown stream, got %+v, err=%v", pending, err)
	}
}

func TestClient_MoveToDlq_AppendsDlqRecordThenAcks(t *testing.T) {
	backend := NewMemoryBackend()
	client := NewClient(backend)
	ctx := context.Background()

	client.CreateGroup(ctx, "opps", "g1", "0")
	id, _ := client.Append(ctx, "opps", map[string]string{"netBps": "-99999"})
	msgs, _ := client.BlockingReadGroup(ctx, "opps", "g1", "c1", 10, 10*time.Millisecond)

	if err := client.MoveToDlq(ctx, "opps", "g1", id, "invalid_net_bps", msgs[0].Data); err != nil {
		t.Fatalf("MoveToDlq: %v", err)
	}

	dlqInfo, _ := client.StreamInfo(ctx, "opps:dlq")
	if dlqInfo.Length != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", dlqInfo.Length)
	}

	pending, _ := client.Pending(ctx, "opps", "g1")
	if len(pending) != 0 {
		t.Fatalf("expected original message acked after DLQ move, pending=%+v", pending)
	}
}

func TestConsumer_DeferredAckRedeliveryAfterCrash(t *testing.T) {
	backend := NewMemoryBackend()
	client := NewClient(backend)
	ctx := context.Background()

	client.CreateGroup(ctx, "s", "g", "0")
	client.Append(ctx, "s", map[string]string{"v": "1"})

	// simulate consumer 1 reading the message then crashing before ack
	client.BlockingReadGroup(ctx, "s", "g", "consumer-1", 10, 10*time.Millisecond)

	redelivered := backend.Redeliver("s", "g", "consumer-2", 0)
	if len(redelivered) != 1 {
		t.Fatalf("expected exactly 1 redelivered message, got %d", len(redelivered))
	}
	if redelivered[0].DeliveryCount != 2 {
		t.Errorf("expected delivery count 2 after redelivery, got %d", redelivered[0].DeliveryCount)
	}

	if err := client.Ack(ctx, "s", "g", redelivered[0].ID); err != nil {
		t.Fatalf("ack after redelivery: %v", err)
	}
	pending, _ := client.Pending(ctx, "s", "g")
	if len(pending) != 0 {
		t.Fatalf("expected no pending entries after ack, got %+v", pending)
	}
}

func TestConsumer_PauseStopsDelivery_ResumeContinues(t *testing.T) {
	backend := NewMemoryBackend()
	client := NewClient(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client.CreateGroup(ctx, "s", "g", "0")

	var mu sync.Mutex
	var handled []string
	handler := func(ctx context.Context, msg models.StreamMessage) error {
		mu.Lock()
		handled = append(handled, msg.ID)
		mu.Unlock()
		return client.Ack(ctx, "s", "g", msg.ID)
	}

	consumer := NewConsumer(client, "s", "g", "c1", 10, 20*time.Millisecond, handler, nil)
	consumer.Pause()
	if !consumer.IsPaused() {
		t.Fatal("expected consumer to report paused")
	}

	go consumer.Start(ctx)
	time.Sleep(10 * time.Millisecond)

	client.Append(ctx, "s", map[string]string{"v": "1"})
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	n := len(handled)
	mu.Unlock()
	if n != 0 {
		t.Fatalf("expected no messages handled while paused, got %d", n)
	}

	consumer.Resume()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	n = len(handled)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected 1 message handled after resume, got %d", n)
	}

	consumer.Stop()
	consumer.Wait()
}
