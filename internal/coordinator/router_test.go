package coordinator

import (
	"context"
	"testing"
	"time"

	"dexarb/internal/models"
	"dexarb/internal/publisher"
	"dexarb/internal/stream"
)

type fixedLeader struct{ leader bool }

func (f fixedLeader) IsLeader(ctx context.Context) (bool, error) { return f.leader, nil }

func newTestRouter(t *testing.T, leader bool) (*Router, *stream.Client) {
	t.Helper()
	backend := stream.NewMemoryBackend()
	client := stream.NewClient(backend)
	cfg := RouterConfig{
		SourceStream:    "opportunities",
		SourceGroup:     "coordinator",
		ConsumerName:    "c1",
		ExecutionStream: "execution-requests",
		DuplicateWindow: 5 * time.Second,
		BatchSize:       10,
		BlockMs:         10 * time.Millisecond,
		KnownChains:     map[string]bool{"eth": true},
	}
	breaker := NewBreaker(DefaultBreakerConfig())
	router := NewRouter(cfg, client, fixedLeader{leader: leader}, breaker, nil)
	ctx := context.Background()
	client.CreateGroup(ctx, "opportunities", "coordinator", "0")
	return router, client
}

func publishRaw(t *testing.T, client *stream.Client, opp models.Opportunity) {
	t.Helper()
	pub := publisher.New(client, "opportunities", "test", 10000)
	if !pub.Publish(context.Background(), opp) {
		t.Fatal("expected test publish to succeed")
	}
}

func validTestOpp() models.Opportunity {
	return models.Opportunity{
		ID:      "opp1",
		ChainID: "eth",
		Legs: []models.Leg{
			{DexID: "uniswap-v2", Token0: "WETH", Token1: "USDC"},
		},
		BlockNumber:  100,
		NetBps:       50,
		ExpiryMillis: time.Now().Add(time.Minute).UnixMilli(),
	}
}

func TestRouter_NotLeader_AcksAndDrops(t *testing.T) {
	router, client := newTestRouter(t, false)
	publishRaw(t, client, validTestOpp())

	ctx := context.Background()
	msgs, _ := client.BlockingReadGroup(ctx, "opportunities", "coordinator", "c1", 10, 10*time.Millisecond)
	for _, m := range msgs {
		if err := router.handle(ctx, m); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	pending, _ := client.Pending(ctx, "opportunities", "coordinator")
	if len(pending) != 0 {
		t.Fatalf("expected message acked when not leader, pending=%+v", pending)
	}
	info, _ := client.StreamInfo(ctx, "execution-requests")
	if info.Length != 0 {
		t.Fatal("expected nothing forwarded when not leader")
	}
}

func TestRouter_InvalidOpportunity_MovesToDlq(t *testing.T) {
	router, client := newTestRouter(t, true)
	opp := validTestOpp()
	opp.NetBps = 99999 // out of range
	publishRaw(t, client, opp)

	ctx := context.Background()
	msgs, _ := client.BlockingReadGroup(ctx, "opportunities", "coordinator", "c1", 10, 10*time.Millisecond)
	for _, m := range msgs {
		router.handle(ctx, m)
	}

	dlqInfo, _ := client.StreamInfo(ctx, "opportunities:dlq")
	if dlqInfo.Length != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", dlqInfo.Length)
	}
}

func TestRouter_ValidOpportunity_ForwardsAndAcks(t *testing.T) {
	router, client := newTestRouter(t, true)
	publishRaw(t, client, validTestOpp())

	ctx := context.Background()
	msgs, _ := client.BlockingReadGroup(ctx, "opportunities", "coordinator", "c1", 10, 10*time.Millisecond)
	for _, m := range msgs {
		if err := router.handle(ctx, m); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	info, _ := client.StreamInfo(ctx, "execution-requests")
	if info.Length != 1 {
		t.Fatalf("expected 1 forwarded message, got %d", info.Length)
	}
	pending, _ := client.Pending(ctx, "opportunities", "coordinator")
	if len(pending) != 0 {
		t.Fatalf("expected source message acked, pending=%+v", pending)
	}
}

func TestRouter_DuplicateWithinWindow_DroppedWithoutForwarding(t *testing.T) {
	router, client := newTestRouter(t, true)
	ctx := context.Background()

	publishRaw(t, client, validTestOpp())
	opp2 := validTestOpp()
	opp2.ID = "opp2" // same chain/block/legs => same dup key, different id
	publishRaw(t, client, opp2)

	msgs, _ := client.BlockingReadGroup(ctx, "opportunities", "coordinator", "c1", 10, 10*time.Millisecond)
	for _, m := range msgs {
		router.handle(ctx, m)
	}

	info, _ := client.StreamInfo(ctx, "execution-requests")
	if info.Length != 1 {
		t.Fatalf("expected only 1 forwarded after de-duplication, got %d", info.Length)
	}
}

func TestRouter_BreakerOpen_DropsWithoutForwarding(t *testing.T) {
	router, client := newTestRouter(t, true)
	router.breaker.RecordFailure()
	for i := 0; i < router.breaker.cfg.FailureThreshold-1; i++ {
		router.breaker.RecordFailure()
	}
	if router.breaker.State() != BreakerOpen {
		t.Fatalf("expected breaker open precondition, got %v", router.breaker.State())
	}

	publishRaw(t, client, validTestOpp())
	ctx := context.Background()
	msgs, _ := client.BlockingReadGroup(ctx, "opportunities", "coordinator", "c1", 10, 10*time.Millisecond)
	for _, m := range msgs {
		router.handle(ctx, m)
	}

	info, _ := client.StreamInfo(ctx, "execution-requests")
	if info.Length != 0 {
		t.Fatal("expected nothing forwarded while breaker is open")
	}
	pending, _ := client.Pending(ctx, "opportunities", "coordinator")
	if len(pending) != 0 {
		t.Fatal("expected source message still acked while breaker is open")
	}
}
