package publisher

import (
	"context"
	"testing"
	"time"

	"dexarb/internal/models"
	"dexarb/internal/stream"
)

func TestPublisher_Publish_EnrichesAndRoundTrips(t *testing.T) {
	backend := stream.NewMemoryBackend()
	client := stream.NewClient(backend)
	ctx := context.Background()
	client.CreateGroup(ctx, "opportunities", "coordinator", "0")

	p := New(client, "opportunities", "detector:eth:1", 10000)

	opp := models.Opportunity{
		ID:          "abc123",
		Kind:        models.KindTwoPair,
		ChainID:     "eth",
		BlockNumber: 18000000,
		Legs: []models.Leg{
			{DexID: "uniswap-v2", Token0: "WETH", Token1: "USDC"},
			{DexID: "sushiswap", Token0: "USDC", Token1: "WETH"},
		},
		GrossBps:   42,
		NetBps:     30,
		Confidence: 0.8,
		ExpiryMillis: time.Now().Add(time.Second).UnixMilli(),
		PipelineTimestamps: models.PipelineTimestamps{
			WSReceivedMillis: time.Now().UnixMilli(),
		},
	}

	if ok := p.Publish(ctx, opp); !ok {
		t.Fatal("expected Publish to succeed")
	}

	msgs, err := client.BlockingReadGroup(ctx, "opportunities", "coordinator", "c1", 10, 10*time.Millisecond)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d, err=%v", len(msgs), err)
	}

	decoded := Decode(msgs[0].Data)
	if decoded.ID != opp.ID || decoded.ChainID != opp.ChainID || decoded.BlockNumber != opp.BlockNumber {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
	if decoded.Source != "detector:eth:1" {
		t.Errorf("expected source to be enriched, got %q", decoded.Source)
	}
	if decoded.PipelineTimestamps.PublishedMillis == 0 {
		t.Error("expected publishedMillis to be set")
	}
	if len(decoded.Legs) != 2 || decoded.Legs[1].DexID != "sushiswap" {
		t.Errorf("leg round-trip mismatch: %+v", decoded.Legs)
	}
}

type failingBackend struct {
	stream.Backend
}

func (f failingBackend) AppendWithLimit(ctx context.Context, streamName string, fields map[string]string, maxLen int64) (string, error) {
	return "", errAppendFailed
}

var errAppendFailed = &appendError{}

type appendError struct{}

func (e *appendError) Error() string { return "append failed" }

func TestPublisher_Publish_ReturnsFalseOnAppendFailure(t *testing.T) {
	client := stream.NewClient(failingBackend{Backend: stream.NewMemoryBackend()})
	p := New(client, "opportunities", "detector:eth:1", 10000)

	ok := p.Publish(context.Background(), models.Opportunity{ID: "x"})
	if ok {
		t.Fatal("expected Publish to return false on append failure")
	}
}
