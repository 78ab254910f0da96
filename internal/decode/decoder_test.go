package decode

import (
	"testing"

	"dexarb/internal/chain"
	"dexarb/internal/models"
	"dexarb/internal/pair"
)

func TestDecoder_ApplyReserveUpdate_MutatesOwnedPair(t *testing.T) {
	repo := pair.NewRepository()
	p := models.NewPair("1", "0xPool", "uniswap-v2", "WETH", "USDC", 30)
	repo.UpsertPair(p)

	d := NewDecoder("1", repo)
	log := chain.DecodedLog{
		Address:         "0xPool",
		Data:            EncodeReservesForTest(1000, 2_000_000),
		BlockNumber:     100,
		ArrivedAtMillis: 123,
	}

	update, err := d.ApplyReserveUpdate(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update == nil {
		t.Fatal("expected a PriceUpdate for a monitored pair")
	}
	if p.Reserve0.Int64() != 1000 || p.Reserve1.Int64() != 2_000_000 {
		t.Fatalf("pair reserves not mutated in place: got %s/%s", p.Reserve0, p.Reserve1)
	}
	if p.BlockNumber != 100 {
		t.Errorf("expected blockNumber=100, got %d", p.BlockNumber)
	}
	if update.MidPrice.Sign() <= 0 {
		t.Error("expected a positive mid price")
	}
}

func TestDecoder_ApplyReserveUpdate_UnmonitoredPairDropsSilently(t *testing.T) {
	repo := pair.NewRepository()
	d := NewDecoder("1", repo)

	update, err := d.ApplyReserveUpdate(chain.DecodedLog{
		Address: "0xUnknown",
		Data:    EncodeReservesForTest(1, 2),
	})
	if err != nil {
		t.Fatalf("unmonitored pair should not be an error, got %v", err)
	}
	if update != nil {
		t.Fatal("expected nil update for unmonitored pair")
	}
}

func TestDecoder_ApplyReserveUpdate_MalformedDataIsCountedAndDropped(t *testing.T) {
	repo := pair.NewRepository()
	p := models.NewPair("1", "0xPool", "uniswap-v2", "WETH", "USDC", 30)
	repo.UpsertPair(p)
	d := NewDecoder("1", repo)

	_, err := d.ApplyReserveUpdate(chain.DecodedLog{Address: "0xPool", Data: []byte{0x01, 0x02}})
	if err == nil {
		t.Fatal("expected a decode error for malformed data")
	}
	if p.Reserve0.Sign() != 0 {
		t.Error("a decode failure must not mutate the pair's reserves")
	}
}

func TestDecoder_ApplyReserveUpdate_LastUpdateMillisMonotonic(t *testing.T) {
	repo := pair.NewRepository()
	p := models.NewPair("1", "0xPool", "uniswap-v2", "WETH", "USDC", 30)
	p.LastUpdateMillis = 1_000_000_000_000
	repo.UpsertPair(p)
	d := NewDecoder("1", repo)

	_, err := d.ApplyReserveUpdate(chain.DecodedLog{Address: "0xPool", Data: EncodeReservesForTest(1, 2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LastUpdateMillis < 1_000_000_000_000 {
		t.Error("lastUpdateMillis must never decrease")
	}
}
