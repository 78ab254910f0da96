package models

import (
	"math/big"
	"testing"
)

// ============ TokenPairKey Tests ============

func TestNewTokenPairKey_Canonicalizes(t *testing.T) {
	a := NewTokenPairKey("1", "WETH", "USDC")
	b := NewTokenPairKey("1", "USDC", "WETH")

	if a != b {
		t.Fatalf("канонический ключ должен не зависеть от порядка токенов: %+v != %+v", a, b)
	}
	if a.TokenA != "USDC" || a.TokenB != "WETH" {
		t.Errorf("ожидали TokenA=USDC TokenB=WETH (лексикографически), получили %+v", a)
	}
}

func TestTokenPairKey_String(t *testing.T) {
	k := NewTokenPairKey("1", "WETH", "USDC")
	if k.String() != "1:USDC/WETH" {
		t.Errorf("неожиданное строковое представление: %s", k.String())
	}
}

// ============ Pair Tests ============

func TestNewPair_LowercasesAddress(t *testing.T) {
	p := NewPair("1", "0xABCDEF", "uniswap-v2", "WETH", "USDC", 30)
	if p.Address != "0xabcdef" {
		t.Errorf("адрес пула должен быть приведён к нижнему регистру, получили %s", p.Address)
	}
	if p.Reserve0.Sign() != 0 || p.Reserve1.Sign() != 0 {
		t.Error("новый пул должен стартовать с нулевыми резервами")
	}
	if p.ChainPairKey != NewTokenPairKey("1", "WETH", "USDC") {
		t.Error("ChainPairKey должен быть предвычислен при создании пары")
	}
}

func TestPair_SnapshotIsIndependentCopy(t *testing.T) {
	p := NewPair("1", "0xpool", "uniswap-v2", "WETH", "USDC", 30)
	p.Reserve0.SetInt64(1000)
	p.Reserve1.SetInt64(2_000_000)
	p.BlockNumber = 100
	p.LastUpdateMillis = 123

	snap := p.Snapshot()

	// мутируем оригинал после снятия снапшота
	p.Reserve0.SetInt64(9999)

	if snap.Reserve0.Int64() != 1000 {
		t.Errorf("снапшот должен быть независимой копией, получили Reserve0=%s", snap.Reserve0)
	}
	if snap.BlockNumber != 100 || snap.LastUpdateMillis != 123 {
		t.Errorf("снапшот должен сохранить блок и время обновления, получили %+v", snap)
	}
}

func TestPriceUpdate_ZeroValues(t *testing.T) {
	var pu PriceUpdate
	if pu.PublishedMillis != 0 {
		t.Error("новый PriceUpdate должен иметь PublishedMillis=0 до публикации")
	}
	if pu.MidPrice != nil {
		t.Error("MidPrice не задан для нулевого значения")
	}
}

func TestMidPrice_RationalNoFloat(t *testing.T) {
	r0, r1 := big.NewInt(1000), big.NewInt(2_000_000)
	rat := new(big.Rat).SetFrac(r1, r0)
	if rat.Cmp(big.NewRat(2000, 1)) != 0 {
		t.Errorf("ожидали точную цену 2000/1, получили %s", rat.RatString())
	}
}

// ============ Opportunity Tests ============

func TestOpportunity_Kinds(t *testing.T) {
	kinds := []OpportunityKind{KindTwoPair, KindTriangular, KindMultiLeg, KindCrossChain}
	seen := map[OpportunityKind]bool{}
	for _, k := range kinds {
		if seen[k] {
			t.Errorf("дублирующийся вид возможности: %s", k)
		}
		seen[k] = true
	}
}

func TestOpportunity_LegsOrderPreserved(t *testing.T) {
	opp := Opportunity{
		ID:      "abc",
		Kind:    KindTwoPair,
		ChainID: "1",
		Legs: []Leg{
			{DexID: "A", Token0: "WETH", Token1: "USDC"},
			{DexID: "B", Token0: "USDC", Token1: "WETH"},
		},
		NetBps: 25,
	}

	if opp.Legs[0].DexID != "A" || opp.Legs[1].DexID != "B" {
		t.Error("порядок legs должен сохраняться как buy-then-sell")
	}
}

// ============ StreamMessage Tests ============

func TestStreamMessage_DataIsFlatStringMap(t *testing.T) {
	msg := StreamMessage{
		ID:     "1700000000000-0",
		Stream: "stream:opportunities",
		Data: map[string]string{
			"id":      "abc",
			"netBps":  "25",
			"chainId": "1",
		},
	}

	if msg.Data["netBps"] != "25" {
		t.Errorf("поле netBps должно сериализоваться как строка, получили %v", msg.Data["netBps"])
	}
}

func TestPendingEntry_ZeroValues(t *testing.T) {
	var pe PendingEntry
	if pe.DeliveryCount != 0 || pe.IdleMillis != 0 {
		t.Error("новый PendingEntry должен иметь нулевые счётчики")
	}
}

// ============ Correlation / Cache Tests ============

func TestCorrelationRecord_InvariantFields(t *testing.T) {
	rec := CorrelationRecord{
		SourcePair:     "0xaaa",
		CorrelatedPair: "0xbbb",
		CoOccurrences:  5,
		LastSeenMillis: 1000,
		Score:          0.42,
	}

	if rec.SourcePair == rec.CorrelatedPair {
		t.Error("SourcePair и CorrelatedPair не должны совпадать")
	}
	if rec.Score < 0 || rec.Score > 1 {
		t.Errorf("score должен быть в [0,1], получили %f", rec.Score)
	}
}

func TestL1CacheEntry_ZeroValues(t *testing.T) {
	var e L1CacheEntry
	if e.Value != nil {
		t.Error("нулевое значение Value должно быть nil")
	}
	if e.InsertionEpoch != 0 || e.LastAccessEpoch != 0 {
		t.Error("нулевые эпохи должны быть 0")
	}
}
