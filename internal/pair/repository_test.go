package pair

import (
	"testing"

	"dexarb/internal/models"
)

func TestRepository_UpsertAndLookupByAddress(t *testing.T) {
	repo := NewRepository()
	p := models.NewPair("1", "0xPool", "uniswap-v2", "WETH", "USDC", 30)

	repo.UpsertPair(p)

	got := repo.LookupByAddress("0xPOOL")
	if got == nil {
		t.Fatal("ожидали найти пару по адресу независимо от регистра")
	}
	if got.DexID != "uniswap-v2" {
		t.Errorf("ожидали dexId=uniswap-v2, получили %s", got.DexID)
	}
}

func TestRepository_LookupByAddress_Unknown(t *testing.T) {
	repo := NewRepository()
	if repo.LookupByAddress("0xdead") != nil {
		t.Error("ожидали nil для неизвестного адреса")
	}
}

func TestRepository_LookupByTokenPair_ReturnsEmptySliceForUnknownKey(t *testing.T) {
	repo := NewRepository()
	key := models.NewTokenPairKey("1", "WETH", "USDC")

	got := repo.LookupByTokenPair(key)
	if got == nil {
		t.Fatal("ожидали пустой слайс, а не nil, для неизвестного ключа")
	}
	if len(got) != 0 {
		t.Errorf("ожидали пустой слайс, получили %d элементов", len(got))
	}
}

func TestRepository_LookupByTokenPair_CrossDexFanOut(t *testing.T) {
	repo := NewRepository()
	pA := models.NewPair("1", "0xA", "dex-a", "WETH", "USDC", 30)
	pB := models.NewPair("1", "0xB", "dex-b", "WETH", "USDC", 30)
	repo.UpsertPair(pA)
	repo.UpsertPair(pB)

	key := models.NewTokenPairKey("1", "WETH", "USDC")
	got := repo.LookupByTokenPair(key)

	if len(got) != 2 {
		t.Fatalf("ожидали 2 пула на один токен-ключ, получили %d", len(got))
	}
}

func TestRepository_UpsertReplacesSameAddress(t *testing.T) {
	repo := NewRepository()
	p1 := models.NewPair("1", "0xPool", "dex-a", "WETH", "USDC", 30)
	repo.UpsertPair(p1)

	p2 := models.NewPair("1", "0xPool", "dex-a", "WETH", "DAI", 30)
	repo.UpsertPair(p2)

	if repo.Count() != 1 {
		t.Fatalf("повторная вставка по тому же адресу не должна создавать вторую запись, Count=%d", repo.Count())
	}

	oldKey := models.NewTokenPairKey("1", "WETH", "USDC")
	if got := repo.LookupByTokenPair(oldKey); len(got) != 0 {
		t.Error("старый токен-ключ должен быть очищен после замены пары")
	}

	newKey := models.NewTokenPairKey("1", "WETH", "DAI")
	if got := repo.LookupByTokenPair(newKey); len(got) != 1 {
		t.Error("новый токен-ключ должен указывать на обновлённую пару")
	}
}

func TestRepository_Snapshot_CachedUntilInvalidated(t *testing.T) {
	repo := NewRepository()
	p := models.NewPair("1", "0xPool", "dex-a", "WETH", "USDC", 30)
	p.Reserve0.SetInt64(1000)
	p.Reserve1.SetInt64(2000)
	repo.UpsertPair(p)

	snap1, ok := repo.Snapshot("0xPool")
	if !ok {
		t.Fatal("ожидали снапшот для известного адреса")
	}
	if snap1.Reserve0.Int64() != 1000 {
		t.Fatalf("ожидали reserve0=1000, получили %s", snap1.Reserve0.String())
	}

	// Mutate the owned pair directly, as the decoder would on the hot path.
	p.Reserve0.SetInt64(9999)

	stale, _ := repo.Snapshot("0xPool")
	if stale.Reserve0.Int64() != 1000 {
		t.Fatal("снапшот должен оставаться закэшированным до явной инвалидации")
	}

	repo.InvalidateSnapshot("0xPool")

	fresh, _ := repo.Snapshot("0xPool")
	if fresh.Reserve0.Int64() != 9999 {
		t.Fatal("после инвалидации снапшот должен отражать новые резервы")
	}
}

func TestRepository_Snapshot_UnknownAddress(t *testing.T) {
	repo := NewRepository()
	if _, ok := repo.Snapshot("0xdead"); ok {
		t.Error("ожидали false для неизвестного адреса")
	}
}

func TestRepository_Count(t *testing.T) {
	repo := NewRepository()
	if repo.Count() != 0 {
		t.Fatal("новый репозиторий должен быть пустым")
	}

	repo.UpsertPair(models.NewPair("1", "0xA", "dex-a", "WETH", "USDC", 30))
	repo.UpsertPair(models.NewPair("1", "0xB", "dex-b", "WETH", "USDC", 30))

	if repo.Count() != 2 {
		t.Errorf("ожидали Count=2, получили %d", repo.Count())
	}
}
