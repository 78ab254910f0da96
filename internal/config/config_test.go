package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if cfg.Warming.Strategy != "topN" {
		t.Errorf("ожидали стратегию по умолчанию topN, получили %s", cfg.Warming.Strategy)
	}
	if cfg.Stream.MaxStreamLen != 10_000 {
		t.Errorf("ожидали MaxStreamLen=10000, получили %d", cfg.Stream.MaxStreamLen)
	}
	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("ожидали FailureThreshold=5, получили %d", cfg.Breaker.FailureThreshold)
	}
	if len(cfg.Chains) == 0 {
		t.Error("ожидали хотя бы одну цепочку по умолчанию")
	}
}

func TestLoad_L3RequiresPasswordWhenEnabled(t *testing.T) {
	clearEnv(t)
	os.Setenv("L3_ENABLED", "true")
	defer os.Unsetenv("L3_ENABLED")

	_, err := Load()
	if err == nil {
		t.Fatal("ожидали ошибку при L3_ENABLED=true без L3_PASSWORD")
	}
}

func TestLoad_ChainsFromFile(t *testing.T) {
	clearEnv(t)

	f, err := os.CreateTemp(t.TempDir(), "chains-*.json")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"137":{"chainId":"137","minProfitBps":15,"blockTimeMillis":2000}}`)
	f.Close()

	os.Setenv("CHAINS_CONFIG_FILE", f.Name())
	defer os.Unsetenv("CHAINS_CONFIG_FILE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	chain, ok := cfg.Chains["137"]
	if !ok {
		t.Fatal("ожидали цепочку 137 из файла конфигурации")
	}
	if chain.MinProfitBps != 15 {
		t.Errorf("ожидали MinProfitBps=15, получили %d", chain.MinProfitBps)
	}
}

func TestGetEnvAsInt64_FallsBackOnInvalid(t *testing.T) {
	os.Setenv("TEST_INT64", "not-a-number")
	defer os.Unsetenv("TEST_INT64")

	if got := getEnvAsInt64("TEST_INT64", 42); got != 42 {
		t.Errorf("ожидали дефолт 42 при некорректном значении, получили %d", got)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"L3_ENABLED", "L3_PASSWORD", "CHAINS_CONFIG_FILE",
		"WARMING_STRATEGY", "STREAM_MAX_LEN", "BREAKER_FAILURE_THRESHOLD",
	} {
		os.Unsetenv(key)
	}
}
