// Command detector runs the per-process detection pipeline: one chain
// task per configured chain, each wiring C1 Connection Supervisor -> C3
// Event Decoder -> C4 Detector -> C10 Publisher, with its own C6
// Correlation Tracker and C7 Predictive Warmer, all chains sharing one
// C5 Hierarchical Cache (spec.md §2, §5 "one chain task per monitored chain"). Grounded
// on the teacher's cmd/server/main.go bootstrap/graceful-shutdown shape.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dexarb/internal/cache"
	"dexarb/internal/chain"
	"dexarb/internal/config"
	"dexarb/internal/correlation"
	"dexarb/internal/decode"
	"dexarb/internal/detector"
	"dexarb/internal/models"
	"dexarb/internal/opsserver"
	"dexarb/internal/pair"
	"dexarb/internal/publisher"
	"dexarb/internal/stream"
	"dexarb/internal/warmer"
	"dexarb/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	baseLogger := logging.Must(cfg.Logging)
	defer baseLogger.Sync()
	logger := baseLogger.Sugar()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	l3, err := newL3(cfg)
	if err != nil {
		log.Fatalf("failed to init L3 cache: %v", err)
	}

	sharedCache := cache.NewCache(10_000, cache.NewRedisL2(redisClient), l3, 8)
	defer sharedCache.Close()

	streamClient := stream.NewClient(stream.NewRedisBackend(redisClient))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	var healthChecks []opsserver.HealthCheck
	var healthMu sync.Mutex

	for chainID, chainCfg := range cfg.Chains {
		chainID, chainCfg := chainID, chainCfg
		repo := pair.NewRepository()
		if chainCfg.PairsConfigFile != "" {
			specs, err := chain.LoadStaticPairs(chainCfg.PairsConfigFile)
			if err != nil {
				logger.Fatalw("failed to load static pairs", "chain", chainID, "error", err)
			}
			chain.RegisterStaticPairs(repo, chainID, specs)
		}

		supervisor := chain.NewSupervisor(chainID, chainCfg.WSPrimary, chainCfg.WSFallbacks, chainCfg.BlockTimeMillis, logging.ForChain(baseLogger, chainID))

		healthMu.Lock()
		healthChecks = append(healthChecks, chainHealthCheck(chainID, supervisor))
		healthMu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			runChain(ctx, chainID, chainCfg, repo, supervisor, sharedCache, streamClient, cfg, baseLogger)
		}()
	}

	opsAddr := fmt.Sprintf("%s:%d", cfg.Ops.Host, cfg.Ops.Port)
	ops := opsserver.New(opsAddr, logger, healthChecks...)
	go ops.Start()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("ops server shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("detector process exited")
}

func chainHealthCheck(chainID string, supervisor *chain.Supervisor) opsserver.HealthCheck {
	return func() (string, bool, string) {
		health := supervisor.GetHealth()
		healthy := !health.Excluded && health.OverallScore > 0
		return "chain:" + chainID, healthy, fmt.Sprintf("score=%.1f blocksBehind=%d", health.OverallScore, health.BlocksBehind)
	}
}

func newL3(cfg *config.Config) (cache.L3, error) {
	if !cfg.L3.Enabled {
		return nil, nil
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.L3.Host, cfg.L3.Port, cfg.L3.User, cfg.L3.Password, cfg.L3.Name, cfg.L3.SSLMode,
	)
	return cache.NewPostgresL3(dsn)
}

// runChain wires one chain's C1/C2/C3/C4/C6/C7/C10 pipeline and blocks
// until ctx is cancelled (spec.md §5 "chain task" ownership boundary).
func runChain(ctx context.Context, chainID string, chainCfg config.ChainConfig, repo *pair.Repository, supervisor *chain.Supervisor, sharedCache *cache.Cache, streamClient *stream.Client, cfg *config.Config, baseLogger *zap.Logger) {
	chainLogger := logging.ForChain(baseLogger, chainID)

	decoder := decode.NewDecoder(chainID, repo)
	tracker := correlation.New(correlation.DefaultConfig())
	strategy := buildWarmingStrategy(cfg.Warming)
	warmCfg := warmer.Config{
		Enabled:         cfg.Warming.Enabled,
		MaxPairsPerWarm: cfg.Warming.MaxPairsPerWarm,
		MinScore:        cfg.Warming.MinCorrelationScore,
		TimeoutMillis:   cfg.Warming.TimeoutMillis,
		MaxPendingAgeMs: cfg.Warming.MaxPendingAgeMillis,
	}
	chainWarmer := warmer.New(chainID, tracker, sharedCache, strategy, warmCfg, chainLogger)

	pub := publisher.New(streamClient, "opportunities", "detector:"+chainID, 10_000)

	detCfg := detector.DefaultConfig(chainID)
	detCfg.MinProfitBps = chainCfg.MinProfitBps
	detCfg.GasEstimate = chainCfg.GasEstimate
	detCfg.ExpiryMillis = chainCfg.ExpiryMillis
	detCfg.MaxStalenessMillis = chainCfg.StalenessMillis
	detCfg.WhaleThresholdUsd = chainCfg.WhaleThresholdUsd

	det := detector.New(detCfg, repo, chainLogger, func(opp models.Opportunity) {
		go func() {
			publishCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			pub.Publish(publishCtx, opp)
		}()
	})
	defer det.Close()

	logs := supervisor.Subscribe(ctx, nil)
	for {
		select {
		case <-ctx.Done():
			return
		case log, ok := <-logs:
			if !ok {
				return
			}
			update, err := decoder.ApplyReserveUpdate(log)
			if err != nil {
				chainLogger.Warnw("reserve update decode failed", "error", err)
				continue
			}
			if update == nil {
				continue
			}
			chainWarmer.OnPriceUpdate(update.Address, update.SourceReceivedMillis)
			det.OnPriceUpdate(*update)
		}
	}
}

func buildWarmingStrategy(cfg config.WarmingConfig) warmer.Strategy {
	switch cfg.Strategy {
	case "threshold":
		return warmer.ThresholdStrategy{MinScore: cfg.MinCorrelationScore, MaxPairs: cfg.MaxPairsPerWarm}
	case "timeBased":
		return warmer.TimeBasedStrategy{
			TopN:          cfg.TopN,
			MinScore:      cfg.MinCorrelationScore,
			WindowMillis:  cfg.RecencyWindowMillis,
			WeightCorr:    cfg.CorrelationWeight,
			WeightRecency: cfg.RecencyWeight,
		}
	case "adaptive":
		return warmer.NewAdaptiveStrategy(cfg.MinPairs, cfg.MaxPairsPerWarm, cfg.MinCorrelationScore, cfg.TargetHitRate, cfg.AdjustmentFactor)
	default:
		return warmer.TopNStrategy{TopN: cfg.TopN, MinScore: cfg.MinCorrelationScore}
	}
}

