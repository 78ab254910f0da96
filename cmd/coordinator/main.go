// Command coordinator runs the Coordinator Router (C11): a single
// leader-elected process that consumes the opportunities stream,
// validates and deduplicates each candidate, and forwards surviving
// opportunities to the execution-requests stream behind a circuit
// breaker (spec.md §4.9). Grounded on the teacher's cmd/server/main.go
// bootstrap/graceful-shutdown shape.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"dexarb/internal/config"
	"dexarb/internal/coordinator"
	"dexarb/internal/dlqstore"
	"dexarb/internal/opsserver"
	"dexarb/internal/stream"
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

	streamClient := stream.NewClient(stream.NewRedisBackend(redisClient))

	holderID := fmt.Sprintf("%s:%d", hostname(), os.Getpid())
	elector := coordinator.NewLeaderElector(redisClient, "coordinator:leader", holderID, 15*time.Second)

	breaker := coordinator.NewBreaker(coordinator.BreakerConfig{
		FailureThreshold: int(cfg.Breaker.FailureThreshold),
		Window:           time.Duration(cfg.Breaker.WindowMillis) * time.Millisecond,
		Cooldown:         time.Duration(cfg.Breaker.CooldownMillis) * time.Millisecond,
	})

	knownChains := make(map[string]bool, len(cfg.Chains))
	for chainID := range cfg.Chains {
		knownChains[chainID] = true
	}

	routerCfg := coordinator.RouterConfig{
		SourceStream:    "opportunities",
		SourceGroup:     "coordinator",
		ConsumerName:    holderID,
		ExecutionStream: "execution-requests",
		DuplicateWindow: time.Duration(cfg.Stream.DuplicateWindowMillis) * time.Millisecond,
		BatchSize:       cfg.Stream.BatchSize,
		BlockMs:         time.Duration(cfg.Stream.BlockMillis) * time.Millisecond,
		KnownChains:     knownChains,
	}
	router := coordinator.NewRouter(routerCfg, streamClient, elector, breaker, logging.ForStream(baseLogger, routerCfg.SourceStream, routerCfg.SourceGroup, holderID))

	var dlqStore *dlqstore.Store
	var archiver *stream.Consumer
	if cfg.DlqArchive.Enabled {
		dlqStore, err = newDlqStore(cfg)
		if err != nil {
			logger.Fatalw("failed to init DLQ archive store", "error", err)
		}
		archiveLogger := logging.ForStream(baseLogger, stream.DlqStreamName(routerCfg.SourceStream), "dlq-archiver", holderID)
		archiver = dlqstore.NewArchiver(streamClient, routerCfg.SourceStream, "dlq-archiver", holderID, routerCfg.BatchSize, routerCfg.BlockMs, dlqStore, archiveLogger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := acquireLeadershipLoop(ctx, elector, logger); err != nil && ctx.Err() == nil {
			logger.Errorw("leadership loop exited", "error", err)
		}
	}()

	go func() {
		if err := router.Start(ctx); err != nil {
			logger.Fatalw("router failed to start", "error", err)
		}
	}()

	if archiver != nil {
		if err := streamClient.CreateGroup(ctx, stream.DlqStreamName(routerCfg.SourceStream), "dlq-archiver", "0"); err != nil {
			logger.Fatalw("failed to create DLQ archiver group", "error", err)
		}
		go archiver.Start(ctx)
		go runDlqRetentionLoop(ctx, dlqStore, time.Duration(cfg.DlqArchive.RetentionDays)*24*time.Hour, logger)
	}

	opsAddr := fmt.Sprintf("%s:%d", cfg.Ops.Host, cfg.Ops.Port)
	ops := opsserver.New(opsAddr, logger, leaderHealthCheck(elector), breakerHealthCheck(breaker))
	go ops.Start()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining router")
	router.Stop()
	if archiver != nil {
		archiver.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, ops.Shutdown(shutdownCtx))
	shutdownErr = multierr.Append(shutdownErr, elector.Release(shutdownCtx))
	if dlqStore != nil {
		shutdownErr = multierr.Append(shutdownErr, dlqStore.Close())
	}
	if shutdownErr != nil {
		logger.Warnw("errors while draining shutdown", "errors", shutdownErr)
	}

	logger.Info("coordinator process exited")
}

func newDlqStore(cfg *config.Config) (*dlqstore.Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DlqArchive.Host, cfg.DlqArchive.Port, cfg.DlqArchive.User, cfg.DlqArchive.Password, cfg.DlqArchive.Name, cfg.DlqArchive.SSLMode,
	)
	return dlqstore.New(dsn)
}

// runDlqRetentionLoop periodically purges archived DLQ entries past
// retention, mirroring the teacher's notification-log auto-cleanup cadence.
func runDlqRetentionLoop(ctx context.Context, store *dlqstore.Store, retention time.Duration, logger interface {
	Warnw(string, ...interface{})
}) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.DeleteOlderThan(ctx, time.Now().Add(-retention)); err != nil {
				logger.Warnw("dlq retention sweep failed", "error", err)
			}
		}
	}
}

// acquireLeadershipLoop repeatedly tries to acquire (or, once held,
// extend) the distributed leader lease until ctx is cancelled (spec.md
// §9 "the coordinator that holds the lease handles routing; others
// idle").
func acquireLeadershipLoop(ctx context.Context, elector *coordinator.LeaderElector, logger interface {
	Warnw(string, ...interface{})
}) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	isLeader := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !isLeader {
				ok, err := elector.TryAcquire(ctx)
				if err != nil {
					logger.Warnw("leader acquire failed", "error", err)
					continue
				}
				isLeader = ok
				continue
			}
			ok, err := elector.Extend(ctx)
			if err != nil {
				logger.Warnw("leader lease extend failed", "error", err)
			}
			isLeader = ok
		}
	}
}

func leaderHealthCheck(elector *coordinator.LeaderElector) opsserver.HealthCheck {
	return func() (string, bool, string) {
		isLeader, err := elector.IsLeader(context.Background())
		if err != nil {
			return "leader", false, err.Error()
		}
		if isLeader {
			return "leader", true, "holding lease"
		}
		return "leader", true, "follower"
	}
}

func breakerHealthCheck(breaker *coordinator.Breaker) opsserver.HealthCheck {
	return func() (string, bool, string) {
		state := breaker.State()
		return "breaker", state != coordinator.BreakerOpen, breakerStateName(state)
	}
}

func breakerStateName(s coordinator.BreakerState) string {
	switch s {
	case coordinator.BreakerOpen:
		return "open"
	case coordinator.BreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
