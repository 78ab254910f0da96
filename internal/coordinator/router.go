package coordinator

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"dexarb/internal/metrics"
	"dexarb/internal/models"
	"dexarb/internal/publisher"
	"dexarb/internal/stream"
	"dexarb/pkg/idhash"
)

// RouterConfig configures the Router (spec.md §4.9).
type RouterConfig struct {
	SourceStream      string // "opportunities"
	SourceGroup       string
	ConsumerName      string
	ExecutionStream   string // "execution-requests"
	DuplicateWindow   time.Duration
	BatchSize         int64
	BlockMs           time.Duration
	KnownChains       map[string]bool
}

// LeaderCheck is the narrow leadership contract the Router needs
// (spec.md §1 "abstract contracts" — *LeaderElector satisfies this in
// production; tests substitute a fixed-answer fake).
type LeaderCheck interface {
	IsLeader(ctx context.Context) (bool, error)
}

// Router is the Coordinator Router (C11): a C9 consumer over the
// opportunities stream that applies leader-check, validation,
// dedup-window, and circuit-breaker gating before forwarding to
// execution-requests (spec.md §4.9).
type Router struct {
	cfg     RouterConfig
	client  *stream.Client
	elector LeaderCheck
	dedup   *DuplicateWindow
	breaker *Breaker
	logger  *zap.SugaredLogger

	consumer *stream.Consumer
}

// NewRouter constructs a Router; call Start to begin consuming.
func NewRouter(cfg RouterConfig, client *stream.Client, elector LeaderCheck, breaker *Breaker, logger *zap.SugaredLogger) *Router {
	r := &Router{
		cfg:     cfg,
		client:  client,
		elector: elector,
		dedup:   NewDuplicateWindow(cfg.DuplicateWindow),
		breaker: breaker,
		logger:  logger,
	}
	r.consumer = stream.NewConsumer(client, cfg.SourceStream, cfg.SourceGroup, cfg.ConsumerName, cfg.BatchSize, cfg.BlockMs, r.handle, logger)
	return r
}

// Start creates the consumer group (idempotent) and runs the consumer
// loop until ctx is cancelled.
func (r *Router) Start(ctx context.Context) error {
	if err := r.client.CreateGroup(ctx, r.cfg.SourceStream, r.cfg.SourceGroup, "$"); err != nil {
		return err
	}
	r.consumer.Start(ctx)
	return nil
}

// Stop requests the router's consumer loop to exit.
func (r *Router) Stop() {
	r.consumer.Stop()
}

// handle implements spec.md §4.9's per-message pipeline. The source
// message is acked on every exit path (step 6: "Ack the source message
// regardless of forward outcome").
func (r *Router) handle(ctx context.Context, msg models.StreamMessage) error {
	ack := func() error { return r.client.Ack(ctx, r.cfg.SourceStream, r.cfg.SourceGroup, msg.ID) }

	isLeader, err := r.elector.IsLeader(ctx)
	if err != nil && r.logger != nil {
		r.logger.Warnw("leader check failed", "error", err)
	}
	if !isLeader {
		return ack()
	}

	opp := publisher.Decode(msg.Data)

	if result := Validate(opp, r.cfg.KnownChains, time.Now()); !result.Valid {
		if dlqErr := r.client.MoveToDlq(ctx, r.cfg.SourceStream, r.cfg.SourceGroup, msg.ID, result.Reason, msg.Data); dlqErr != nil {
			return dlqErr
		}
		return nil // MoveToDlq already acked
	}

	legs := make([]idhash.Leg, len(opp.Legs))
	for i, l := range opp.Legs {
		legs[i] = idhash.Leg{DexID: l.DexID, Token0: l.Token0, Token1: l.Token1}
	}
	dupKey := idhash.DuplicateKey(opp.ChainID, opp.BlockNumber, legs)
	if r.dedup.CheckAndMark(dupKey, time.Now()) {
		return ack()
	}

	if !r.breaker.Allow() {
		metrics.OpportunitiesBreakerDroppedTotal.Inc()
		return ack()
	}

	fields := msg.Data
	fields["coordinatorSeenMillis"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	if _, fwdErr := r.client.Append(ctx, r.cfg.ExecutionStream, fields); fwdErr != nil {
		r.breaker.RecordFailure()
		return ack()
	}
	r.breaker.RecordSuccess()
	metrics.OpportunitiesForwardedTotal.Inc()
	return ack()
}
