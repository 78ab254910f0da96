package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dexarb/internal/metrics"
	"dexarb/internal/models"
)

// Handler processes one message and decides its own ack policy: a nil
// return does not auto-ack (spec.md §4.7 "Auto-ack is false by default
// in this core; the handler must ack explicitly").
type Handler func(ctx context.Context, msg models.StreamMessage) error

// Consumer is the Stream Consumer (C9): a long-running task driving
// Client.BlockingReadGroup, with pause/resume backpressure (spec.md
// §4.7, §5 "Backpressure"). Its run loop is grounded on the teacher's
// internal/websocket/hub.go Run select-loop, generalized from
// register/unregister/broadcast channels to a resume-signal channel
// plus a stop flag.
type Consumer struct {
	Stream    string
	Group     string
	ConsumerName string
	BatchSize int64
	BlockMs   time.Duration

	client  *Client
	handler Handler
	logger  *zap.SugaredLogger

	paused  atomic.Bool
	stopped atomic.Bool
	resumeCh chan struct{}

	wg sync.WaitGroup
}

// NewConsumer constructs a Consumer. CreateGroup must be called by the
// caller before Start (ownership of startId policy stays with the
// caller, matching spec.md's createGroup being a distinct C8 op).
func NewConsumer(client *Client, stream, group, consumerName string, batchSize int64, blockMs time.Duration, handler Handler, logger *zap.SugaredLogger) *Consumer {
	return &Consumer{
		Stream:       stream,
		Group:        group,
		ConsumerName: consumerName,
		BatchSize:    batchSize,
		BlockMs:      blockMs,
		client:       client,
		handler:      handler,
		logger:       logger,
		resumeCh:     make(chan struct{}, 1),
	}
}

// Start runs the consumer loop until ctx is cancelled or Stop is
// called. It blocks the calling goroutine; callers run it as `go
// consumer.Start(ctx)` (spec.md §5 "one task per stream/group for each
// C9 consumer").
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	defer c.wg.Done()

	for {
		if c.stopped.Load() || ctx.Err() != nil {
			return
		}

		if c.paused.Load() {
			select {
			case <-ctx.Done():
				return
			case <-c.resumeCh:
				continue
			}
		}

		msgs, err := c.client.BlockingReadGroup(ctx, c.Stream, c.Group, c.ConsumerName, c.BatchSize, c.BlockMs)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if c.logger != nil {
				c.logger.Warnw("blockingReadGroup failed", "stream", c.Stream, "group", c.Group, "error", err)
			}
			continue
		}

		for _, m := range msgs {
			if err := c.handler(ctx, m); err != nil && c.logger != nil {
				c.logger.Warnw("handler failed, message left unacked", "stream", c.Stream, "id", m.ID, "error", err)
			}
		}
	}
}

// Stop requests the consumer loop exit; it wakes at the next blockMs
// tick or resume-signal wait (spec.md §5 "A shutdown request flips a
// shared stop flag; long blocking reads wake at their next blockMs
// tick and exit").
func (c *Consumer) Stop() {
	c.stopped.Store(true)
	select {
	case c.resumeCh <- struct{}{}:
	default:
	}
}

// Wait blocks until Start has returned.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

// Pause suspends reads; in-flight handler calls are unaffected
// (spec.md §5 "Backpressure": high watermark -> pause()).
func (c *Consumer) Pause() {
	if c.paused.CompareAndSwap(false, true) {
		metrics.ConsumerPaused.WithLabelValues(c.Stream, c.Group).Set(1)
	}
}

// Resume wakes the loop out of its pause wait (low watermark -> resume()).
func (c *Consumer) Resume() {
	if c.paused.CompareAndSwap(true, false) {
		metrics.ConsumerPaused.WithLabelValues(c.Stream, c.Group).Set(0)
		select {
		case c.resumeCh <- struct{}{}:
		default:
		}
	}
}

// IsPaused reports the consumer's current pause state.
func (c *Consumer) IsPaused() bool {
	return c.paused.Load()
}
