package chain

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dexarb/internal/metrics"
	"dexarb/pkg/errkind"
	"dexarb/pkg/ratelimit"
	"dexarb/pkg/retry"
)

// subscribeRate/subscribeBurst throttle how often this supervisor may
// open a new subscription to any one endpoint, so a flapping connection
// cannot hammer a provider's subscribe/resubscribe limit during rapid
// reconnect cycles (spec.md §6 "rate-limited" error class this guards
// against).
const (
	subscribeRate  = 1.0
	subscribeBurst = 3.0
)

// maxMessageSize closes the connection with a policy-violation code when
// exceeded (spec.md §4.1 "Failure semantics").
const maxMessageSize = 1 << 20 // 1 MiB

// healthyWindow is the sustained-traffic duration after which an
// endpoint's attempt counter resets (spec.md §4.1).
const healthyWindow = 30 * time.Second

// Dialer is the minimal subset of gorilla/websocket's dialer this
// supervisor needs, narrowed so tests can substitute a fake.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (*websocket.Conn, *http.Response, error)
}

// Classifier maps a raw subscription error to its semantic class
// (spec.md §6). The default classifier matches common rate-limit and
// capacity substrings; callers may override per-chain.
type Classifier func(err error) ErrorClass

// DefaultClassifier classifies errors by substring match against common
// provider rate-limit/capacity wording.
func DefaultClassifier(err error) ErrorClass {
	if err == nil {
		return ErrorOther
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return ErrorRateLimited
	case strings.Contains(msg, "capacity") || strings.Contains(msg, "overloaded"):
		return ErrorOverCapacity
	default:
		return ErrorOther
	}
}

// Supervisor keeps exactly one active subscription to one upstream
// endpoint per chain, reconnecting on disconnect/staleness/rate-limit with
// exponential backoff + jitter and health-scored endpoint rotation
// (spec.md §4.1).
type Supervisor struct {
	ChainID         string
	Primary         string
	Fallbacks       []string
	StalenessAfter  time.Duration
	BlockGapTol     uint64
	Classifier      Classifier
	Logger          *zap.SugaredLogger
	Dialer          Dialer

	scorer  *HealthScorer
	dialer  *retry.Retryer
	limiter *ratelimit.MultiLimiter

	mu              sync.Mutex
	currentURL      string
	attempt         int32
	lastHealthyAt   time.Time
	lastBlockNumber uint64

	stopped atomic.Bool
}

// NewSupervisor constructs a Supervisor for one chain.
func NewSupervisor(chainID, primary string, fallbacks []string, blockTimeMillis int64, logger *zap.SugaredLogger) *Supervisor {
	s := &Supervisor{
		ChainID:        chainID,
		Primary:        primary,
		Fallbacks:      fallbacks,
		StalenessAfter: StalenessTier(blockTimeMillis),
		BlockGapTol:    2,
		Classifier:     DefaultClassifier,
		Logger:         logger,
		Dialer:         websocket.DefaultDialer,
		scorer:         NewHealthScorer(),
		dialer:         retry.NewRetryer(retry.AggressiveConfig()).WithRetryIf(retry.RetryIfNotContext),
		limiter:        ratelimit.NewMultiLimiter(),
		currentURL:     primary,
	}
	for _, url := range s.Endpoints() {
		s.limiter.Add(url, subscribeRate, subscribeBurst)
	}
	return s
}

// Endpoints returns every candidate endpoint (primary + fallbacks).
func (s *Supervisor) Endpoints() []string {
	out := make([]string, 0, 1+len(s.Fallbacks))
	out = append(out, s.Primary)
	out = append(out, s.Fallbacks...)
	return out
}

// GetHealth reports the current endpoint's composite score (spec.md
// §4.1 "getHealth").
func (s *Supervisor) GetHealth() Health {
	s.mu.Lock()
	url := s.currentURL
	s.mu.Unlock()
	return s.scorer.Score(url, time.Now())
}

// RequestRotate hints the supervisor to try the next-best provider on its
// next reconnect decision (spec.md §4.1 "requestRotate"). It does not
// itself tear down the live connection; callers combine it with closing
// the subscription's context to force an immediate rotation.
func (s *Supervisor) RequestRotate(reason string) {
	s.mu.Lock()
	url := s.currentURL
	s.mu.Unlock()
	metrics.ReconnectsTotal.WithLabelValues(s.ChainID, reason).Inc()
	s.scorer.Exclude(url, time.Now().Add(30*time.Second))
}

// Stop halts the supervisor; in-flight Subscribe loops exit at their next
// iteration.
func (s *Supervisor) Stop() {
	s.stopped.Store(true)
}

// Subscribe produces a lazy, infinite, non-restartable sequence of
// decoded logs delivered on the returned channel, tagged with arrival
// time. The channel is closed only when ctx is cancelled or Stop is
// called. Internally it owns the reconnect loop: on disconnect, a
// classified rate-limit error, or staleness, it excludes the current
// endpoint, asks the HealthScorer for the best alternative, and
// reconnects after an exponential-backoff-plus-jitter delay.
func (s *Supervisor) Subscribe(ctx context.Context, filters []string) <-chan DecodedLog {
	out := make(chan DecodedLog, 256)

	go func() {
		defer close(out)
		for {
			if s.stopped.Load() || ctx.Err() != nil {
				return
			}

			url := s.pickEndpoint()
			if err := s.limiter.Wait(ctx, url); err != nil {
				return
			}
			conn, err := s.dial(ctx, url)
			if err != nil {
				s.scorer.RecordFailure(url)
				s.scheduleBackoff(ctx)
				continue
			}

			metrics.ConnectionStatus.WithLabelValues(s.ChainID, url).Set(1)
			s.scorer.RecordSuccess(url)
			s.lastHealthyAt = time.Now()
			atomic.StoreInt32(&s.attempt, 0)

			reason := s.runConnection(ctx, conn, out, url)
			metrics.ConnectionStatus.WithLabelValues(s.ChainID, url).Set(0)

			if s.stopped.Load() || ctx.Err() != nil {
				return
			}

			if time.Since(s.lastHealthyAt) >= healthyWindow {
				atomic.StoreInt32(&s.attempt, 0)
			}

			metrics.ReconnectsTotal.WithLabelValues(s.ChainID, reason).Inc()
			hits := int(atomic.LoadInt32(&s.attempt))
			s.scorer.Exclude(url, time.Now().Add(RateLimitCooldown(hits)))
			s.scheduleBackoff(ctx)
		}
	}()

	return out
}

// runConnection reads frames off conn until it closes, staleness fires,
// or the context is cancelled; returns the reason the loop exited so the
// caller can classify the next backoff/exclusion.
func (s *Supervisor) runConnection(ctx context.Context, conn *websocket.Conn, out chan<- DecodedLog, url string) string {
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	msgCh := make(chan []byte, 64)
	errCh := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	staleTimer := time.NewTimer(s.StalenessAfter)
	defer staleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "context_cancelled"

		case <-staleTimer.C:
			metrics.StaleConnectionsTotal.WithLabelValues(s.ChainID).Inc()
			return "stale"

		case err := <-errCh:
			class := s.Classifier(err)
			if class == ErrorRateLimited {
				return "rate_limit"
			}
			return "disconnect"

		case data := <-msgCh:
			if !staleTimer.Stop() {
				select {
				case <-staleTimer.C:
				default:
				}
			}
			staleTimer.Reset(s.StalenessAfter)

			log, decodeErr := s.decodeFrame(data)
			if decodeErr != nil {
				continue
			}

			if s.lastBlockNumber != 0 && log.BlockNumber > s.lastBlockNumber+s.BlockGapTol {
				metrics.DataGapsTotal.WithLabelValues(s.ChainID).Inc()
			}
			s.lastBlockNumber = log.BlockNumber

			select {
			case out <- log:
			case <-ctx.Done():
				return "context_cancelled"
			}
		}
	}
}

// decodeFrame is a placeholder hook for the wire format of the upstream
// provider; the concrete ABI/topic decoding is performed by
// internal/decode once a DecodedLog reaches the detection pipeline. Real
// deployments plug a provider-specific frame parser in here; this core
// only specifies the DecodedLog shape it must produce (spec.md §6).
func (s *Supervisor) decodeFrame(data []byte) (DecodedLog, error) {
	if len(data) == 0 {
		return DecodedLog{}, errors.New("empty frame")
	}
	return DecodedLog{
		ArrivedAtMillis: time.Now().UnixMilli(),
	}, nil
}

// dial opens the websocket connection to url. The dial itself is
// retried a handful of times with AggressiveConfig's short
// backoff+jitter (spec.md §9's reconnect grounding) before the caller's
// outer loop falls back to scheduleBackoff's endpoint-rotation delay —
// this absorbs a single flaky connect attempt without burning a whole
// rotation cycle over it.
func (s *Supervisor) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var conn *websocket.Conn
	start := time.Now()
	err := s.dialer.Do(dctx, func() error {
		c, _, dialErr := s.Dialer.DialContext(dctx, url, nil)
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	})
	s.scorer.RecordLatency(url, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, errkind.Wrap(errkind.Transient, err)
	}
	return conn, nil
}

func (s *Supervisor) pickEndpoint() string {
	best := s.scorer.Best(s.Endpoints(), time.Now())
	if best == "" {
		best = s.Primary
	}
	s.mu.Lock()
	s.currentURL = best
	s.mu.Unlock()
	return best
}

// scheduleBackoff waits min(base*2^attempt, 60s) + uniform(0,25%) jitter
// before returning, counting the attempt toward the next endpoint's
// exclusion schedule (spec.md §4.1).
func (s *Supervisor) scheduleBackoff(ctx context.Context) {
	attempt := atomic.AddInt32(&s.attempt, 1) - 1

	const base = 500 * time.Millisecond
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	jitter := time.Duration(rand.Float64() * 0.25 * float64(delay))
	delay += jitter

	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
