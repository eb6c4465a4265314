package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-media-worker/internal/domain/ports/adapter"
	"ai-media-worker/internal/infra/metrics"
)

var _ adapter.RateLimiter = (*FixedWindowLimiter)(nil)

const (
	windowKeyPrefix   = "rate_limit:window:"
	workerOverrideKey = "rate_limit:override:"
	fleetOverrideKey  = "rate_limit:override:global"

	// Window keys outlive their window slightly so a lagging worker never
	// increments a key that has already vanished under it.
	expiryBuffer = 10 * time.Second
)

// FixedWindowLimiter implements fleet-wide fixed-window rate limiting on a
// shared Redis counter. The effective limit is re-resolved on every check,
// in priority order: per-worker override key, fleet-wide override key,
// static fallback. An external control loop can retune the fleet live by
// setting the override keys; no worker redeploy needed.
//
// When Redis is unreachable the limiter degrades to a process-local window
// counter: the global cap is no longer accurate while degraded, but this
// worker keeps making progress instead of stalling.
type FixedWindowLimiter struct {
	client        RedisClient
	workerID      string
	fallbackLimit int
	window        time.Duration
	log           *zerolog.Logger

	now func() time.Time // injectable for tests

	mu          sync.Mutex
	degraded    bool
	localWindow int64
	localCount  int
}

func NewFixedWindowLimiter(client RedisClient, workerID string, maxJobsPerWindow int, window time.Duration, logger *zerolog.Logger) *FixedWindowLimiter {
	l := logger.With().Str("component", "RateLimiter").Logger()
	return &FixedWindowLimiter{
		client:        client,
		workerID:      workerID,
		fallbackLimit: maxJobsPerWindow,
		window:        window,
		log:           &l,
		now:           time.Now,
	}
}

func (l *FixedWindowLimiter) windowKey() string {
	return windowKeyPrefix + strconv.FormatInt(l.currentWindow(), 10)
}

func (l *FixedWindowLimiter) currentWindow() int64 {
	return l.now().Unix() / int64(l.window/time.Second)
}

// limit resolves the effective cap: worker override, fleet override, fallback.
func (l *FixedWindowLimiter) limit(ctx context.Context) int {
	if v, err := l.client.Get(ctx, workerOverrideKey+l.workerID); err == nil {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			return n
		}
	}
	if v, err := l.client.Get(ctx, fleetOverrideKey); err == nil {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			return n
		}
	}
	return l.fallbackLimit
}

// CanProcess reads the current window count without mutating it.
func (l *FixedWindowLimiter) CanProcess(ctx context.Context) adapter.RateCheck {
	limit := l.limit(ctx)

	var count int
	v, err := l.client.Get(ctx, l.windowKey())
	switch {
	case err == nil:
		count, _ = strconv.Atoi(v)
		l.setDegraded(false)
	case IsNil(err):
		count = 0
		l.setDegraded(false)
	default:
		count = l.localSnapshot()
		l.setDegraded(true)
	}

	check := adapter.RateCheck{
		Allowed:   count < limit,
		Remaining: maxInt(limit-count, 0),
		Limit:     limit,
	}
	metrics.IncRateLimitCheck(check.Allowed)
	return check
}

// Consume atomically counts one started job against the current window. The
// expiry is set only by whoever lands the first increment of a fresh window.
func (l *FixedWindowLimiter) Consume(ctx context.Context) {
	key := l.windowKey()
	n, err := l.client.Incr(ctx, key)
	if err != nil {
		l.localIncr()
		l.setDegraded(true)
		return
	}
	l.setDegraded(false)
	if n == 1 {
		if err := l.client.Expire(ctx, key, l.window+expiryBuffer); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("could not set window expiry")
		}
	}
}

func (l *FixedWindowLimiter) setDegraded(degraded bool) {
	l.mu.Lock()
	changed := l.degraded != degraded
	l.degraded = degraded
	l.mu.Unlock()
	if changed {
		metrics.SetRateLimitDegraded(degraded)
		if degraded {
			l.log.Warn().Msg("rate limit store unreachable, falling back to process-local counting")
		} else {
			l.log.Info().Msg("rate limit store reachable again")
		}
	}
}

// localSnapshot returns this process's count for the current window,
// resetting it when the window has rolled over.
func (l *FixedWindowLimiter) localSnapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollLocalWindowLocked()
	return l.localCount
}

func (l *FixedWindowLimiter) localIncr() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollLocalWindowLocked()
	l.localCount++
}

func (l *FixedWindowLimiter) rollLocalWindowLocked() {
	w := l.currentWindow()
	if w != l.localWindow {
		l.localWindow = w
		l.localCount = 0
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// WorkerOverrideKey returns the per-worker limit override key, exported for
// operational tooling.
func WorkerOverrideKey(workerID string) string {
	return fmt.Sprintf("%s%s", workerOverrideKey, workerID)
}
