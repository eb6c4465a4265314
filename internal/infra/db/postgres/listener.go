package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"ai-media-worker/internal/infra/metrics"
)

// Listener turns Postgres NOTIFY events on NotifyChannel into a broadcast
// wake signal for idle worker loops. One notification must wake every idle
// loop, not just one, since any of them may be eligible to claim the new
// job: the signal is a channel that gets closed on each notification and
// immediately re-armed for subsequent waiters.
//
// The listener holds one dedicated connection. If that connection fails it
// logs, releases the connection and stays degraded: workers keep re-checking
// the queue on their fallback poll interval, so progress never depends on
// the subscription being alive.
type Listener struct {
	pool    *pgxpool.Pool
	enabled bool
	log     *zerolog.Logger

	mu   sync.Mutex
	wake chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(pool *pgxpool.Pool, enabled bool, logger *zerolog.Logger) *Listener {
	l := logger.With().Str("component", "JobListener").Logger()
	return &Listener{
		pool:    pool,
		enabled: enabled,
		log:     &l,
		wake:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins consuming notifications. A disabled listener starts nothing;
// Wait then operates purely on its timeout (poll-only mode).
func (l *Listener) Start(ctx context.Context) {
	if !l.enabled {
		close(l.done)
		l.log.Info().Msg("notifications disabled, operating as pure poller")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	go l.run(runCtx)
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		metrics.IncListenerError()
		l.log.Error().Err(err).Msg("could not acquire listen connection, degrading to polling only")
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		metrics.IncListenerError()
		l.log.Error().Err(err).Msg("LISTEN failed, degrading to polling only")
		return
	}
	l.log.Info().Str("channel", NotifyChannel).Msg("listening for job notifications")

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncListenerError()
			l.log.Error().Err(err).Msg("notification connection lost, degrading to polling only")
			return
		}
		metrics.IncListenerWakeup()
		l.Broadcast()
	}
}

// Broadcast wakes every goroutine currently blocked in Wait and re-arms a
// fresh signal for subsequent waiters.
func (l *Listener) Broadcast() {
	l.mu.Lock()
	close(l.wake)
	l.wake = make(chan struct{})
	l.mu.Unlock()
}

// Wait blocks until a notification arrives, the fallback timeout elapses, or
// ctx is done. The timeout bounds idle latency when a notification is
// dropped or the subscription is disabled.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) {
	l.mu.Lock()
	ch := l.wake
	l.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
	case <-t.C:
	case <-ctx.Done():
	}
}

// Close stops the subscription and releases the dedicated connection.
// Safe to call once workers have drained.
func (l *Listener) Close() {
	if l.cancel != nil {
		l.cancel()
	}
	<-l.done
}
