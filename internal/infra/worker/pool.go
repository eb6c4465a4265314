// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-media-worker/internal/config"
	"ai-media-worker/internal/domain"
	"ai-media-worker/internal/domain/model"
	"ai-media-worker/internal/domain/ports/adapter"
	"ai-media-worker/internal/domain/ports/repository"
	"ai-media-worker/internal/infra/logging"
	"ai-media-worker/internal/infra/metrics"
)

// WakeListener is the wake signal the pool blocks on while the queue is
// empty. Implemented by the Postgres notification listener; a fake suffices
// in tests.
type WakeListener interface {
	Start(ctx context.Context)
	Wait(ctx context.Context, timeout time.Duration)
	Broadcast()
	Close()
}

type Health string

const (
	HealthStarting  Health = "starting"
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
)

const (
	rateLimitedSleep  = 500 * time.Millisecond
	claimErrorSleep   = time.Second
	drainPollInterval = 50 * time.Millisecond
)

// Pool runs `concurrency` independent claim → execute → release loops.
// Each loop handles one job at a time, so total parallelism equals loop
// count and a slow provider call blocks only its own loop. The claim
// operation is the only shared mutable job state; it is serialized entirely
// by the job store's row lock.
type Pool struct {
	cfg      config.WorkerConfig
	jobs     repository.JobRepository
	limiter  adapter.RateLimiter
	exec     *Executor
	listener WakeListener
	log      *zerolog.Logger

	running    atomic.Bool
	health     atomic.Value // Health
	activeJobs atomic.Int64
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

func NewPool(
	cfg config.WorkerConfig,
	jobs repository.JobRepository,
	limiter adapter.RateLimiter,
	exec *Executor,
	listener WakeListener,
	logger *zerolog.Logger,
) *Pool {
	l := logger.With().Str("component", "WorkerPool").Str("worker_id", cfg.ID).Logger()
	p := &Pool{
		cfg:      cfg,
		jobs:     jobs,
		limiter:  limiter,
		exec:     exec,
		listener: listener,
		log:      &l,
	}
	p.health.Store(HealthStarting)
	return p
}

// Start spawns the loops and the listener, then returns immediately so a
// health check can report readiness without waiting on queue activity.
func (p *Pool) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running.Store(true)

	p.listener.Start(loopCtx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(loopCtx, i)
	}

	p.health.Store(HealthHealthy)
	p.log.Info().Int("concurrency", p.cfg.Concurrency).Msg("worker pool started")
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With().Int("loop", id).Logger()

	for p.running.Load() && ctx.Err() == nil {
		if check := p.limiter.CanProcess(ctx); !check.Allowed {
			log.Debug().Int("limit", check.Limit).Msg("rate limited, backing off")
			sleepCtx(ctx, rateLimitedSleep)
			continue
		}

		job, err := p.jobs.Claim(ctx, p.cfg.ID)
		if errors.Is(err, domain.ErrNoJobAvailable) {
			p.listener.Wait(ctx, p.cfg.FallbackPollInterval)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Nothing was mutated; the job (if any) stays claimable elsewhere.
			log.Error().Err(err).Msg("claim failed")
			sleepCtx(ctx, claimErrorSleep)
			continue
		}

		p.limiter.Consume(ctx)
		p.runJob(job)
	}
}

func (p *Pool) runJob(job *model.Job) {
	metrics.SetActiveJobs(int(p.activeJobs.Add(1)))
	defer func() {
		metrics.SetActiveJobs(int(p.activeJobs.Add(-1)))
	}()

	// In-flight work is never cancelled by Stop; shutdown drains instead.
	jobCtx := logging.WithWorkerID(logging.WithJobID(context.Background(), job.ID), p.cfg.ID)
	p.exec.Execute(jobCtx, job)
}

// Stop is idempotent: it flips running off, wakes every blocked loop, then
// polls until all in-flight jobs have drained before releasing the listener
// connection. Drain is cooperative: it takes as long as the slowest
// in-flight provider call.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.log.Info().Msg("worker pool stopping")
		p.running.Store(false)
		if p.cancel != nil {
			p.cancel()
		}
		p.listener.Broadcast()

		for p.activeJobs.Load() > 0 {
			time.Sleep(drainPollInterval)
		}
		p.wg.Wait()
		p.listener.Close()

		p.health.Store(HealthUnhealthy)
		p.log.Info().Msg("worker pool stopped")
	})
}

// Health reports the pool's lifecycle state for the health endpoint.
func (p *Pool) Health() Health {
	return p.health.Load().(Health)
}

// ActiveJobs reports how many jobs this process is executing right now.
func (p *Pool) ActiveJobs() int {
	return int(p.activeJobs.Load())
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
