// File: cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-media-worker/internal/config"
	"ai-media-worker/internal/domain/ports/adapter"
	aiAdapters "ai-media-worker/internal/infra/adapters/ai"
	pg "ai-media-worker/internal/infra/db/postgres"
	httpapi "ai-media-worker/internal/infra/http"
	"ai-media-worker/internal/infra/logging"
	"ai-media-worker/internal/infra/metrics"
	red "ai-media-worker/internal/infra/redis"
	"ai-media-worker/internal/infra/worker"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode (console logs, noop provider allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Worker.Concurrency)+2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	limiter := red.NewFixedWindowLimiter(redisClient, cfg.Worker.ID, cfg.Worker.MaxJobsPerMinute, time.Minute, logger)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	assetRepo := pg.NewAssetRepo(pool)

	// ---- Generation providers ----
	byProvider := map[string]adapter.GenerationAdapter{}
	if cfg.AI.GeminiKey != "" {
		gem, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		byProvider["gemini"] = gem
		logger.Info().Str("image_model", cfg.AI.ImageModel).Str("video_model", cfg.AI.VideoModel).Msg("provider: gemini")
	}
	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, "")
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		byProvider["openai"] = oa
		logger.Info().Msg("provider: openai")
	}
	if len(byProvider) == 0 {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("no generation provider configured: set ai.gemini_key or ai.openai_key")
		}
		byProvider["noop"] = aiAdapters.NewNoopAdapter()
		logger.Warn().Msg("provider: noop (dev mode)")
	}
	gen := aiAdapters.NewLimitedGeneration(
		aiAdapters.NewMultiAdapter(cfg.AI.DefaultProvider, byProvider),
		cfg.AI.ConcurrentLimit,
	)

	// ---- Worker pool ----
	listener := pg.NewListener(pool, cfg.Worker.EnableNotify, logger)
	executor := worker.NewExecutor(jobRepo, assetRepo, gen, cfg.Worker.VideoPollInterval, cfg.Worker.BaseRetryDelay, logger)
	workerPool := worker.NewPool(cfg.Worker, jobRepo, limiter, executor, listener, logger)

	// ---- Admin server (health + metrics) ----
	adminSrv := httpapi.NewServer(cfg.Admin.Port, workerPool, logger)
	go func() {
		if err := adminSrv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	// Sample pool stats for the dashboard until shutdown.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	workerPool.Start(ctx)

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info().Str("signal", s.String()).Msg("shutting down")

	workerPool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin server shutdown")
	}
}
