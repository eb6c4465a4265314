package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-media-worker/internal/infra/worker"
)

// PoolStatus is the slice of the worker pool the admin surface reads.
type PoolStatus interface {
	Health() worker.Health
	ActiveJobs() int
}

// Server exposes the operational surface: a health endpoint backed by the
// worker pool's lifecycle state and the Prometheus scrape endpoint.
type Server struct {
	pool   PoolStatus
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(port int, pool PoolStatus, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "AdminServer").Logger()
	s := &Server{pool: pool, log: &l}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("admin server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.pool.Health()
	code := http.StatusServiceUnavailable
	if health == worker.HealthHealthy {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     health,
		"activeJobs": s.pool.ActiveJobs(),
	})
}
