package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitChecksTotal, rateLimitDegraded) }

var rateLimitChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_checks_total",
		Help: "Rate limiter decisions, labeled by outcome.",
	},
	[]string{"outcome"}, // 'allowed', 'refused'
)

var rateLimitDegraded = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "rate_limit_degraded",
		Help: "1 while the limiter runs on its process-local fallback counter.",
	},
)

func IncRateLimitCheck(allowed bool) {
	outcome := "refused"
	if allowed {
		outcome = "allowed"
	}
	rateLimitChecksTotal.WithLabelValues(outcome).Inc()
}

func SetRateLimitDegraded(degraded bool) {
	v := 0.0
	if degraded {
		v = 1.0
	}
	rateLimitDegraded.Set(v)
}
