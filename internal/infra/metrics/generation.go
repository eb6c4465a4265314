package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(generationLatencyMs) }

var generationLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_calls_latency_ms",
		Help:    "Provider call latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	},
	[]string{"provider", "model", "call", "success"}, // call: 'image', 'edit', 'video_start', 'video_poll'
)

func ObserveGenerationCall(provider, model, call string, latencyMs int, success bool) {
	generationLatencyMs.WithLabelValues(norm(provider), norm(model), norm(call), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}
