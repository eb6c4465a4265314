package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(listenerWakeupsTotal, listenerErrorsTotal) }

var listenerWakeupsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "job_listener_wakeups_total",
		Help: "Notifications received on the job channel.",
	},
)

var listenerErrorsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "job_listener_errors_total",
		Help: "Listener connection errors (component degrades to polling).",
	},
)

func IncListenerWakeup() { listenerWakeupsTotal.Inc() }
func IncListenerError()  { listenerErrorsTotal.Inc() }
