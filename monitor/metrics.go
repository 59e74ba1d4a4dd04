package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexstar",
		Subsystem: "mount",
		Name:      "commands_total",
		Help:      "Mount commands executed, by operation and result",
	}, []string{"op", "result"})

	pollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nexstar",
		Subsystem: "mount",
		Name:      "poll_duration_seconds",
		Help:      "Duration of one status poll",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	pollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexstar",
		Subsystem: "mount",
		Name:      "poll_errors_total",
		Help:      "Failed status polls, by error kind",
	}, []string{"kind"})

	dialErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nexstar",
		Subsystem: "mount",
		Name:      "dial_errors_total",
		Help:      "Failed attempts to open the mount link",
	})

	connected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nexstar",
		Subsystem: "mount",
		Name:      "connected",
		Help:      "1 while the mount link is open",
	})
)
