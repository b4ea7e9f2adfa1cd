package mesher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeLabel = "outcome"

	outcomeBuilt    = "built"
	outcomeEmpty    = "empty"
	outcomeCanceled = "canceled"
	outcomePanic    = "panic"
)

var (
	mesherBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mesher_builds_total",
		Help: "The number of chunk builds processed by workers.",
	}, []string{outcomeLabel})

	mesherBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "mesher_build_duration_seconds",
		Help: "The time to build a chunk mesh.",
	}, []string{outcomeLabel})

	mesherInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mesher_in_flight",
		Help: "The number of chunk builds queued or running.",
	})

	mesherThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesher_throttled_total",
		Help: "The number of chunk builds refused because too many were in flight.",
	})

	mesherWorkerRespawns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesher_worker_respawns_total",
		Help: "The number of workers respawned after a crash.",
	})
)

func instrumentBuild(outcome string, d time.Duration) {
	labels := prometheus.Labels{outcomeLabel: outcome}
	mesherBuilds.With(labels).Inc()
	mesherBuildDuration.With(labels).Observe(d.Seconds())
}

func instrumentSubmit() {
	mesherInFlight.Inc()
}

func instrumentRelease() {
	mesherInFlight.Dec()
}

func instrumentThrottle() {
	mesherThrottled.Inc()
}

func instrumentRespawns(n int) {
	mesherWorkerRespawns.Add(float64(n))
}
