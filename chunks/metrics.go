package chunks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	bodyLabel       = "body"
	stateLabel      = "state"
	transitionLabel = "transition"

	transitionCreated    = "created"
	transitionReinstated = "reinstated"
	transitionRetired    = "retired"
	transitionDestroyed  = "destroyed"
)

var (
	chunkRefs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chunk_refs",
		Help: "The number of chunks by state.",
	}, []string{bodyLabel, stateLabel})

	chunkBuilding = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chunk_building",
		Help: "The number of chunks with a build in flight.",
	}, []string{bodyLabel})

	chunkTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunk_transitions_total",
		Help: "The number of chunk state transitions.",
	}, []string{bodyLabel, transitionLabel})

	chunkIntegrated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunk_integrated_total",
		Help: "The number of chunk meshes integrated.",
	}, []string{bodyLabel})

	chunkRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunk_build_retries_total",
		Help: "The number of chunk builds that completed without a mesh.",
	}, []string{bodyLabel})

	chunkTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chunk_tick_duration_seconds",
		Help:    "The time to update the chunks of a body.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{bodyLabel})
)

func instrumentRefs(body string, active, cleanup, building int) {
	chunkRefs.With(prometheus.Labels{
		bodyLabel:  body,
		stateLabel: RefActive.String(),
	}).Set(float64(active))

	chunkRefs.With(prometheus.Labels{
		bodyLabel:  body,
		stateLabel: RefCleanup.String(),
	}).Set(float64(cleanup))

	chunkBuilding.
		With(prometheus.Labels{bodyLabel: body}).
		Set(float64(building))
}

func instrumentTransition(body, transition string) {
	chunkTransitions.
		With(prometheus.Labels{
			bodyLabel:       body,
			transitionLabel: transition,
		}).
		Inc()
}

func instrumentIntegrate(body string) {
	chunkIntegrated.
		With(prometheus.Labels{bodyLabel: body}).
		Inc()
}

func instrumentRetry(body string) {
	chunkRetries.
		With(prometheus.Labels{bodyLabel: body}).
		Inc()
}

func instrumentTick(body string, d time.Duration) {
	chunkTickDuration.
		With(prometheus.Labels{bodyLabel: body}).
		Observe(d.Seconds())
}
