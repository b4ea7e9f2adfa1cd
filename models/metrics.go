package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "frame_duration_seconds",
		Help:    "The time to run all the handlers of a frame.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	frameOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frame_overruns_total",
		Help: "The number of frames that took longer than the frame duration.",
	})

	frameHandlerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frame_handler_count",
		Help: "The number of registered frame handlers.",
	})

	cameraUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camera_updates_total",
		Help: "The number of point of view updates.",
	})
)

func instrumentFrame(d, budget time.Duration) {
	frameDuration.Observe(d.Seconds())
	if d > budget {
		frameOverruns.Inc()
	}
}

func instrumentFrameHandlers(n int) {
	frameHandlerCount.Set(float64(n))
}

func instrumentCameraUpdate() {
	cameraUpdates.Inc()
}
