// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesProcessed counts frames pushed through the per-session
	// analysis loop.
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swinglab_frames_processed_total",
		Help: "Number of pose frames processed.",
	})

	// InferenceErrors counts per-frame inference or decode failures that
	// were absorbed as estimate gaps.
	InferenceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swinglab_inference_errors_total",
		Help: "Number of per-frame inference errors absorbed.",
	})

	// Estimates counts emitted club estimates by resolution path.
	Estimates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swinglab_club_estimates_total",
		Help: "Number of club estimates emitted, by resolution path.",
	}, []string{"path"})

	// EstimateGaps counts frames where no club estimate could be
	// produced.
	EstimateGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swinglab_estimate_gaps_total",
		Help: "Number of frames without a club estimate.",
	})

	// AnalysisDuration observes the wall time of whole-session metric
	// analysis.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swinglab_analysis_duration_seconds",
		Help:    "Duration of per-session swing metric analysis.",
		Buckets: prometheus.DefBuckets,
	})
)

// Resolution path label values.
const (
	PathMask  = "mask"
	PathShaft = "shaft"
)
