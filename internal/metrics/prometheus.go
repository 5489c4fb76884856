package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitchside_runs_total",
		Help: "Total number of narration runs, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pitchside_stage_duration_seconds",
		Help:    "Duration of each run stage",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pitchside_frames_sampled_total",
		Help: "Total number of frames sampled across all runs",
	})

	CaptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitchside_captions_total",
		Help: "Total number of captions, by outcome",
	}, []string{"outcome"})

	CaptionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pitchside_caption_duration_seconds",
		Help:    "Duration of a single frame caption request",
		Buckets: prometheus.DefBuckets,
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pitchside_active_runs",
		Help: "Number of runs currently in progress",
	})

	RejectedRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pitchside_rejected_runs_total",
		Help: "Runs refused because the concurrency limit was reached",
	})
)
