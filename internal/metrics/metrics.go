// Package metrics exposes Prometheus instruments for the interaction cycle.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hammamikhairi/armate/internal/logger"
)

// Turn outcomes.
const (
	OutcomeOK               = "ok"
	OutcomeUnavailable      = "unavailable"
	OutcomePermissionDenied = "permission_denied"
	OutcomeBusy             = "busy"
	OutcomeCaptureFailed    = "capture_failed"
)

var (
	Turns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "armate_turns_total",
			Help: "Completed turns by outcome",
		},
		[]string{"outcome"},
	)

	SubmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "armate_submit_duration_seconds",
			Help:    "Conversation service round trip in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 30},
		},
	)

	CaptureSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "armate_capture_seconds",
			Help:    "Length of captured utterances in seconds",
			Buckets: prometheus.LinearBuckets(1, 2, 8),
		},
	)

	Recording = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "armate_recording",
			Help: "1 while the microphone is recording",
		},
	)

	PlacementUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "armate_placement_updates_total",
			Help: "Anchor moves caused by selection events",
		},
	)

	StaleCompletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "armate_stale_playback_completions_total",
			Help: "Playback completions ignored because a newer reply was active",
		},
	)
)

// ObserveSubmit records one round trip that started at start.
func ObserveSubmit(start time.Time) {
	SubmitDuration.Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics: serving on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
