// ABOUTME: Prometheus instrumentation for the query pipeline on a private registry
// ABOUTME: Implements the agent's Observer and serves /metrics over HTTP
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/models"
)

const namespace = "wellrag"

// Metrics holds every collector
type Metrics struct {
	registry        *prometheus.Registry
	queries         *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	degraded        prometheus.Counter
	verdicts        *prometheus.CounterVec
	attempts        prometheus.Histogram
	confidence      prometheus.Histogram
	extractions     *prometheus.CounterVec
	extractedPoints prometheus.Histogram
}

// New registers the collectors on a fresh registry, plus Go and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries answered, by mode and answer status.",
		}, []string{"mode", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"mode"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_degraded_total",
			Help:      "Retrievals that fell back to a single search backend.",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_verdicts_total",
			Help:      "Final validation verdicts, by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_attempts",
			Help:      "Drafts generated per answered question.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_confidence",
			Help:      "Final judge confidence per answered question.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trajectory_extractions_total",
			Help:      "Trajectory extractions, by method.",
		}, []string{"method"}),
		extractedPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trajectory_points",
			Help:      "Points per extracted trajectory.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	m.registry.MustRegister(
		m.queries, m.queryDuration, m.degraded, m.verdicts, m.attempts, m.confidence,
		m.extractions, m.extractedPoints,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveQuery(mode models.QueryMode, status string, elapsed time.Duration) {
	m.queries.WithLabelValues(string(mode), status).Inc()
	m.queryDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDegraded(string) {
	m.degraded.Inc()
}

func (m *Metrics) ObserveVerdict(accepted bool, attempts int, confidence float64) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.verdicts.WithLabelValues(outcome).Inc()
	m.attempts.Observe(float64(attempts))
	m.confidence.Observe(confidence)
}

func (m *Metrics) ObserveExtraction(method models.ExtractionMethod, points int) {
	m.extractions.WithLabelValues(string(method)).Inc()
	m.extractedPoints.Observe(float64(points))
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, log logger.Logger) error {
	if log == nil {
		log = logger.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
