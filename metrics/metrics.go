// Package metrics exposes Prometheus instrumentation for the provisioning
// service and a standalone metrics HTTP server, run next to the API server
// on its own listen address.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruteri/validator-provisioning-service/common"
)

// MetricsServer serves the /metrics endpoint on a dedicated address.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on the given address. Metrics
// registered on the default Prometheus registry are exposed.
func New(listenAddr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         listenAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving metrics requests.
func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ProvisioningMetrics instruments the request lifecycle engine.
type ProvisioningMetrics struct {
	RequestsSubmitted  prometheus.Counter
	RequestsSuccessful prometheus.Counter
	RequestsFailed     prometheus.Counter
	KeysGenerated      prometheus.Counter
	ProcessingDuration prometheus.Histogram
	QueuedUnits        prometheus.Gauge
}

// NewProvisioningMetrics creates and registers the engine metrics on the
// given registerer. Pass prometheus.DefaultRegisterer in production, a fresh
// registry in tests.
func NewProvisioningMetrics(reg prometheus.Registerer) *ProvisioningMetrics {
	factory := promauto.With(reg)
	return &ProvisioningMetrics{
		RequestsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: common.PackageName,
			Name:      "requests_submitted_total",
			Help:      "Number of validator requests accepted for processing.",
		}),
		RequestsSuccessful: factory.NewCounter(prometheus.CounterOpts{
			Namespace: common.PackageName,
			Name:      "requests_successful_total",
			Help:      "Number of validator requests that reached successful status.",
		}),
		RequestsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: common.PackageName,
			Name:      "requests_failed_total",
			Help:      "Number of validator requests that reached failed status.",
		}),
		KeysGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: common.PackageName,
			Name:      "keys_generated_total",
			Help:      "Number of validator keys generated and stored.",
		}),
		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: common.PackageName,
			Name:      "request_processing_duration_seconds",
			Help:      "Wall time spent processing one validator request.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		QueuedUnits: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: common.PackageName,
			Name:      "queued_background_units",
			Help:      "Background units submitted but not yet finished.",
		}),
	}
}
