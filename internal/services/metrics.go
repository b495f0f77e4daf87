package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Metrics are the Prometheus collectors shared by the services.
type Metrics struct {
	requests         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	trainingRuns     *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	modelReloads     *prometheus.CounterVec
	modelUsers       prometheus.Gauge
	modelProducts    prometheus.Gauge
	healthStatus     *prometheus.GaugeVec
}

// NewMetrics registers the collectors with reg. Collectors already registered by an
// earlier instance are reused.
func NewMetrics(reg prometheus.Registerer, logger *logrus.Logger) *Metrics {
	return &Metrics{
		requests: register(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopsense_recommendation_requests_total",
			Help: "Recommendation requests by result source and outcome",
		}, []string{"source", "outcome"})),

		latency: register(reg, logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopsense_request_duration_seconds",
			Help:    "Serving latency by operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"})),

		cacheLookups: register(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopsense_cache_lookups_total",
			Help: "Recommendation cache lookups by result",
		}, []string{"result"})),

		trainingRuns: register(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopsense_training_runs_total",
			Help: "Training runs by outcome",
		}, []string{"outcome"})),

		trainingDuration: register(reg, logger, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shopsense_training_duration_seconds",
			Help:    "Wall time of successful training runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		})),

		modelReloads: register(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopsense_model_reloads_total",
			Help: "Model reloads from the artifact store by trigger and outcome",
		}, []string{"trigger", "outcome"})),

		modelUsers: register(reg, logger, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shopsense_model_users",
			Help: "Users in the served model",
		})),

		modelProducts: register(reg, logger, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shopsense_model_products",
			Help: "Products in the served model",
		})),

		healthStatus: register(reg, logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shopsense_health_check_status",
			Help: "Health check status (1 = healthy, 0 = unhealthy)",
		}, []string{"service"})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, logger *logrus.Logger, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("Failed to register metric")
	}
	return c
}

func (m *Metrics) observeRequest(operation, source, outcome string, started time.Time) {
	m.latency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if operation == "recommend" {
		m.requests.WithLabelValues(source, outcome).Inc()
	}
}

func (m *Metrics) setModelShape(users, products int) {
	m.modelUsers.Set(float64(users))
	m.modelProducts.Set(float64(products))
}

func (m *Metrics) setHealth(service string, healthy bool) {
	if healthy {
		m.healthStatus.WithLabelValues(service).Set(1)
	} else {
		m.healthStatus.WithLabelValues(service).Set(0)
	}
}
