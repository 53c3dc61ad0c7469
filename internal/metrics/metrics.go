// Package metrics collects and exposes Prometheus metrics for the API.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records saga outcomes and HTTP responses.
type Collector struct {
	sagaStarted          *prometheus.CounterVec
	sagaCommitted        *prometheus.CounterVec
	sagaCompensated      *prometheus.CounterVec
	compensationFailures *prometheus.CounterVec
	httpStatus           *prometheus.CounterVec
}

// NewCollector builds a Collector and registers its metrics on the registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sagaStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gadgetswap_saga_started_total",
			Help: "Sagas started, labeled by saga name.",
		}, []string{"saga"}),
		sagaCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gadgetswap_saga_committed_total",
			Help: "Sagas that completed every step.",
		}, []string{"saga"}),
		sagaCompensated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gadgetswap_saga_compensated_total",
			Help: "Sagas that failed and were fully rolled back.",
		}, []string{"saga"}),
		compensationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gadgetswap_saga_compensation_failures_total",
			Help: "Rollback steps that themselves failed, leaving residual state.",
		}, []string{"saga", "step"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gadgetswap_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.sagaStarted,
		c.sagaCommitted,
		c.sagaCompensated,
		c.compensationFailures,
		c.httpStatus,
	)

	return c
}

// RecordSagaStarted counts a saga invocation.
func (c *Collector) RecordSagaStarted(saga string) {
	c.sagaStarted.WithLabelValues(saga).Inc()
}

// RecordSagaCommitted counts a fully committed saga.
func (c *Collector) RecordSagaCommitted(saga string) {
	c.sagaCommitted.WithLabelValues(saga).Inc()
}

// RecordSagaCompensated counts a saga that failed and unwound cleanly.
func (c *Collector) RecordSagaCompensated(saga string) {
	c.sagaCompensated.WithLabelValues(saga).Inc()
}

// RecordCompensationFailure counts a rollback step failure. These indicate
// orphaned records needing out-of-band cleanup.
func (c *Collector) RecordCompensationFailure(saga, step string) {
	c.compensationFailures.WithLabelValues(saga, step).Inc()
}

// RecordHTTPStatus counts one HTTP response.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the Prometheus scrape handler for the registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
