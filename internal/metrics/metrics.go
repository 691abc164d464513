// Package metrics provides Prometheus metrics for conversions and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/sheetconv/internal/core"
	"github.com/JonMunkholm/sheetconv/internal/schema"
)

const namespace = "sheetconv"

// Collector holds all Prometheus metrics for the service.
type Collector struct {
	// Conversion metrics
	Conversions        *prometheus.CounterVec
	Rows               *prometheus.CounterVec
	CellErrors         *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec

	// Import metrics
	RowsImported *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates a collector registered on reg. A nil reg gets a fresh registry
// with the Go and process collectors.
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Collector{
		Conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of conversions by outcome",
			},
			[]string{"schema", "status"},
		),
		Rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Total number of records produced",
			},
			[]string{"schema"},
		),
		CellErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cell_errors_total",
				Help:      "Total number of cell errors by reason",
			},
			[]string{"schema", "reason"},
		),
		ConversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Conversion duration in seconds, reading included",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"schema"},
		),
		RowsImported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_imported_total",
				Help:      "Total number of rows copied into Postgres",
			},
			[]string{"schema"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		gatherer: reg,
	}
}

// Observe records the outcome of one conversion. err is the fatal error, if any.
func (c *Collector) Observe(key string, result core.Result, err error, d time.Duration) {
	c.ConversionDuration.WithLabelValues(key).Observe(d.Seconds())

	status := "ok"
	switch {
	case err != nil:
		status = "failed"
	case len(result.Errors) > 0:
		status = "partial"
	}
	c.Conversions.WithLabelValues(key, status).Inc()
	if err != nil {
		return
	}

	c.Rows.WithLabelValues(key).Add(float64(len(result.Rows)))
	for _, e := range result.Errors {
		c.CellErrors.WithLabelValues(key, reasonLabel(e.Reason)).Inc()
	}
}

// ReasonOther labels cell errors whose reason is free text, such as the
// message of a custom parse function.
const ReasonOther = "other"

// knownReasons bounds the reason label. Values match core and schema.
var knownReasons = map[string]bool{
	core.ReasonInvalid:      true,
	core.ReasonRequired:     true,
	schema.ReasonNotAllowed: true,
	schema.ReasonPattern:    true,
	schema.ReasonOutOfRange: true,
}

func reasonLabel(reason string) string {
	if knownReasons[reason] {
		return reason
	}
	return ReasonOther
}

// ObserveImport records rows copied into the database.
func (c *Collector) ObserveImport(key string, rows int64) {
	c.RowsImported.WithLabelValues(key).Add(float64(rows))
}

// ObserveRequest records one HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
