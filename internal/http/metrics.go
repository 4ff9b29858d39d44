package http

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all HTTP and pipeline metrics.
type Metrics struct {
	requestsTotal *prometheus.CounterVec
	requestDur    *prometheus.HistogramVec
	queriesTotal  *prometheus.CounterVec
}

// NewMetrics registers the metric vectors with the given registerer.
// A nil registerer uses the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paddockd_http_requests_total",
			Help: "Total HTTP requests by method, endpoint, and status code.",
		}, []string{"method", "endpoint", "status"}),
		requestDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paddockd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by method and endpoint.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "endpoint"}),
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paddockd_queries_total",
			Help: "Query pipeline outcomes by intent and outcome (answered, flagged, rejected, failed).",
		}, []string{"intent", "outcome"}),
	}
}

// Middleware returns an Echo middleware that records request metrics.
//
// c.Path() is the registered route pattern, not the raw URI, so the
// endpoint label stays low-cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "/"
			}
			method := c.Request().Method
			status := c.Response().Status

			m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
			m.requestDur.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// ObserveQuery records one pipeline outcome.
func (m *Metrics) ObserveQuery(intent, outcome string) {
	if intent == "" {
		intent = "unknown"
	}
	m.queriesTotal.WithLabelValues(intent, outcome).Inc()
}
