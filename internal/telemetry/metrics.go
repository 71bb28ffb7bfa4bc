// Package telemetry provides application-level observability for the Package Index.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<PIX_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - ActiveState identity lookup counters (labelled by entity and outcome)
//   - Trusted publisher registration counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/publishers/activestate/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as publisher IDs.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening:
//
//	import _ "github.com/package-index/package-index/internal/telemetry"
//
// Or import it directly and use an exported var:
//
//	telemetry.PublisherLookupsTotal.WithLabelValues("organization", "ok").Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/v1/publishers/activestate/:id),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
//
// Example PromQL queries:
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
//   - Average latency:                   rate(http_request_duration_seconds_sum[5m]) / rate(http_request_duration_seconds_count[5m])
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// ActiveState lookup metrics — recorded by the identity lookup client.
//
// PublisherLookupsTotal is a CounterVec with labels {entity, outcome}.  "entity"
// is "organization" or "actor"; "outcome" is one of "ok", "not_found",
// "unavailable", or "error".  The "unavailable" and "error" outcomes indicate
// remote-side problems and are the interesting alert signals; "not_found" is
// ordinary user typo traffic.
//
// Example PromQL queries:
//   - Remote failure rate:     sum(rate(publisher_lookups_total{outcome=~"unavailable|error"}[5m]))
//   - Lookup volume by entity: sum by (entity) (rate(publisher_lookups_total[1h]))
//   - Alert expression:        increase(publisher_lookups_total{outcome="unavailable"}[15m]) > 5
var PublisherLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "publisher_lookups_total",
		Help: "Total number of ActiveState identity lookups, by entity and outcome.",
	},
	[]string{"entity", "outcome"},
)

// Trusted publisher registration metrics.
//
// PublisherRegistrationsTotal is a CounterVec with labels {kind, result}.
// "kind" is "project" (registration against an existing project) or "pending"
// (registration that reserves a project name); "result" is "accepted" or
// "rejected".  Rejections are form validation failures, not errors.
//
// Example PromQL queries:
//   - Acceptance rate:  sum(rate(publisher_registrations_total{result="accepted"}[1h]))
//   - Rejection ratio:  sum(rate(publisher_registrations_total{result="rejected"}[1h])) / sum(rate(publisher_registrations_total[1h]))
var PublisherRegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "publisher_registrations_total",
		Help: "Total number of trusted publisher registration attempts, by kind and result.",
	},
	[]string{"kind", "result"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <PIX_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
