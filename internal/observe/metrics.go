// Package observe provides application-wide observability primitives for
// mockmentor: OpenTelemetry metrics, tracing setup, and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so metrics remain scrapable
// from the standard /metrics endpoint. Tests should build their own
// [Metrics] with [NewMetrics] and a private [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all mockmentor metrics.
const meterName = "github.com/mockmentor/mockmentor"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation, so a single
// Metrics value is shared freely across goroutines.
type Metrics struct {
	// AnalysisDuration tracks end-to-end session analysis latency, oracle
	// round-trips included.
	AnalysisDuration metric.Float64Histogram

	// OracleDuration tracks per-dimension oracle call latency. Use with
	// attribute.String("dimension", ...).
	OracleDuration metric.Float64Histogram

	// AnalysesCompleted counts finished analyses. Use with
	// attribute.Bool("oracle", ...).
	AnalysesCompleted metric.Int64Counter

	// OracleRequests counts per-dimension oracle calls. Use with
	// attribute.String("dimension", ...), attribute.String("status", ...)
	// where status is "ok" or "fallback".
	OracleRequests metric.Int64Counter

	// OracleFallbacks counts dimensions that fell back to their heuristic
	// score. Use with attribute.String("dimension", ...),
	// attribute.String("reason", ...).
	OracleFallbacks metric.Int64Counter

	// TurnsIngested counts conversation turns accepted by the ingest feed.
	TurnsIngested metric.Int64Counter

	// SkippedTurns counts malformed turns dropped during extraction or ingest.
	SkippedTurns metric.Int64Counter

	// ReportsPersisted counts score report writes. Use with
	// attribute.String("status", ...) — "ok" or "error".
	ReportsPersisted metric.Int64Counter

	// ActiveAnalyses tracks analyses currently in flight.
	ActiveAnalyses metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Oracle
// round-trips dominate analysis latency, so buckets stretch well past typical
// LLM response times.
var latencyBuckets = []float64{
	0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("mockmentor.analysis.duration",
		metric.WithDescription("End-to-end session analysis latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.OracleDuration, err = m.Float64Histogram("mockmentor.oracle.duration",
		metric.WithDescription("Per-dimension oracle call latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysesCompleted, err = m.Int64Counter("mockmentor.analyses.completed",
		metric.WithDescription("Completed session analyses."),
	); err != nil {
		return nil, err
	}
	if met.OracleRequests, err = m.Int64Counter("mockmentor.oracle.requests",
		metric.WithDescription("Oracle rating calls by dimension and status."),
	); err != nil {
		return nil, err
	}
	if met.OracleFallbacks, err = m.Int64Counter("mockmentor.oracle.fallbacks",
		metric.WithDescription("Dimensions that fell back to heuristic scores."),
	); err != nil {
		return nil, err
	}
	if met.TurnsIngested, err = m.Int64Counter("mockmentor.turns.ingested",
		metric.WithDescription("Conversation turns accepted by the ingest feed."),
	); err != nil {
		return nil, err
	}
	if met.SkippedTurns, err = m.Int64Counter("mockmentor.turns.skipped",
		metric.WithDescription("Malformed turns dropped."),
	); err != nil {
		return nil, err
	}
	if met.ReportsPersisted, err = m.Int64Counter("mockmentor.reports.persisted",
		metric.WithDescription("Score report writes by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveAnalyses, err = m.Int64UpDownCounter("mockmentor.analyses.active",
		metric.WithDescription("Analyses currently in flight."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("mockmentor.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}
