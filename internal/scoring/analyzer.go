package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mockmentor/mockmentor/internal/observe"
	"github.com/mockmentor/mockmentor/pkg/types"
)

// tracer is the instrumentation scope for analysis spans.
var tracer = otel.Tracer("github.com/mockmentor/mockmentor/internal/scoring")

// TranscriptSource supplies the transcript snapshot for a session.
//
// Implementations must return turns in stable session order and must return a
// distinguishable not-found error for unknown sessions (the transcript
// store's sentinel); Analyze wraps source errors with %w so callers can still
// test for them with errors.Is. A not-found session is the only condition the
// analyzer surfaces as an error.
type TranscriptSource interface {
	Get(ctx context.Context, sessionID string) (types.Transcript, error)
}

// Analyzer is the sole entry point of the scoring pipeline. It owns no
// session state: every call reads one immutable transcript snapshot and
// produces one fresh ScoreReport, so a single Analyzer safely serves
// concurrent analyses across sessions.
type Analyzer struct {
	source    TranscriptSource
	extractor *Extractor
	agg       *Aggregator
	oracle    *Oracle // nil disables oracle blending
	metrics   *observe.Metrics

	// pendingWeights holds WithWeights input until NewAnalyzer validates it.
	pendingWeights map[types.Dimension]float64
}

// AnalyzerOption is a functional option for NewAnalyzer.
type AnalyzerOption func(*Analyzer)

// WithOracle enables oracle blending. A nil oracle leaves the pipeline
// heuristic-only.
func WithOracle(o *Oracle) AnalyzerOption {
	return func(a *Analyzer) {
		a.oracle = o
	}
}

// WithExtractor replaces the default feature extractor.
func WithExtractor(e *Extractor) AnalyzerOption {
	return func(a *Analyzer) {
		a.extractor = e
	}
}

// WithWeights replaces the default aggregation weights. Validation happens in
// NewAnalyzer.
func WithWeights(w map[types.Dimension]float64) AnalyzerOption {
	return func(a *Analyzer) {
		a.agg = nil
		a.pendingWeights = w
	}
}

// WithMetrics wires metric instruments for analysis runs.
func WithMetrics(m *observe.Metrics) AnalyzerOption {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// NewAnalyzer creates an Analyzer reading transcripts from source. It fails
// fast on invalid weights so a misconfigured deployment cannot produce skewed
// scores.
func NewAnalyzer(source TranscriptSource, opts ...AnalyzerOption) (*Analyzer, error) {
	if source == nil {
		return nil, fmt.Errorf("scoring: transcript source must not be nil")
	}
	a := &Analyzer{
		source:    source,
		extractor: NewExtractor(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.agg == nil {
		agg, err := NewAggregator(a.pendingWeights)
		if err != nil {
			return nil, err
		}
		a.agg = agg
	}
	return a, nil
}

// Analyze scores the session's transcript and returns a fresh report.
//
// The only caller-visible failure is an unknown session (the source's
// not-found error, wrapped). A transcript without scorable responses is an
// expected state and yields the documented default report — all dimensions at
// the insufficient-data midpoint with generic feedback — rather than an
// error. Oracle problems never surface; affected dimensions keep their
// heuristic scores.
func (a *Analyzer) Analyze(ctx context.Context, sessionID, role string) (*types.ScoreReport, error) {
	ctx, span := tracer.Start(ctx, "scoring.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("role", role),
	)

	start := time.Now()
	if a.metrics != nil {
		a.metrics.ActiveAnalyses.Add(ctx, 1)
		defer a.metrics.ActiveAnalyses.Add(ctx, -1)
		defer func() {
			a.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())
		}()
	}

	transcript, err := a.source.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("scoring: load transcript for session %q: %w", sessionID, err)
	}

	features := a.extractor.Extract(transcript)
	if features.SkippedTurns > 0 {
		slog.Warn("skipped malformed turns during feature extraction",
			"session_id", sessionID,
			"skipped", features.SkippedTurns,
		)
		if a.metrics != nil {
			a.metrics.SkippedTurns.Add(ctx, int64(features.SkippedTurns))
		}
	}

	scores := ScoreHeuristic(features)
	if a.oracle != nil && len(features.Responses) > 0 {
		scores = a.oracle.Blend(ctx, features, role, scores)
	}

	report := &types.ScoreReport{
		SessionID:  sessionID,
		Role:       role,
		Overall:    a.agg.Overall(scores),
		Scores:     scores,
		Feedback:   a.agg.Feedback(scores),
		ComputedAt: time.Now().UTC(),
	}

	slog.Info("session analyzed",
		"session_id", sessionID,
		"role", role,
		"overall", report.Overall,
		"responses", len(features.Responses),
		"oracle", a.oracle != nil,
	)
	if a.metrics != nil {
		a.metrics.AnalysesCompleted.Add(ctx, 1,
			metric.WithAttributes(attribute.Bool("oracle", a.oracle != nil)))
	}
	return report, nil
}
