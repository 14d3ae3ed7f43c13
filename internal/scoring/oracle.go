package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mockmentor/mockmentor/internal/observe"
	"github.com/mockmentor/mockmentor/internal/resilience"
	"github.com/mockmentor/mockmentor/pkg/provider/llm"
	"github.com/mockmentor/mockmentor/pkg/types"
)

// Defaults for oracle calls.
const (
	defaultOracleTimeout  = 15 * time.Second
	defaultMaxPromptChars = 4000
	oracleTemperature     = 0.3
	oracleMaxTokens       = 10
)

// dimensionRubrics are the per-dimension rating criteria included in the
// oracle prompt.
var dimensionRubrics = map[types.Dimension]string{
	types.DimensionConfidence: `- Use of assertive language vs hesitant phrases
- Clarity and decisiveness in answers
- Self-assurance indicators
- Frequency of filler words or uncertainty markers`,
	types.DimensionTechnical: `- Depth of technical understanding
- Use of appropriate technical terminology
- Problem-solving approach
- Knowledge of relevant technologies and concepts
- Ability to explain complex topics`,
	types.DimensionCommunication: `- Clarity and coherence of responses
- Structure and organization of thoughts
- Ability to articulate ideas effectively
- Listening and responding appropriately
- Professional communication style`,
	types.DimensionFluency: `- Smooth flow of speech (minimal hesitations)
- Proper grammar and sentence structure
- Vocabulary range and appropriateness
- Natural rhythm and pace
- Minimal repetition or filler words`,
	types.DimensionBaseKnowledge: `- Understanding of core concepts
- Industry awareness and trends
- Foundational skills and principles
- General knowledge relevant to the role
- Learning aptitude and curiosity`,
}

// oracleSystemPrompt pins the reply format so parsing stays trivial.
const oracleSystemPrompt = "You are an expert interview assessor. " +
	"Rate the candidate on the requested aspect. " +
	"Return only a number between 1 and 100."

// firstIntPattern extracts the first unsigned integer from an oracle reply.
var firstIntPattern = regexp.MustCompile(`\d+`)

// Oracle refines heuristic dimension scores with ratings from an external
// LLM. The oracle is strictly a refinement: every failure — transport error,
// timeout, open circuit, reply without a number — falls back to the heuristic
// score for that dimension alone, so a flaky backend can never block or skew
// a report beyond what the heuristics produce.
//
// An Oracle is safe for concurrent use.
type Oracle struct {
	provider       llm.Provider
	breaker        *resilience.CircuitBreaker
	timeout        time.Duration
	maxPromptChars int
	metrics        *observe.Metrics
}

// OracleOption is a functional option for NewOracle.
type OracleOption func(*Oracle)

// WithOracleTimeout sets the per-dimension call timeout.
func WithOracleTimeout(d time.Duration) OracleOption {
	return func(o *Oracle) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithOracleBreaker replaces the default circuit breaker configuration.
func WithOracleBreaker(cfg resilience.BreakerConfig) OracleOption {
	return func(o *Oracle) {
		cfg.Name = "oracle"
		o.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

// WithOracleMetrics wires metric instruments for oracle calls.
func WithOracleMetrics(m *observe.Metrics) OracleOption {
	return func(o *Oracle) {
		o.metrics = m
	}
}

// WithMaxPromptChars caps how much response text is quoted in a prompt.
func WithMaxPromptChars(n int) OracleOption {
	return func(o *Oracle) {
		if n > 0 {
			o.maxPromptChars = n
		}
	}
}

// NewOracle creates an Oracle backed by provider.
func NewOracle(provider llm.Provider, opts ...OracleOption) *Oracle {
	o := &Oracle{
		provider:       provider,
		breaker:        resilience.NewCircuitBreaker(resilience.BreakerConfig{Name: "oracle"}),
		timeout:        defaultOracleTimeout,
		maxPromptChars: defaultMaxPromptChars,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Blend rates every dimension with the oracle concurrently and averages each
// successful rating with its heuristic score (integer average, floor). The
// returned map is fresh; heuristics is never mutated.
//
// Per-dimension calls are independent: each runs under its own timeout and a
// failure in one never changes another dimension's outcome.
func (o *Oracle) Blend(ctx context.Context, f FeatureSet, role string, heuristics types.DimensionScores) types.DimensionScores {
	dims := types.AllDimensions()
	results := make([]int, len(dims))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range dims {
		g.Go(func() error {
			results[i] = o.scoreDimension(gctx, d, f, role, heuristics[d])
			return nil
		})
	}
	// Goroutines only record results; no errors are surfaced by design of the
	// fallback policy.
	_ = g.Wait()

	blended := make(types.DimensionScores, len(dims))
	for i, d := range dims {
		blended[d] = results[i]
	}
	return blended
}

// scoreDimension asks the oracle to rate one dimension and blends the answer
// with the heuristic score. Any failure returns heuristic unchanged.
func (o *Oracle) scoreDimension(ctx context.Context, d types.Dimension, f FeatureSet, role string, heuristic int) int {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	var reply string
	err := o.breaker.Execute(func() error {
		resp, callErr := o.provider.Complete(callCtx, llm.CompletionRequest{
			SystemPrompt: oracleSystemPrompt,
			Messages: []llm.Message{
				{Role: "user", Content: o.buildPrompt(d, f, role)},
			},
			Temperature: oracleTemperature,
			MaxTokens:   oracleMaxTokens,
		})
		if callErr != nil {
			return callErr
		}
		if resp == nil {
			return fmt.Errorf("provider returned no response")
		}
		reply = resp.Content
		return nil
	})
	o.recordDuration(ctx, d, time.Since(start))

	if err != nil {
		o.fallback(ctx, d, "call_failed", err)
		return heuristic
	}

	rating, ok := parseRating(reply)
	if !ok {
		o.fallback(ctx, d, "no_integer", fmt.Errorf("reply %q contains no integer", truncate(reply, 80)))
		return heuristic
	}

	o.record(ctx, d, "ok")
	return (heuristic + rating) / 2
}

// buildPrompt constructs the bounded natural-language rating request for one
// dimension.
func (o *Oracle) buildPrompt(d types.Dimension, f FeatureSet, role string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze a %s candidate's interview responses.\n\n", role)
	fmt.Fprintf(&b, "Responses: %s\n\n", truncate(strings.Join(f.Responses, " | "), o.maxPromptChars))
	fmt.Fprintf(&b, "Rate %s from 1-100 based on:\n%s\n\n", dimensionLabel(d), dimensionRubrics[d])
	b.WriteString("Return only a number between 1-100.")
	return b.String()
}

// dimensionLabel renders a dimension name for prompt text.
func dimensionLabel(d types.Dimension) string {
	return strings.ReplaceAll(string(d), "_", " ")
}

// parseRating extracts the first integer from reply and clamps it to [1,100].
// Returns false when the reply contains no parseable integer.
func parseRating(reply string) (int, bool) {
	match := firstIntPattern.FindString(reply)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return clampScore(n), true
}

// truncate bounds s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (o *Oracle) fallback(ctx context.Context, d types.Dimension, reason string, err error) {
	trace.SpanFromContext(ctx).AddEvent("oracle fallback",
		trace.WithAttributes(
			attribute.String("dimension", string(d)),
			attribute.String("reason", reason),
		))
	slog.Debug("oracle fallback to heuristic",
		"dimension", d,
		"reason", reason,
		"model", o.provider.ModelID(),
		"err", err,
	)
	o.record(ctx, d, "fallback")
	if o.metrics != nil {
		o.metrics.OracleFallbacks.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("dimension", string(d)),
				attribute.String("reason", reason),
			))
	}
}

func (o *Oracle) record(ctx context.Context, d types.Dimension, status string) {
	if o.metrics == nil {
		return
	}
	o.metrics.OracleRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("dimension", string(d)),
			attribute.String("status", status),
		))
}

func (o *Oracle) recordDuration(ctx context.Context, d types.Dimension, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.OracleDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("dimension", string(d))))
}
