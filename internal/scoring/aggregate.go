package scoring

import (
	"fmt"
	"math"

	"github.com/mockmentor/mockmentor/pkg/types"
)

// DefaultWeights are the canonical per-dimension weights for the overall
// score. Technical knowledge carries the most weight for role-based
// interviews.
func DefaultWeights() map[types.Dimension]float64 {
	return map[types.Dimension]float64{
		types.DimensionConfidence:    0.15,
		types.DimensionTechnical:     0.30,
		types.DimensionCommunication: 0.25,
		types.DimensionFluency:       0.15,
		types.DimensionBaseKnowledge: 0.15,
	}
}

// weightSumTolerance absorbs float64 representation error when checking that
// weights sum to 1.0.
const weightSumTolerance = 1e-9

// Feedback thresholds and bands.
const (
	strengthThreshold    = 75
	improvementThreshold = 60
	excellentBand        = 80
	goodBand             = 60
)

// Generic fallbacks guaranteeing the feedback lists are never empty.
const (
	fallbackStrength    = "Shows potential in interview responses"
	fallbackImprovement = "Continue practicing interview skills"
)

// Summary texts per band.
const (
	summaryExcellent = "Excellent interview performance with strong technical and communication skills. Continue building on this foundation."
	summaryGood      = "Good foundation with room for improvement. Focus on strengthening technical skills and communication clarity."
	summaryNeedsWork = "Requires focused preparation and skill development. Recommend additional practice and study before next interview."
)

// Canned per-dimension feedback lines.
var (
	strengthLines = map[types.Dimension]string{
		types.DimensionConfidence:    "Shows strong confidence in responses",
		types.DimensionTechnical:     "Demonstrates solid technical knowledge",
		types.DimensionCommunication: "Excellent communication and articulation skills",
		types.DimensionFluency:       "Speaks fluently with a natural, easy flow",
		types.DimensionBaseKnowledge: "Strong grasp of the fundamentals for the role",
	}
	improvementLines = map[types.Dimension]string{
		types.DimensionConfidence:    "Work on building confidence and assertiveness",
		types.DimensionTechnical:     "Enhance technical skills and knowledge base",
		types.DimensionCommunication: "Improve communication clarity and organization",
		types.DimensionFluency:       "Reduce filler words and practice smoother delivery",
		types.DimensionBaseKnowledge: "Strengthen core concepts and role fundamentals",
	}
)

// Aggregator combines the five dimension scores into the weighted overall
// score and derives rule-based qualitative feedback. It is read-only after
// construction and safe for concurrent use.
type Aggregator struct {
	weights map[types.Dimension]float64
}

// NewAggregator creates an Aggregator with the given weights, or
// DefaultWeights when weights is nil. The weights must cover exactly the five
// dimensions and sum to 1.0; a violating configuration is rejected here, at
// construction, so it can never silently skew scores at analysis time.
func NewAggregator(weights map[types.Dimension]float64) (*Aggregator, error) {
	if weights == nil {
		weights = DefaultWeights()
	}

	sum := 0.0
	for _, d := range types.AllDimensions() {
		w, ok := weights[d]
		if !ok {
			return nil, fmt.Errorf("scoring: missing weight for dimension %q", d)
		}
		if w < 0 {
			return nil, fmt.Errorf("scoring: negative weight %v for dimension %q", w, d)
		}
		sum += w
	}
	if len(weights) != len(types.AllDimensions()) {
		return nil, fmt.Errorf("scoring: weights contain unknown dimensions (got %d entries)", len(weights))
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, fmt.Errorf("scoring: weights sum to %v, want 1.0", sum)
	}

	// Copy so later mutation of the caller's map cannot skew scores.
	own := make(map[types.Dimension]float64, len(weights))
	for d, w := range weights {
		own[d] = w
	}
	return &Aggregator{weights: own}, nil
}

// Overall returns the weighted sum of the dimension scores rounded to the
// nearest integer. Deterministic: the same scores always yield the same
// overall.
func (a *Aggregator) Overall(scores types.DimensionScores) int {
	sum := 0.0
	for d, w := range a.weights {
		sum += float64(scores[d]) * w
	}
	return int(math.Round(sum))
}

// Feedback derives strengths, improvements, and a summary from the dimension
// scores. Dimensions at or above strengthThreshold contribute a strength
// line; dimensions below improvementThreshold contribute an improvement
// line; empty lists get a generic fallback so neither is ever empty. The
// summary band is chosen on the unweighted mean of the five scores.
func (a *Aggregator) Feedback(scores types.DimensionScores) types.Feedback {
	var fb types.Feedback

	for _, d := range types.AllDimensions() {
		switch s := scores[d]; {
		case s >= strengthThreshold:
			fb.Strengths = append(fb.Strengths, strengthLines[d])
		case s < improvementThreshold:
			fb.Improvements = append(fb.Improvements, improvementLines[d])
		}
	}
	if len(fb.Strengths) == 0 {
		fb.Strengths = []string{fallbackStrength}
	}
	if len(fb.Improvements) == 0 {
		fb.Improvements = []string{fallbackImprovement}
	}

	switch mean := scores.Mean(); {
	case mean >= excellentBand:
		fb.Summary = summaryExcellent
	case mean >= goodBand:
		fb.Summary = summaryGood
	default:
		fb.Summary = summaryNeedsWork
	}
	return fb
}
