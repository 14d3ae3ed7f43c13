package scoring

import "github.com/mockmentor/mockmentor/pkg/types"

// insufficientDataScore is the midpoint default returned for every dimension
// when a transcript has no scorable responses. Silence is an expected session
// state, not a failure, so it must not be scored as one.
const insufficientDataScore = 50

// Score bounds for every dimension.
const (
	minScore = 1
	maxScore = 100
)

// clampScore bounds v to [minScore, maxScore].
func clampScore(v int) int {
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

// ScoreHeuristic maps a feature set to the five dimension scores using fixed
// formulas. The result is fully deterministic: the same features always
// produce the same scores.
//
// With no responses every dimension gets insufficientDataScore rather than
// the formula applied to zero-valued features.
func ScoreHeuristic(f FeatureSet) types.DimensionScores {
	if len(f.Responses) == 0 {
		scores := make(types.DimensionScores, 5)
		for _, d := range types.AllDimensions() {
			scores[d] = insufficientDataScore
		}
		return scores
	}

	return types.DimensionScores{
		types.DimensionConfidence:    scoreConfidence(f),
		types.DimensionTechnical:     scoreTechnical(f),
		types.DimensionCommunication: scoreCommunication(f),
		types.DimensionFluency:       scoreFluency(f),
		types.DimensionBaseKnowledge: scoreBaseKnowledge(f),
	}
}

// scoreConfidence rewards assertive language over hedging and penalises very
// short answers.
func scoreConfidence(f FeatureSet) int {
	score := 50
	conf := f.MarkerHits[MarkerConfidence]
	hes := f.MarkerHits[MarkerHesitation]
	switch {
	case conf > hes:
		score += 20
	case hes > conf:
		score -= 15
	}
	if f.AvgWordsPerResponse > 30 {
		score += 10
	} else if f.AvgWordsPerResponse < 10 {
		score -= 10
	}
	return clampScore(score)
}

// scoreTechnical grows with the variety of technical vocabulary. The bonus is
// capped so keyword stuffing cannot push the heuristic past 85.
func scoreTechnical(f FeatureSet) int {
	bonus := 3 * f.DistinctTechnicalTerms
	if bonus > 45 {
		bonus = 45
	}
	return clampScore(40 + bonus)
}

// scoreCommunication rewards substantial, well-formed answers.
func scoreCommunication(f FeatureSet) int {
	score := 50
	if f.AvgWordsPerResponse > 25 {
		score += 15
	} else if f.AvgWordsPerResponse < 8 {
		score -= 15
	}
	if f.WellFormedRatio == 1.0 {
		score += 10
	}
	return clampScore(score)
}

// scoreFluency starts high and drops with the filler-word ratio.
func scoreFluency(f FeatureSet) int {
	score := 80
	switch {
	case f.FillerRatio > 0.05:
		score -= 20
	case f.FillerRatio > 0.02:
		score -= 10
	}
	return clampScore(score)
}

// scoreBaseKnowledge rewards reasoning markers (explanations, examples,
// causal connectives), capped at +30.
func scoreBaseKnowledge(f FeatureSet) int {
	bonus := 2 * f.MarkerHits[MarkerComprehension]
	if bonus > 30 {
		bonus = 30
	}
	return clampScore(50 + bonus)
}
