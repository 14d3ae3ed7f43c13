// Package scoring implements the interview-session scoring pipeline: feature
// extraction over the candidate's transcribed responses, heuristic dimension
// scores, optional blending with an external LLM oracle, and aggregation into
// a final score report.
//
// The pipeline is a pure function of the transcript snapshot it is handed —
// it keeps no session state of its own, so one Analyzer can serve concurrent
// analyses across sessions. The only non-determinism is the oracle; with the
// oracle disabled two runs over the same transcript produce identical reports.
package scoring

import (
	"strings"

	"github.com/mockmentor/mockmentor/pkg/types"
)

// wellFormedMinWords is the word count above which a response counts as well
// formed even without terminal punctuation.
const wellFormedMinWords = 5

// FeatureSet holds the lexical statistics derived from the non-empty response
// turns of one transcript. All ratios are 0 when there are no responses; the
// scorer applies its insufficient-data default in that case instead of
// reading zero-valued features as poor performance.
type FeatureSet struct {
	// Responses are the response texts in session order.
	Responses []string

	// TotalWords is the word count across all responses.
	TotalWords int

	// AvgWordsPerResponse is TotalWords divided by the response count.
	AvgWordsPerResponse float64

	// MarkerHits counts, per category, the responses containing at least one
	// keyword from that category's lexicon.
	MarkerHits map[MarkerCategory]int

	// DistinctTechnicalTerms is the number of distinct technical lexicon
	// entries matched anywhere in the responses.
	DistinctTechnicalTerms int

	// FillerRatio is filler-token occurrences divided by TotalWords.
	FillerRatio float64

	// WellFormedRatio is the fraction of responses that end with terminal
	// punctuation or exceed wellFormedMinWords words.
	WellFormedRatio float64

	// SkippedTurns counts malformed turns dropped during extraction.
	SkippedTurns int
}

// Extractor derives a FeatureSet from a transcript snapshot. It is read-only
// after construction and safe for concurrent use.
type Extractor struct {
	lexicon Lexicon
	matcher *termMatcher
}

// ExtractorOption is a functional option for NewExtractor.
type ExtractorOption func(*Extractor)

// WithLexicon replaces the default keyword lexicon.
func WithLexicon(l Lexicon) ExtractorOption {
	return func(e *Extractor) {
		e.lexicon = l
	}
}

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a phonetic
// technical-term match. Values outside (0,1] fall back to the default.
func WithPhoneticThreshold(threshold float64) ExtractorOption {
	return func(e *Extractor) {
		e.matcher = newTermMatcher(threshold)
	}
}

// NewExtractor creates an Extractor with the canonical lexicon unless
// overridden by options.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		lexicon: DefaultLexicon(),
		matcher: newTermMatcher(defaultPhoneticThreshold),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract derives the feature set for the response turns of t. Turns that are
// not responses are ignored; response turns with empty text or an invalid
// shape are skipped and counted, never fatal.
func (e *Extractor) Extract(t types.Transcript) FeatureSet {
	fs := FeatureSet{
		MarkerHits: map[MarkerCategory]int{
			MarkerConfidence:    0,
			MarkerHesitation:    0,
			MarkerTechnical:     0,
			MarkerComprehension: 0,
		},
	}

	var (
		fillerCount   int
		wellFormed    int
		distinctTerms = map[string]struct{}{}
		categories    = []MarkerCategory{MarkerConfidence, MarkerHesitation, MarkerTechnical, MarkerComprehension}
	)

	for _, turn := range t.Turns {
		if turn.Kind != types.TurnResponse {
			continue
		}
		if strings.TrimSpace(turn.Text) == "" {
			fs.SkippedTurns++
			continue
		}

		text := turn.Text
		tokens := tokenize(text)
		if len(tokens) == 0 {
			fs.SkippedTurns++
			continue
		}
		normText := strings.Join(tokens, " ")

		fs.Responses = append(fs.Responses, text)
		fs.TotalWords += len(tokens)

		// A response counts once per category no matter how many keywords it
		// contains. Technical terms keep scanning past the first hit so that
		// distinct matched terms accumulate.
		for _, cat := range categories {
			phonetic := cat == MarkerTechnical
			hit := false
			for _, term := range e.lexicon.ByCategory(cat) {
				if !e.matcher.containsTerm(tokens, normText, term, phonetic) {
					continue
				}
				hit = true
				if cat != MarkerTechnical {
					break
				}
				distinctTerms[term] = struct{}{}
			}
			if hit {
				fs.MarkerHits[cat]++
			}
		}

		fillerCount += countFillers(tokens, normText)
		if isWellFormed(text, len(tokens)) {
			wellFormed++
		}
	}

	fs.DistinctTechnicalTerms = len(distinctTerms)
	if n := len(fs.Responses); n > 0 {
		fs.AvgWordsPerResponse = float64(fs.TotalWords) / float64(n)
		fs.WellFormedRatio = float64(wellFormed) / float64(n)
	}
	if fs.TotalWords > 0 {
		fs.FillerRatio = float64(fillerCount) / float64(fs.TotalWords)
	}
	return fs
}

// tokenize lower-cases text and splits it into words with surrounding
// punctuation stripped. Tokens that are pure punctuation are dropped.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.Trim(f, ".,!?;:()[]{}\"'`")
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// countFillers counts filler-token occurrences. Single-word fillers match
// whole tokens; the multi-word "you know" is counted as phrase occurrences in
// the normalised text.
func countFillers(tokens []string, normText string) int {
	count := 0
	for _, filler := range fillerTokens {
		if strings.ContainsRune(filler, ' ') {
			count += strings.Count(" "+normText+" ", " "+filler+" ")
			continue
		}
		for _, tok := range tokens {
			if tok == filler {
				count++
			}
		}
	}
	return count
}

// isWellFormed reports whether a response ends with terminal punctuation or
// exceeds the minimum word threshold.
func isWellFormed(text string, wordCount int) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return wordCount > wellFormedMinWords
}
