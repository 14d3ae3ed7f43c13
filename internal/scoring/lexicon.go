package scoring

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// MarkerCategory names one of the fixed keyword families the feature
// extractor counts response hits for.
type MarkerCategory string

const (
	MarkerConfidence    MarkerCategory = "confidence_markers"
	MarkerHesitation    MarkerCategory = "hesitation_markers"
	MarkerTechnical     MarkerCategory = "technical_terms"
	MarkerComprehension MarkerCategory = "comprehension_markers"
)

// Lexicon holds the keyword families used for feature extraction. Entries are
// lower-case; multi-word entries match as phrases, single words match whole
// tokens.
type Lexicon struct {
	Confidence    []string
	Hesitation    []string
	Technical     []string
	Comprehension []string
}

// fillerTokens are the disfluencies counted for the filler ratio.
var fillerTokens = []string{"um", "uh", "like", "you know", "basically", "actually"}

// DefaultLexicon returns the canonical keyword families. One consistent set
// is used everywhere; per-role lexicons are a possible later refinement.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Confidence: []string{
			"confident", "certain", "definitely", "absolutely", "sure",
			"clearly", "without doubt", "i know", "i am sure", "exactly",
		},
		Hesitation: []string{
			"maybe", "perhaps", "i think", "i guess", "not sure",
			"probably", "might", "possibly", "i suppose", "kind of",
		},
		Technical: []string{
			"algorithm", "complexity", "data structure", "hashmap", "hash map",
			"array", "linked list", "binary search", "two-pointer", "two pointer",
			"recursion", "pointer", "queue", "stack", "tree", "graph",
			"database", "index", "cache", "api", "thread", "concurrency",
			"runtime", "big o", "optimization", "refactor", "scalability",
		},
		Comprehension: []string{
			"because", "therefore", "which means", "in other words",
			"for example", "for instance", "so that", "as a result",
			"this allows", "the reason",
		},
	}
}

// ByCategory returns the keyword list for the given category, or nil for an
// unknown category.
func (l Lexicon) ByCategory(c MarkerCategory) []string {
	switch c {
	case MarkerConfidence:
		return l.Confidence
	case MarkerHesitation:
		return l.Hesitation
	case MarkerTechnical:
		return l.Technical
	case MarkerComprehension:
		return l.Comprehension
	}
	return nil
}

// defaultPhoneticThreshold is the minimum Jaro-Winkler score a phonetic
// candidate must reach to count as a technical-term hit.
const defaultPhoneticThreshold = 0.88

// termMatcher matches lexicon entries against tokenised response text.
//
// Exact containment always wins. For single-word technical terms a phonetic
// pass additionally accepts near-misses, because STT output routinely garbles
// jargon ("hash map" arrives as "hashmap", "kubernetes" as "cooper nets").
// The pass combines Double Metaphone code overlap with Jaro-Winkler ranking;
// it only ever adds hits, so heuristic scores stay monotonic in the spoken
// content.
//
// A termMatcher is read-only after construction and safe for concurrent use.
type termMatcher struct {
	phoneticThreshold float64
}

func newTermMatcher(threshold float64) *termMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultPhoneticThreshold
	}
	return &termMatcher{phoneticThreshold: threshold}
}

// containsTerm reports whether the response (given as cleaned tokens plus the
// space-joined normalised text) contains term. phonetic enables the
// near-miss pass for single-word terms.
func (m *termMatcher) containsTerm(tokens []string, normText string, term string, phonetic bool) bool {
	if strings.ContainsRune(term, ' ') {
		return strings.Contains(" "+normText+" ", " "+term+" ")
	}
	for _, tok := range tokens {
		if tok == term {
			return true
		}
	}
	if !phonetic {
		return false
	}
	termPrimary, termSecondary := matchr.DoubleMetaphone(term)
	for _, tok := range tokens {
		if m.phoneticallyClose(tok, term, termPrimary, termSecondary) {
			return true
		}
	}
	return false
}

// phoneticallyClose reports whether token sounds like term and is lexically
// close enough to be the same word rather than a coincidental homophone.
func (m *termMatcher) phoneticallyClose(token, term, termPrimary, termSecondary string) bool {
	if len(token) < 3 {
		return false
	}
	p, s := matchr.DoubleMetaphone(token)
	overlap := (p != "" && (p == termPrimary || p == termSecondary)) ||
		(s != "" && (s == termPrimary || s == termSecondary))
	if !overlap {
		return false
	}
	return matchr.JaroWinkler(token, term, false) >= m.phoneticThreshold
}
