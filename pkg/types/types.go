// Package types defines the shared types used across all mockmentor packages.
//
// These types form the lingua franca between the transcript store, the scoring
// pipeline, and the report store. They are intentionally minimal — each package
// defines its own domain types, but cross-cutting data structures live here to
// avoid circular imports.
package types

import "time"

// TurnKind classifies a single exchange unit within an interview session.
type TurnKind string

const (
	// TurnGreeting is the welcome message that opens a session.
	TurnGreeting TurnKind = "greeting"

	// TurnQuestion is a question posed by the interviewer.
	TurnQuestion TurnKind = "question"

	// TurnResponse is the candidate's spoken (transcribed) answer.
	TurnResponse TurnKind = "response"
)

// IsValid reports whether k is a recognised turn kind.
func (k TurnKind) IsValid() bool {
	switch k {
	case TurnGreeting, TurnQuestion, TurnResponse:
		return true
	}
	return false
}

// Speaker identifies which side of the interview produced a turn.
type Speaker string

const (
	// SpeakerSystem is the AI interviewer.
	SpeakerSystem Speaker = "system"

	// SpeakerCandidate is the person being interviewed.
	SpeakerCandidate Speaker = "candidate"
)

// IsValid reports whether s is a recognised speaker.
func (s Speaker) IsValid() bool {
	return s == SpeakerSystem || s == SpeakerCandidate
}

// ConversationTurn is one exchange unit of an interview session.
//
// Sequence numbers are assigned by the turn producer (the API gateway that
// drives the interview), not by any consumer of this type. A response turn
// answers the question at SequenceNumber-1, though the scoring pipeline only
// reads text content and never enforces pairing.
type ConversationTurn struct {
	Kind    TurnKind
	Speaker Speaker

	// Text is the spoken or transcribed content. Empty strings are permitted;
	// empty response turns are skipped during feature extraction.
	Text string

	// SequenceNumber increases monotonically within a session.
	SequenceNumber int

	// Timestamp records when the turn was produced. Informational only — it
	// plays no part in scoring.
	Timestamp time.Time
}

// Transcript is a read-only snapshot of the ordered turns recorded for one
// interview session. Scoring operates on the snapshot as a value; it is never
// polled live while an analysis is in flight.
type Transcript struct {
	SessionID string
	Turns     []ConversationTurn
}

// Responses returns the texts of all non-empty response turns in session order.
func (t Transcript) Responses() []string {
	var out []string
	for _, turn := range t.Turns {
		if turn.Kind == TurnResponse && turn.Text != "" {
			out = append(out, turn.Text)
		}
	}
	return out
}

// Dimension is one of the five scored aspects of candidate performance.
type Dimension string

const (
	DimensionConfidence    Dimension = "confidence"
	DimensionTechnical     Dimension = "technical"
	DimensionCommunication Dimension = "communication"
	DimensionFluency       Dimension = "fluency"
	DimensionBaseKnowledge Dimension = "base_knowledge"
)

// IsValid reports whether d is a recognised dimension.
func (d Dimension) IsValid() bool {
	switch d {
	case DimensionConfidence, DimensionTechnical, DimensionCommunication,
		DimensionFluency, DimensionBaseKnowledge:
		return true
	}
	return false
}

// AllDimensions returns the five scored dimensions in their canonical order.
// The order is stable so feedback lists and log output are deterministic.
func AllDimensions() []Dimension {
	return []Dimension{
		DimensionConfidence,
		DimensionTechnical,
		DimensionCommunication,
		DimensionFluency,
		DimensionBaseKnowledge,
	}
}

// DimensionScores maps each dimension to an integer score in [1,100].
type DimensionScores map[Dimension]int

// Mean returns the unweighted arithmetic mean of all scores, or 0 for an
// empty map. Feedback banding uses this mean, not the weighted overall.
func (s DimensionScores) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0
	for _, v := range s {
		sum += v
	}
	return float64(sum) / float64(len(s))
}

// Clone returns an independent copy of s.
func (s DimensionScores) Clone() DimensionScores {
	out := make(DimensionScores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Feedback is the qualitative portion of a score report. Strengths and
// Improvements are never empty — when no dimension qualifies, a generic
// fallback entry is supplied.
type Feedback struct {
	Strengths    []string
	Improvements []string
	Summary      string
}

// ScoreReport is the complete assessment produced by one analysis run.
// A report is immutable once returned; recomputing for the same session
// produces a fresh report that supersedes the old one.
type ScoreReport struct {
	SessionID string
	Role      string

	// Overall is the weighted combination of the five dimension scores,
	// in [1,100].
	Overall int

	// Scores holds all five dimension scores, each in [1,100].
	Scores DimensionScores

	Feedback Feedback

	// ComputedAt records when this analysis ran.
	ComputedAt time.Time
}
