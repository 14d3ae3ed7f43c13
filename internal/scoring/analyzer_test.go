package scoring

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mockmentor/mockmentor/pkg/provider/llm"
	"github.com/mockmentor/mockmentor/pkg/provider/llm/mock"
	"github.com/mockmentor/mockmentor/pkg/types"
)

var errUnknownSession = errors.New("session not found")

type stubSource struct {
	transcripts map[string]types.Transcript
}

func (s *stubSource) Get(_ context.Context, sessionID string) (types.Transcript, error) {
	tr, ok := s.transcripts[sessionID]
	if !ok {
		return types.Transcript{}, errUnknownSession
	}
	return tr, nil
}

// interviewOf builds a transcript with a greeting and one question turn per
// candidate response.
func interviewOf(sessionID string, responses ...string) types.Transcript {
	turns := []types.ConversationTurn{
		{Kind: types.TurnGreeting, Speaker: types.SpeakerSystem, Text: "Welcome!", SequenceNumber: 0},
	}
	seq := 1
	for _, text := range responses {
		turns = append(turns,
			types.ConversationTurn{Kind: types.TurnQuestion, Speaker: types.SpeakerSystem, Text: "Tell me more.", SequenceNumber: seq},
			types.ConversationTurn{Kind: types.TurnResponse, Speaker: types.SpeakerCandidate, Text: text, SequenceNumber: seq + 1},
		)
		seq += 2
	}
	return types.Transcript{SessionID: sessionID, Turns: turns}
}

func sourceWith(transcripts ...types.Transcript) *stubSource {
	s := &stubSource{transcripts: map[string]types.Transcript{}}
	for _, tr := range transcripts {
		s.transcripts[tr.SessionID] = tr
	}
	return s
}

func TestNewAnalyzerRequiresSource(t *testing.T) {
	if _, err := NewAnalyzer(nil); err == nil {
		t.Error("NewAnalyzer(nil) succeeded, want error")
	}
}

func TestNewAnalyzerRejectsBadWeights(t *testing.T) {
	_, err := NewAnalyzer(sourceWith(), WithWeights(map[types.Dimension]float64{
		types.DimensionConfidence: 0.5,
		types.DimensionTechnical:  0.5,
	}))
	if err == nil {
		t.Error("NewAnalyzer accepted incomplete weights, want construction failure")
	}
}

func TestAnalyzeUnknownSession(t *testing.T) {
	a, err := NewAnalyzer(sourceWith())
	if err != nil {
		t.Fatal(err)
	}

	report, err := a.Analyze(context.Background(), "missing", "Software Engineer")
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}
	if !errors.Is(err, errUnknownSession) {
		t.Errorf("err = %v, want wrapped source not-found error", err)
	}
}

func TestAnalyzeEmptyTranscript(t *testing.T) {
	// A session where the candidate has not spoken yet is an expected state:
	// every dimension gets the midpoint default and generic feedback.
	a, err := NewAnalyzer(sourceWith(interviewOf("sess-1")))
	if err != nil {
		t.Fatal(err)
	}

	report, err := a.Analyze(context.Background(), "sess-1", "Software Engineer")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.Overall != 50 {
		t.Errorf("Overall = %d, want 50", report.Overall)
	}
	for _, d := range types.AllDimensions() {
		if report.Scores[d] != 50 {
			t.Errorf("Scores[%s] = %d, want 50", d, report.Scores[d])
		}
	}
	if want := []string{fallbackStrength}; !reflect.DeepEqual(report.Feedback.Strengths, want) {
		t.Errorf("Strengths = %v, want %v", report.Feedback.Strengths, want)
	}
	if want := []string{fallbackImprovement}; !reflect.DeepEqual(report.Feedback.Improvements, want) {
		t.Errorf("Improvements = %v, want %v", report.Feedback.Improvements, want)
	}
	if report.Feedback.Summary != summaryNeedsWork {
		t.Errorf("Summary = %q, want %q", report.Feedback.Summary, summaryNeedsWork)
	}
	if report.SessionID != "sess-1" || report.Role != "Software Engineer" {
		t.Errorf("report identity = (%q, %q)", report.SessionID, report.Role)
	}
	if report.ComputedAt.IsZero() {
		t.Error("ComputedAt not set")
	}
}

func TestAnalyzeHeuristicOnly(t *testing.T) {
	a, err := NewAnalyzer(sourceWith(interviewOf("sess-1",
		"I am confident and certain about my algorithm choice.",
		"um, I think maybe it's O(n log n), not sure though.",
		"I used a hashmap and a two-pointer approach to solve it efficiently.",
	)))
	if err != nil {
		t.Fatal(err)
	}

	report, err := a.Analyze(context.Background(), "sess-1", "Software Engineer")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := types.DimensionScores{
		types.DimensionConfidence:    70, // assertive markers outnumber hedges
		types.DimensionTechnical:     49, // hashmap, two-pointer, algorithm
		types.DimensionCommunication: 60, // every response well formed
		types.DimensionFluency:       70, // one "um" across 32 words
		types.DimensionBaseKnowledge: 50,
	}
	if !reflect.DeepEqual(report.Scores, want) {
		t.Errorf("Scores = %v, want %v", report.Scores, want)
	}
	if report.Overall != 58 {
		t.Errorf("Overall = %d, want 58", report.Overall)
	}
	if report.Overall == 50 {
		t.Error("Overall equals the empty-transcript default, scoring had no effect")
	}
}

func TestAnalyzeDeterministicWithoutOracle(t *testing.T) {
	a, err := NewAnalyzer(sourceWith(interviewOf("sess-1",
		"Because the cache holds hot keys, lookups stay fast.",
		"I think the queue might need a second consumer.",
	)))
	if err != nil {
		t.Fatal(err)
	}

	first, err := a.Analyze(context.Background(), "sess-1", "Backend Engineer")
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Analyze(context.Background(), "sess-1", "Backend Engineer")
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Scores, second.Scores) {
		t.Errorf("scores differ between runs: %v vs %v", first.Scores, second.Scores)
	}
	if first.Overall != second.Overall {
		t.Errorf("overall differs between runs: %d vs %d", first.Overall, second.Overall)
	}
}

func TestAnalyzeOracleTotalFailureMatchesHeuristic(t *testing.T) {
	transcript := interviewOf("sess-1",
		"I am sure the algorithm is optimal.",
		"We profiled the database index first.",
	)

	plain, err := NewAnalyzer(sourceWith(transcript))
	if err != nil {
		t.Fatal(err)
	}
	failing, err := NewAnalyzer(sourceWith(transcript),
		WithOracle(NewOracle(&mock.Provider{CompleteErr: errors.New("backend down")})),
	)
	if err != nil {
		t.Fatal(err)
	}

	want, err := plain.Analyze(context.Background(), "sess-1", "SRE")
	if err != nil {
		t.Fatal(err)
	}
	got, err := failing.Analyze(context.Background(), "sess-1", "SRE")
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(got.Scores, want.Scores) {
		t.Errorf("with failing oracle Scores = %v, want heuristic %v", got.Scores, want.Scores)
	}
	if got.Overall != want.Overall {
		t.Errorf("with failing oracle Overall = %d, want %d", got.Overall, want.Overall)
	}
}

func TestAnalyzeOracleBlendIsPerDimension(t *testing.T) {
	transcript := interviewOf("sess-1",
		"I am confident and certain about my algorithm choice.",
		"um, I think maybe it's O(n log n), not sure though.",
		"I used a hashmap and a two-pointer approach to solve it efficiently.",
	)
	provider := &mock.Provider{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if strings.Contains(req.Messages[0].Content, "Rate technical from") {
				return nil, errors.New("flaky backend")
			}
			return &llm.CompletionResponse{Content: "80"}, nil
		},
	}

	a, err := NewAnalyzer(sourceWith(transcript), WithOracle(NewOracle(provider)))
	if err != nil {
		t.Fatal(err)
	}
	report, err := a.Analyze(context.Background(), "sess-1", "Software Engineer")
	if err != nil {
		t.Fatal(err)
	}

	want := types.DimensionScores{
		types.DimensionConfidence:    75, // (70+80)/2
		types.DimensionTechnical:     49, // oracle failed, heuristic kept
		types.DimensionCommunication: 70, // (60+80)/2
		types.DimensionFluency:       75, // (70+80)/2
		types.DimensionBaseKnowledge: 65, // (50+80)/2
	}
	if !reflect.DeepEqual(report.Scores, want) {
		t.Errorf("Scores = %v, want %v", report.Scores, want)
	}
}

func TestAnalyzeSkipsOracleWithoutResponses(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "95"},
	}
	a, err := NewAnalyzer(sourceWith(interviewOf("sess-1")), WithOracle(NewOracle(provider)))
	if err != nil {
		t.Fatal(err)
	}

	report, err := a.Analyze(context.Background(), "sess-1", "SRE")
	if err != nil {
		t.Fatal(err)
	}

	// No responses means nothing to rate: midpoint defaults, zero oracle calls.
	if report.Overall != 50 {
		t.Errorf("Overall = %d, want 50", report.Overall)
	}
	if calls := provider.Calls(); len(calls) != 0 {
		t.Errorf("oracle called %d times for an empty transcript, want 0", len(calls))
	}
}

func TestAnalyzeSkipsMalformedTurns(t *testing.T) {
	good := interviewOf("sess-1", "The cache keeps lookups fast because entries stay resident.")
	withJunk := good
	withJunk.Turns = append([]types.ConversationTurn{}, good.Turns...)
	withJunk.Turns = append(withJunk.Turns,
		types.ConversationTurn{Kind: types.TurnResponse, Speaker: types.SpeakerCandidate, Text: "", SequenceNumber: 99},
		types.ConversationTurn{Kind: types.TurnResponse, Speaker: types.SpeakerCandidate, Text: "   ", SequenceNumber: 100},
	)
	withJunk.SessionID = "sess-2"

	a, err := NewAnalyzer(sourceWith(good, withJunk))
	if err != nil {
		t.Fatal(err)
	}

	clean, err := a.Analyze(context.Background(), "sess-1", "SRE")
	if err != nil {
		t.Fatal(err)
	}
	dirty, err := a.Analyze(context.Background(), "sess-2", "SRE")
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(clean.Scores, dirty.Scores) {
		t.Errorf("malformed turns changed scores: %v vs %v", dirty.Scores, clean.Scores)
	}
}

func TestAnalyzeBoundsHoldUnderExtremeOracleRatings(t *testing.T) {
	transcript := interviewOf("sess-1", "I am certain the algorithm is optimal because it prunes early.")

	for _, reply := range []string{"100", "1", "999"} {
		a, err := NewAnalyzer(sourceWith(transcript), WithOracle(NewOracle(&mock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: reply},
		})))
		if err != nil {
			t.Fatal(err)
		}
		report, err := a.Analyze(context.Background(), "sess-1", "SRE")
		if err != nil {
			t.Fatal(err)
		}
		for d, s := range report.Scores {
			if s < minScore || s > maxScore {
				t.Errorf("reply %q: Scores[%s] = %d, out of [%d,%d]", reply, d, s, minScore, maxScore)
			}
		}
		if report.Overall < minScore || report.Overall > maxScore {
			t.Errorf("reply %q: Overall = %d, out of [%d,%d]", reply, report.Overall, minScore, maxScore)
		}
	}
}
