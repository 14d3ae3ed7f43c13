package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mockmentor/mockmentor/internal/config"
	"github.com/mockmentor/mockmentor/internal/reports"
	"github.com/mockmentor/mockmentor/internal/transcript"
	embmock "github.com/mockmentor/mockmentor/pkg/provider/embeddings/mock"
	"github.com/mockmentor/mockmentor/pkg/provider/llm"
	llmmock "github.com/mockmentor/mockmentor/pkg/provider/llm/mock"
	"github.com/mockmentor/mockmentor/pkg/types"
)

func seedSession(t *testing.T, store transcript.Store, sessionID string, responses ...string) {
	t.Helper()
	ctx := context.Background()
	seq := 0
	appendTurn := func(kind types.TurnKind, speaker types.Speaker, text string) {
		t.Helper()
		err := store.Append(ctx, sessionID, types.ConversationTurn{
			Kind:           kind,
			Speaker:        speaker,
			Text:           text,
			SequenceNumber: seq,
			Timestamp:      time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		seq++
	}

	appendTurn(types.TurnGreeting, types.SpeakerSystem, "Welcome to your mock interview!")
	for _, resp := range responses {
		appendTurn(types.TurnQuestion, types.SpeakerSystem, "Tell me more.")
		appendTurn(types.TurnResponse, types.SpeakerCandidate, resp)
	}
}

func newTestApp(t *testing.T, opts ...Option) (*App, *transcript.MemStore, *reports.MemStore) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.ListenAddr = "127.0.0.1:0"

	transcripts := transcript.NewMemStore()
	reportStore := reports.NewMemStore()
	opts = append([]Option{
		WithTranscriptStore(transcripts),
		WithReportStore(reportStore),
	}, opts...)

	a, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, transcripts, reportStore
}

func TestAnalyzeAndPersist(t *testing.T) {
	a, transcripts, reportStore := newTestApp(t)
	seedSession(t, transcripts, "sess-1",
		"I would use a hashmap to store the counts and then iterate once.",
		"The time complexity is O(n) because we visit each element once.",
	)

	report, err := a.AnalyzeAndPersist(context.Background(), "sess-1", "Backend Engineer")
	if err != nil {
		t.Fatalf("AnalyzeAndPersist: %v", err)
	}
	if report.SessionID != "sess-1" || report.Role != "Backend Engineer" {
		t.Errorf("report identity = %q/%q", report.SessionID, report.Role)
	}
	if report.Overall < 1 || report.Overall > 100 {
		t.Errorf("Overall = %d, want within [1,100]", report.Overall)
	}

	stored, err := reportStore.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("report not persisted: %v", err)
	}
	if stored.Overall != report.Overall {
		t.Errorf("stored Overall = %d, want %d", stored.Overall, report.Overall)
	}
}

func TestAnalyzeUnknownSession(t *testing.T) {
	a, _, _ := newTestApp(t)

	_, err := a.Analyze(context.Background(), "nope", "")
	if !errors.Is(err, transcript.ErrNoSession) {
		t.Errorf("Analyze unknown session: err = %v, want ErrNoSession", err)
	}
}

type failingReportStore struct {
	reports.Store
}

func (f failingReportStore) Save(context.Context, types.ScoreReport, []float32) error {
	return errors.New("disk on fire")
}

func TestAnalyzeAndPersistSurvivesStoreFailure(t *testing.T) {
	transcripts := transcript.NewMemStore()
	cfg := &config.Config{}
	a, err := New(context.Background(), cfg,
		WithTranscriptStore(transcripts),
		WithReportStore(failingReportStore{reports.NewMemStore()}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seedSession(t, transcripts, "sess-1", "I enjoy working with distributed systems.")

	report, err := a.AnalyzeAndPersist(context.Background(), "sess-1", "")
	if err != nil {
		t.Fatalf("AnalyzeAndPersist: %v", err)
	}
	if report == nil {
		t.Fatal("report discarded on persist failure")
	}
}

func TestAnalyzeWithOracleBlends(t *testing.T) {
	oracle := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "90"},
	}
	a, transcripts, _ := newTestApp(t, WithOracleProvider(oracle))
	seedSession(t, transcripts, "sess-1",
		"I would use a hashmap for constant time lookups in the algorithm.",
	)

	report, err := a.Analyze(context.Background(), "sess-1", "Backend Engineer")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// One oracle call per dimension.
	if got := len(oracle.Calls()); got != 5 {
		t.Errorf("oracle calls = %d, want 5", got)
	}
	// A uniformly high oracle pulls every dimension above its heuristic
	// baseline; the 50-point dimensions blend to (50+90)/2 = 70.
	if got := report.Scores[types.DimensionConfidence]; got != 70 {
		t.Errorf("confidence = %d, want 70", got)
	}
}

func TestAnalyzeBatch(t *testing.T) {
	a, transcripts, reportStore := newTestApp(t)
	seedSession(t, transcripts, "sess-a", "I focus on writing maintainable code.")
	seedSession(t, transcripts, "sess-b", "I like pair programming and code review.")

	results := a.AnalyzeBatch(context.Background(), []string{"sess-a", "missing", "sess-b"}, "")
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].SessionID != "sess-a" || results[0].Err != nil || results[0].Report == nil {
		t.Errorf("results[0] = %+v, want successful sess-a", results[0])
	}
	if !errors.Is(results[1].Err, transcript.ErrNoSession) {
		t.Errorf("results[1].Err = %v, want ErrNoSession", results[1].Err)
	}
	if results[2].SessionID != "sess-b" || results[2].Err != nil {
		t.Errorf("results[2] = %+v, want successful sess-b", results[2])
	}

	// Successful sessions were persisted; the failed one was not.
	if _, err := reportStore.Get(context.Background(), "sess-a"); err != nil {
		t.Errorf("sess-a not persisted: %v", err)
	}
	if _, err := reportStore.Get(context.Background(), "missing"); !errors.Is(err, reports.ErrNotFound) {
		t.Errorf("missing session persisted anyway: err = %v", err)
	}
}

func TestSimilarSessions(t *testing.T) {
	embedder := &embmock.Provider{}
	a, transcripts, _ := newTestApp(t, WithEmbeddingsProvider(embedder))

	seedSession(t, transcripts, "sess-1", "I would use a hashmap to count word frequencies.")
	seedSession(t, transcripts, "sess-2", "I would use a hashmap to count word frequencies.")
	seedSession(t, transcripts, "sess-3", "My favourite part of the job is mentoring juniors.")

	ctx := context.Background()
	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		if _, err := a.AnalyzeAndPersist(ctx, id, ""); err != nil {
			t.Fatalf("AnalyzeAndPersist(%s): %v", id, err)
		}
	}

	neighbors, err := a.SimilarSessions(ctx, "sess-1", 2)
	if err != nil {
		t.Fatalf("SimilarSessions: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("len(neighbors) = %d, want 2", len(neighbors))
	}
	for _, n := range neighbors {
		if n.Report.SessionID == "sess-1" {
			t.Error("query session returned as its own neighbour")
		}
	}
	// The identical transcript embeds identically, so it ranks first.
	if neighbors[0].Report.SessionID != "sess-2" {
		t.Errorf("nearest = %q, want sess-2", neighbors[0].Report.SessionID)
	}
}

func TestSimilarSessionsWithoutEmbedder(t *testing.T) {
	a, _, _ := newTestApp(t)

	if _, err := a.SimilarSessions(context.Background(), "sess-1", 3); err == nil {
		t.Error("SimilarSessions without embedder: want error, got nil")
	}
}

func TestApplyConfigChangeWeights(t *testing.T) {
	a, transcripts, _ := newTestApp(t)
	seedSession(t, transcripts, "sess-1", "I would use a hashmap and a two-pointer approach in this algorithm.")

	before, err := a.Analyze(context.Background(), "sess-1", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Shift all weight onto the technical dimension.
	a.ApplyConfigChange(config.ConfigDiff{
		WeightsChanged: true,
		NewWeights: map[types.Dimension]float64{
			types.DimensionConfidence:    0,
			types.DimensionTechnical:     1,
			types.DimensionCommunication: 0,
			types.DimensionFluency:       0,
			types.DimensionBaseKnowledge: 0,
		},
	})

	after, err := a.Analyze(context.Background(), "sess-1", "")
	if err != nil {
		t.Fatalf("Analyze after reload: %v", err)
	}
	if after.Overall != after.Scores[types.DimensionTechnical] {
		t.Errorf("Overall = %d, want technical score %d after reweighting",
			after.Overall, after.Scores[types.DimensionTechnical])
	}
	if before.Overall == after.Overall && before.Scores[types.DimensionTechnical] != before.Overall {
		t.Error("reweighting had no effect")
	}
}

func TestApplyConfigChangeRejectsBadWeights(t *testing.T) {
	a, transcripts, _ := newTestApp(t)
	seedSession(t, transcripts, "sess-1", "Testing weight reloads end to end.")

	before, err := a.Analyze(context.Background(), "sess-1", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Weights that do not sum to 1.0 must be rejected, keeping the old set.
	a.ApplyConfigChange(config.ConfigDiff{
		WeightsChanged: true,
		NewWeights: map[types.Dimension]float64{
			types.DimensionConfidence:    0.5,
			types.DimensionTechnical:     0.5,
			types.DimensionCommunication: 0.5,
			types.DimensionFluency:       0.5,
			types.DimensionBaseKnowledge: 0.5,
		},
	})

	after, err := a.Analyze(context.Background(), "sess-1", "")
	if err != nil {
		t.Fatalf("Analyze after bad reload: %v", err)
	}
	if after.Overall != before.Overall {
		t.Errorf("Overall changed after rejected reload: %d -> %d", before.Overall, after.Overall)
	}
}
