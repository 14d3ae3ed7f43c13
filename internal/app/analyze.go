package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mockmentor/mockmentor/internal/reports"
	"github.com/mockmentor/mockmentor/internal/scoring"
	"github.com/mockmentor/mockmentor/pkg/types"
)

// batchConcurrency bounds how many sessions a batch analysis scores at once.
// Each analysis can fan out five oracle calls, so this is kept modest.
const batchConcurrency = 4

func (a *App) currentAnalyzer() *scoring.Analyzer {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.analyzer
}

// Analyze scores the session's transcript and returns the report without
// persisting it.
func (a *App) Analyze(ctx context.Context, sessionID, role string) (*types.ScoreReport, error) {
	return a.currentAnalyzer().Analyze(ctx, sessionID, role)
}

// AnalyzeAndPersist scores the session and saves the report. A persist
// failure is logged and counted but does not discard the computed report:
// the caller still gets their scores.
func (a *App) AnalyzeAndPersist(ctx context.Context, sessionID, role string) (*types.ScoreReport, error) {
	report, err := a.Analyze(ctx, sessionID, role)
	if err != nil {
		return nil, err
	}

	embedding := a.embedResponses(ctx, sessionID)
	if err := a.reports.Save(ctx, *report, embedding); err != nil {
		slog.Error("failed to persist score report", "session_id", sessionID, "error", err)
		return report, nil
	}
	if a.metrics != nil {
		a.metrics.ReportsPersisted.Add(ctx, 1)
	}
	return report, nil
}

// embedResponses embeds the candidate's concatenated responses for similarity
// search. Returns nil when no embedder is configured, the transcript has no
// responses, or the provider fails — similarity is an extra, never a reason
// to fail an analysis.
func (a *App) embedResponses(ctx context.Context, sessionID string) []float32 {
	if a.embedder == nil {
		return nil
	}

	t, err := a.transcripts.Get(ctx, sessionID)
	if err != nil {
		slog.Warn("skipping report embedding", "session_id", sessionID, "error", err)
		return nil
	}
	responses := t.Responses()
	if len(responses) == 0 {
		return nil
	}

	vec, err := a.embedder.Embed(ctx, strings.Join(responses, "\n"))
	if err != nil {
		slog.Warn("embedding responses failed", "session_id", sessionID, "error", err)
		return nil
	}
	return vec
}

// BatchResult is one session's outcome within a batch analysis.
type BatchResult struct {
	SessionID string
	Report    *types.ScoreReport
	Err       error
}

// AnalyzeBatch scores and persists several sessions concurrently. Results
// come back in the order requested; a failing session carries its error
// without aborting the rest.
func (a *App) AnalyzeBatch(ctx context.Context, sessionIDs []string, role string) []BatchResult {
	results := make([]BatchResult, len(sessionIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, id := range sessionIDs {
		results[i].SessionID = id
		g.Go(func() error {
			report, err := a.AnalyzeAndPersist(gctx, id, role)
			results[i].Report = report
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// CompareSessions summarises the stored reports of the given sessions against
// each other.
func (a *App) CompareSessions(ctx context.Context, sessionIDs []string) (reports.Comparison, error) {
	return reports.Compare(ctx, a.reports, sessionIDs)
}

// SimilarSessions returns up to topK stored reports whose candidates answered
// most similarly to the given session, nearest first. The session itself is
// excluded. Requires an embeddings provider.
func (a *App) SimilarSessions(ctx context.Context, sessionID string, topK int) ([]reports.Neighbor, error) {
	if a.embedder == nil {
		return nil, fmt.Errorf("app: similar sessions: no embeddings provider configured")
	}

	t, err := a.transcripts.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("app: similar sessions: %w", err)
	}
	responses := t.Responses()
	if len(responses) == 0 {
		return []reports.Neighbor{}, nil
	}

	vec, err := a.embedder.Embed(ctx, strings.Join(responses, "\n"))
	if err != nil {
		return nil, fmt.Errorf("app: similar sessions: embed: %w", err)
	}

	// Ask for one extra so dropping the query session still fills topK.
	neighbors, err := a.reports.Similar(ctx, vec, topK+1)
	if err != nil {
		return nil, fmt.Errorf("app: similar sessions: %w", err)
	}

	out := neighbors[:0]
	for _, n := range neighbors {
		if n.Report.SessionID == sessionID {
			continue
		}
		out = append(out, n)
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
