package reports

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/mockmentor/mockmentor/pkg/types"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store. Similarity search is brute-force cosine
// distance over all saved embeddings, which is fine at test and single-node
// scale.
type MemStore struct {
	mu      sync.RWMutex
	reports map[string]memReport
}

type memReport struct {
	report    types.ScoreReport
	embedding []float32
}

// NewMemStore returns an empty in-memory report store.
func NewMemStore() *MemStore {
	return &MemStore{reports: make(map[string]memReport)}
}

// Save stores or replaces the report for its session.
func (s *MemStore) Save(_ context.Context, report types.ScoreReport, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report.Scores = report.Scores.Clone()
	var emb []float32
	if embedding != nil {
		emb = make([]float32, len(embedding))
		copy(emb, embedding)
	}
	s.reports[report.SessionID] = memReport{report: report, embedding: emb}
	return nil
}

// Get returns the stored report for sessionID, or ErrNotFound.
func (s *MemStore) Get(_ context.Context, sessionID string) (types.ScoreReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[sessionID]
	if !ok {
		return types.ScoreReport{}, ErrNotFound
	}
	out := r.report
	out.Scores = out.Scores.Clone()
	return out, nil
}

// List returns all stored reports, most recently computed first.
func (s *MemStore) List(_ context.Context) ([]types.ScoreReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ScoreReport, 0, len(s.reports))
	for _, r := range s.reports {
		rep := r.report
		rep.Scores = rep.Scores.Clone()
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ComputedAt.After(out[j].ComputedAt)
	})
	return out, nil
}

// Similar returns up to topK reports ranked by cosine distance to embedding.
func (s *MemStore) Similar(_ context.Context, embedding []float32, topK int) ([]Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	neighbors := make([]Neighbor, 0, len(s.reports))
	for _, r := range s.reports {
		if len(r.embedding) == 0 || len(r.embedding) != len(embedding) {
			continue
		}
		rep := r.report
		rep.Scores = rep.Scores.Clone()
		neighbors = append(neighbors, Neighbor{
			Report:   rep,
			Distance: cosineDistance(embedding, r.embedding),
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if topK > 0 && len(neighbors) > topK {
		neighbors = neighbors[:topK]
	}
	return neighbors, nil
}

// cosineDistance returns 1 - cosine similarity, matching pgvector's <=>
// operator. Zero-magnitude vectors are treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(magA)*math.Sqrt(magB))
}
