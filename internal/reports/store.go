// Package reports persists completed score reports and answers questions
// across them: fetching a session's latest report, comparing a set of
// sessions dimension by dimension, and finding sessions whose responses read
// similarly to a given one.
//
// Similarity search stores one embedding per report — the candidate's
// concatenated responses — and ranks neighbours by cosine distance. The
// in-memory store computes distances brute-force; the PostgreSQL store uses
// a pgvector HNSW index.
package reports

import (
	"context"
	"errors"

	"github.com/mockmentor/mockmentor/pkg/types"
)

// ErrNotFound is returned when no report exists for the requested session.
var ErrNotFound = errors.New("reports: report not found")

// Neighbor is one result of a similarity search: a stored report and its
// cosine distance from the query session (smaller is more similar).
type Neighbor struct {
	Report   types.ScoreReport
	Distance float64
}

// Store persists score reports. Saving a report for a session that already
// has one replaces it — a recomputed report supersedes the old one.
//
// The embedding passed to Save may be nil when no embeddings provider is
// configured; such reports are saved normally but never appear as similarity
// neighbours.
type Store interface {
	Save(ctx context.Context, report types.ScoreReport, embedding []float32) error

	// Get returns the stored report for sessionID, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (types.ScoreReport, error)

	// List returns all stored reports, most recently computed first.
	List(ctx context.Context) ([]types.ScoreReport, error)

	// Similar returns up to topK stored reports whose embeddings are closest
	// to embedding, ordered most similar first. Reports saved without an
	// embedding are excluded.
	Similar(ctx context.Context, embedding []float32, topK int) ([]Neighbor, error)
}
