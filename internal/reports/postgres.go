package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mockmentor/mockmentor/pkg/types"
)

var _ Store = (*PostgresStore)(nil)

// ddlReports returns the report table DDL with the embedding dimension baked
// into the vector column type. Changing the dimension after the first
// migration requires a manual schema change.
func ddlReports(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS score_reports (
    session_id      TEXT         PRIMARY KEY,
    role            TEXT         NOT NULL DEFAULT '',
    overall         INTEGER      NOT NULL,
    confidence      INTEGER      NOT NULL,
    technical       INTEGER      NOT NULL,
    communication   INTEGER      NOT NULL,
    fluency         INTEGER      NOT NULL,
    base_knowledge  INTEGER      NOT NULL,
    strengths       TEXT[]       NOT NULL DEFAULT '{}',
    improvements    TEXT[]       NOT NULL DEFAULT '{}',
    summary         TEXT         NOT NULL DEFAULT '',
    computed_at     TIMESTAMPTZ  NOT NULL,
    embedding       vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_score_reports_computed_at
    ON score_reports (computed_at);

CREATE INDEX IF NOT EXISTS idx_score_reports_embedding
    ON score_reports USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// PostgresStore is a Store backed by a PostgreSQL score_reports table with a
// pgvector HNSW index for similarity search. All methods are safe for
// concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool as a report store and ensures the table exists.
// embeddingDimensions must match the configured embedding model's output
// dimension.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, ddlReports(embeddingDimensions)); err != nil {
		return nil, fmt.Errorf("report store: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Save upserts the report under its session ID, replacing any earlier report.
func (s *PostgresStore) Save(ctx context.Context, report types.ScoreReport, embedding []float32) error {
	const q = `
		INSERT INTO score_reports
		    (session_id, role, overall,
		     confidence, technical, communication, fluency, base_knowledge,
		     strengths, improvements, summary, computed_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO UPDATE SET
		    role           = EXCLUDED.role,
		    overall        = EXCLUDED.overall,
		    confidence     = EXCLUDED.confidence,
		    technical      = EXCLUDED.technical,
		    communication  = EXCLUDED.communication,
		    fluency        = EXCLUDED.fluency,
		    base_knowledge = EXCLUDED.base_knowledge,
		    strengths      = EXCLUDED.strengths,
		    improvements   = EXCLUDED.improvements,
		    summary        = EXCLUDED.summary,
		    computed_at    = EXCLUDED.computed_at,
		    embedding      = EXCLUDED.embedding`

	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	_, err := s.pool.Exec(ctx, q,
		report.SessionID,
		report.Role,
		report.Overall,
		report.Scores[types.DimensionConfidence],
		report.Scores[types.DimensionTechnical],
		report.Scores[types.DimensionCommunication],
		report.Scores[types.DimensionFluency],
		report.Scores[types.DimensionBaseKnowledge],
		report.Feedback.Strengths,
		report.Feedback.Improvements,
		report.Feedback.Summary,
		report.ComputedAt,
		vec,
	)
	if err != nil {
		return fmt.Errorf("report store: save: %w", err)
	}
	return nil
}

const reportColumns = `
	session_id, role, overall,
	confidence, technical, communication, fluency, base_knowledge,
	strengths, improvements, summary, computed_at`

// Get returns the stored report for sessionID, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (types.ScoreReport, error) {
	q := "SELECT " + reportColumns + " FROM score_reports WHERE session_id = $1"

	row := s.pool.QueryRow(ctx, q, sessionID)
	report, err := scanReport(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ScoreReport{}, ErrNotFound
		}
		return types.ScoreReport{}, fmt.Errorf("report store: get: %w", err)
	}
	return report, nil
}

// List returns all stored reports, most recently computed first.
func (s *PostgresStore) List(ctx context.Context) ([]types.ScoreReport, error) {
	q := "SELECT " + reportColumns + " FROM score_reports ORDER BY computed_at DESC"

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("report store: list: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.ScoreReport, error) {
		return scanReport(row.Scan)
	})
	if err != nil {
		return nil, fmt.Errorf("report store: scan rows: %w", err)
	}
	if out == nil {
		out = []types.ScoreReport{}
	}
	return out, nil
}

// Similar returns up to topK reports ranked by cosine distance to embedding.
// Reports saved without an embedding never match.
func (s *PostgresStore) Similar(ctx context.Context, embedding []float32, topK int) ([]Neighbor, error) {
	q := `
		SELECT ` + reportColumns + `,
		       embedding <=> $1 AS distance
		FROM   score_reports
		WHERE  embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("report store: similar: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Neighbor, error) {
		var n Neighbor
		report, err := scanReportInto(&n.Report, row.Scan, &n.Distance)
		if err != nil {
			return Neighbor{}, err
		}
		n.Report = report
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("report store: scan rows: %w", err)
	}
	if out == nil {
		out = []Neighbor{}
	}
	return out, nil
}

// scanReport scans one report row using the standard column order.
func scanReport(scan func(...any) error) (types.ScoreReport, error) {
	var r types.ScoreReport
	return scanReportInto(&r, scan)
}

// scanReportInto scans the standard report columns into r, followed by any
// extra destinations (such as a distance column).
func scanReportInto(r *types.ScoreReport, scan func(...any) error, extra ...any) (types.ScoreReport, error) {
	var confidence, technical, communication, fluency, baseKnowledge int

	dests := []any{
		&r.SessionID,
		&r.Role,
		&r.Overall,
		&confidence,
		&technical,
		&communication,
		&fluency,
		&baseKnowledge,
		&r.Feedback.Strengths,
		&r.Feedback.Improvements,
		&r.Feedback.Summary,
		&r.ComputedAt,
	}
	dests = append(dests, extra...)

	if err := scan(dests...); err != nil {
		return types.ScoreReport{}, err
	}

	r.Scores = types.DimensionScores{
		types.DimensionConfidence:    confidence,
		types.DimensionTechnical:     technical,
		types.DimensionCommunication: communication,
		types.DimensionFluency:       fluency,
		types.DimensionBaseKnowledge: baseKnowledge,
	}
	return *r, nil
}
