package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mockmentor/mockmentor/pkg/types"
)

var _ Store = (*PostgresStore)(nil)

const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS interview_sessions (
    session_id  TEXT         PRIMARY KEY,
    ended       BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS interview_turns (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL REFERENCES interview_sessions (session_id) ON DELETE CASCADE,
    kind        TEXT         NOT NULL,
    speaker     TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    seq         INTEGER      NOT NULL,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interview_turns_session_seq
    ON interview_turns (session_id, seq);
`

// PostgresStore is a Store backed by a PostgreSQL interview_turns table,
// sharing the application's connection pool. All methods are safe for
// concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool as a transcript store and ensures the required
// tables exist. The migration is idempotent and safe to run on every start.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, ddlTranscripts); err != nil {
		return nil, fmt.Errorf("transcript store: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append records one turn under sessionID, creating the session row on first
// append. Returns ErrSessionEnded when the session has been ended.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, turn types.ConversationTurn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("transcript store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO interview_sessions (session_id)
		VALUES ($1)
		ON CONFLICT (session_id) DO UPDATE SET session_id = EXCLUDED.session_id
		RETURNING ended`

	var ended bool
	if err := tx.QueryRow(ctx, upsert, sessionID).Scan(&ended); err != nil {
		return fmt.Errorf("transcript store: upsert session: %w", err)
	}
	if ended {
		return ErrSessionEnded
	}

	const insert = `
		INSERT INTO interview_turns (session_id, kind, speaker, text, seq, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, insert,
		sessionID,
		string(turn.Kind),
		string(turn.Speaker),
		turn.Text,
		turn.SequenceNumber,
		turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("transcript store: insert turn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("transcript store: commit: %w", err)
	}
	return nil
}

// Get returns the session's turns in ascending sequence order. Returns
// ErrNoSession when no session row exists for sessionID.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (types.Transcript, error) {
	const exists = `SELECT 1 FROM interview_sessions WHERE session_id = $1`

	var one int
	if err := s.pool.QueryRow(ctx, exists, sessionID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Transcript{}, ErrNoSession
		}
		return types.Transcript{}, fmt.Errorf("transcript store: lookup session: %w", err)
	}

	const q = `
		SELECT kind, speaker, text, seq, timestamp
		FROM   interview_turns
		WHERE  session_id = $1
		ORDER  BY seq`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("transcript store: get turns: %w", err)
	}

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.ConversationTurn, error) {
		var (
			t             types.ConversationTurn
			kind, speaker string
		)
		if err := row.Scan(&kind, &speaker, &t.Text, &t.SequenceNumber, &t.Timestamp); err != nil {
			return types.ConversationTurn{}, err
		}
		t.Kind = types.TurnKind(kind)
		t.Speaker = types.Speaker(speaker)
		return t, nil
	})
	if err != nil {
		return types.Transcript{}, fmt.Errorf("transcript store: scan turns: %w", err)
	}

	return types.Transcript{SessionID: sessionID, Turns: turns}, nil
}

// End marks the session complete. Returns ErrNoSession when sessionID is
// unknown; ending an already-ended session is a no-op.
func (s *PostgresStore) End(ctx context.Context, sessionID string) error {
	const q = `UPDATE interview_sessions SET ended = TRUE WHERE session_id = $1`

	tag, err := s.pool.Exec(ctx, q, sessionID)
	if err != nil {
		return fmt.Errorf("transcript store: end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoSession
	}
	return nil
}
