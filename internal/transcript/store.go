// Package transcript provides the append-only conversation log for interview
// sessions.
//
// A session's transcript is an ordered sequence of conversation turns
// (greeting, interviewer questions, candidate responses). Producers — the API
// gateway driving the interview — append turns as they happen; the scoring
// pipeline reads an immutable snapshot. Two implementations are provided: an
// in-memory store for tests and single-node runs, and a PostgreSQL store for
// anything that needs to survive a restart.
package transcript

import (
	"context"
	"errors"

	"github.com/mockmentor/mockmentor/pkg/types"
)

// ErrNoSession is returned when a session identifier is unknown to the store.
// This is the only store condition analysis surfaces to its caller.
var ErrNoSession = errors.New("transcript: session not found")

// ErrSessionEnded is returned when appending a turn to a session that has
// been ended.
var ErrSessionEnded = errors.New("transcript: session has ended")

// Store is the transcript log abstraction.
//
// Implementations must be safe for concurrent use and must return turns from
// Get in stable session order (ascending sequence number).
type Store interface {
	// Append records one turn under sessionID, creating the session on first
	// append. Returns ErrSessionEnded when the session is already ended.
	Append(ctx context.Context, sessionID string, turn types.ConversationTurn) error

	// Get returns a read-only snapshot of the session's transcript. Returns
	// ErrNoSession when sessionID is unknown. The snapshot is independent of
	// the live log: later appends never mutate it.
	Get(ctx context.Context, sessionID string) (types.Transcript, error)

	// End marks the session complete, rejecting further appends. Ending an
	// already-ended session is a no-op. Returns ErrNoSession when sessionID
	// is unknown.
	End(ctx context.Context, sessionID string) error
}
