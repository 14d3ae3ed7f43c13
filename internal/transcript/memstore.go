package transcript

import (
	"context"
	"sort"
	"sync"

	"github.com/mockmentor/mockmentor/pkg/types"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store. It is the default when no database is
// configured and the workhorse of the test suite.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
}

type memSession struct {
	turns []types.ConversationTurn
	ended bool
}

// NewMemStore returns an empty in-memory transcript store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*memSession)}
}

// Append records one turn under sessionID, creating the session on first use.
func (s *MemStore) Append(_ context.Context, sessionID string, turn types.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &memSession{}
		s.sessions[sessionID] = sess
	}
	if sess.ended {
		return ErrSessionEnded
	}
	sess.turns = append(sess.turns, turn)
	return nil
}

// Get returns an independent snapshot of the session's turns in ascending
// sequence order.
func (s *MemStore) Get(_ context.Context, sessionID string) (types.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return types.Transcript{}, ErrNoSession
	}

	turns := make([]types.ConversationTurn, len(sess.turns))
	copy(turns, sess.turns)
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].SequenceNumber < turns[j].SequenceNumber
	})
	return types.Transcript{SessionID: sessionID, Turns: turns}, nil
}

// End marks the session complete. Ending twice is a no-op.
func (s *MemStore) End(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNoSession
	}
	sess.ended = true
	return nil
}
