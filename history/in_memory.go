package history

import (
	"context"
	"sync"

	"github.com/cargomesh/cargomesh/core"
)

// InMemoryStore is a volatile ConversationHistory keeping a bounded tail of
// turns per session. Each session has its own lock so concurrent appends to
// different sessions do not contend; concurrent appends to the same session
// (client retries) serialize on the session lock.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	maxTurns int
}

type sessionLog struct {
	mu    sync.Mutex
	turns []core.ConversationTurn
}

// NewInMemoryStore constructs a store keeping at most maxTurns turns per
// session (0 means unbounded).
func NewInMemoryStore(maxTurns int) *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*sessionLog), maxTurns: maxTurns}
}

func (s *InMemoryStore) session(id string) *sessionLog {
	s.mu.RLock()
	log, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return log
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if log, ok = s.sessions[id]; ok {
		return log
	}
	log = &sessionLog{}
	s.sessions[id] = log
	return log
}

// Append implements ConversationHistory.
func (s *InMemoryStore) Append(ctx context.Context, turn core.ConversationTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := s.session(turn.SessionID)
	log.mu.Lock()
	defer log.mu.Unlock()
	log.turns = append(log.turns, turn)
	if s.maxTurns > 0 && len(log.turns) > s.maxTurns {
		log.turns = log.turns[len(log.turns)-s.maxTurns:]
	}
	return nil
}

// Recent implements ConversationHistory.
func (s *InMemoryStore) Recent(ctx context.Context, sessionID string, n int) ([]core.ConversationTurn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	log, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	turns := log.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]core.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}
