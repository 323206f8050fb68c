// Package memory keeps matches and players in process memory. It backs tests and
// runs without DATABASE_URL; state is lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
)

type participantKey struct {
	scope  domain.ScopeID
	player domain.PlayerID
}

// MatchStore is an in-memory game.MatchStore.
type MatchStore struct {
	mu           sync.RWMutex
	matches      map[string]*domain.Match  // matchID → match
	participants map[participantKey]string // (scope, player) → incomplete matchID
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
		matches:      make(map[string]*domain.Match),
		participants: make(map[participantKey]string),
	}
}

func (s *MatchStore) FindActiveMatch(ctx context.Context, scope domain.ScopeID, player domain.PlayerID, includePending bool) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.openMatchLocked(scope, player)
	if m == nil || (!includePending && !m.IsAccepted()) {
		return nil, nil
	}
	return m.Clone(), nil
}

func (s *MatchStore) FindPendingChallenge(ctx context.Context, scope domain.ScopeID, player domain.PlayerID) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.openMatchLocked(scope, player)
	if m == nil || m.IsAccepted() {
		return nil, nil
	}
	return m.Clone(), nil
}

func (s *MatchStore) FindMatchByID(ctx context.Context, id string) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	return m.Clone(), nil
}

func (s *MatchStore) InsertMatch(ctx context.Context, m *domain.Match) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[m.ID]; ok {
		return nil, domain.ErrStaleMatch
	}
	red := participantKey{m.ScopeID, m.RedPlayerID}
	yellow := participantKey{m.ScopeID, m.YellowPlayerID}
	if _, busy := s.participants[red]; busy {
		return nil, domain.ErrAlreadyInMatch
	}
	if _, busy := s.participants[yellow]; busy {
		return nil, domain.ErrAlreadyInMatch
	}

	stored := m.Clone()
	stored.Version = 1
	s.matches[stored.ID] = stored
	s.participants[red] = stored.ID
	s.participants[yellow] = stored.ID
	return stored.Clone(), nil
}

func (s *MatchStore) UpdateMatch(ctx context.Context, m *domain.Match) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.matches[m.ID]
	if !ok || current.Version != m.Version || current.IsComplete() {
		return nil, domain.ErrStaleMatch
	}

	// moving the challenge to a new opponent moves the participant guard with it
	if current.YellowPlayerID != m.YellowPlayerID {
		next := participantKey{m.ScopeID, m.YellowPlayerID}
		if owner, busy := s.participants[next]; busy && owner != m.ID {
			return nil, domain.ErrAlreadyInMatch
		}
		delete(s.participants, participantKey{current.ScopeID, current.YellowPlayerID})
		s.participants[next] = m.ID
	}

	stored := m.Clone()
	stored.Version = current.Version + 1
	s.matches[stored.ID] = stored

	if stored.IsComplete() {
		delete(s.participants, participantKey{stored.ScopeID, stored.RedPlayerID})
		delete(s.participants, participantKey{stored.ScopeID, stored.YellowPlayerID})
	}
	return stored.Clone(), nil
}

// Len reports how many matches have been stored.
func (s *MatchStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

func (s *MatchStore) completeMatches() []*domain.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Match
	for _, m := range s.matches {
		if m.IsComplete() {
			out = append(out, m.Clone())
		}
	}
	return out
}

func (s *MatchStore) openMatchLocked(scope domain.ScopeID, player domain.PlayerID) *domain.Match {
	id, ok := s.participants[participantKey{scope, player}]
	if !ok {
		return nil
	}
	return s.matches[id]
}
