package game

import (
	"context"
	"fmt"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
)

// GetActiveMatch returns the player's incomplete match in scope, or nil.
// Pending challenges are only considered when includePending is set.
func (s *Service) GetActiveMatch(ctx context.Context, scope domain.ScopeID, player domain.PlayerID, includePending bool) (*domain.Match, error) {
	m, err := s.matches.FindActiveMatch(ctx, scope, player, includePending)
	if err != nil {
		return nil, fmt.Errorf("find active match for %s: %w", player, err)
	}
	return m, nil
}

// GetUnacceptedChallenge returns the player's open challenge, sent or received, or nil.
func (s *Service) GetUnacceptedChallenge(ctx context.Context, scope domain.ScopeID, player domain.PlayerID) (*domain.Match, error) {
	m, err := s.matches.FindPendingChallenge(ctx, scope, player)
	if err != nil {
		return nil, fmt.Errorf("find pending challenge for %s: %w", player, err)
	}
	return m, nil
}

func (s *Service) HasActiveMatch(ctx context.Context, scope domain.ScopeID, player domain.PlayerID) (bool, error) {
	m, err := s.GetActiveMatch(ctx, scope, player, false)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// AssertActiveMatch returns the player's accepted, incomplete match or domain.ErrNoActiveMatch.
func (s *Service) AssertActiveMatch(ctx context.Context, scope domain.ScopeID, player domain.PlayerID) (*domain.Match, error) {
	m, err := s.GetActiveMatch(ctx, scope, player, false)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNoActiveMatch
	}
	return m, nil
}

// CreateChallenge stores a new pending match with the challenger as red.
// Callers check both players with GetActiveMatch first; the store still rejects a
// second incomplete match with domain.ErrAlreadyInMatch.
func (s *Service) CreateChallenge(ctx context.Context, challenger, challenged domain.Player, wager int64) (*domain.Match, error) {
	if wager < 0 {
		return nil, domain.ErrInvalidWager
	}
	m := domain.NewChallenge(s.newID(), challenger, challenged, wager, s.now())
	created, err := s.matches.InsertMatch(ctx, m)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("match_id", created.ID).
		Str("server_id", string(created.ScopeID)).
		Str("red", string(created.RedPlayerID)).
		Str("yellow", string(created.YellowPlayerID)).
		Int64("wager", created.Wager).
		Msg("challenge created")
	return created, nil
}

// UpdateChallenge retargets a pending challenge. Re-issuing an identical challenge
// returns existing untouched so no duplicate record or notification is produced.
func (s *Service) UpdateChallenge(ctx context.Context, existing *domain.Match, opponent domain.Player, wager int64) (*domain.Match, error) {
	if wager < 0 {
		return nil, domain.ErrInvalidWager
	}
	next := existing.Clone()
	changed, err := next.Retarget(opponent.ID, wager)
	if err != nil {
		return nil, err
	}
	if !changed {
		return existing, nil
	}

	next.UpdatedAt = s.now()
	updated, err := s.matches.UpdateMatch(ctx, next)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("match_id", updated.ID).
		Str("yellow", string(updated.YellowPlayerID)).
		Int64("wager", updated.Wager).
		Msg("challenge updated")
	return updated, nil
}

// AcceptChallenge starts a pending match and flips a fair coin for the first mover.
func (s *Service) AcceptChallenge(ctx context.Context, pending *domain.Match) (*domain.Match, error) {
	first := pending.YellowPlayerID
	if s.coin.Flip() {
		first = pending.RedPlayerID
	}

	next := pending.Clone()
	if err := next.Start(first); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()

	started, err := s.matches.UpdateMatch(ctx, next)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("match_id", started.ID).
		Str("to_move", string(started.ToMove)).
		Msg("challenge accepted")
	return started, nil
}
