package game

import (
	"context"
	"fmt"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
)

// MoveResult describes one played move. SettlementError is set when the match
// completed but the wager could not be settled yet; the move itself stands.
type MoveResult struct {
	Match           *domain.Match   `json:"match"`
	Column          int             `json:"column"`
	Row             int             `json:"row"`
	Outcome         *domain.Outcome `json:"outcome,omitempty"`
	SettlementError string          `json:"settlement_error,omitempty"`
}

func (s *Service) player(ctx context.Context, scope domain.ScopeID, id domain.PlayerID) (*domain.Player, error) {
	p, err := s.players.GetPlayer(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrPlayerNotFound
	}
	return p, nil
}

// Challenge issues or re-targets challengerID's challenge to challengedID.
func (s *Service) Challenge(ctx context.Context, scope domain.ScopeID, challengerID, challengedID domain.PlayerID, wager int64) (*domain.Match, error) {
	if challengerID == challengedID {
		return nil, domain.ErrSelfChallenge
	}
	if wager < 0 {
		return nil, domain.ErrInvalidWager
	}

	challenger, err := s.player(ctx, scope, challengerID)
	if err != nil {
		return nil, err
	}
	challenged, err := s.player(ctx, scope, challengedID)
	if err != nil {
		return nil, err
	}
	if challenger.Balance < wager || challenged.Balance < wager {
		return nil, domain.ErrInsufficientFunds
	}

	if playing, err := s.HasActiveMatch(ctx, scope, challengerID); err != nil {
		return nil, err
	} else if playing {
		return nil, domain.ErrAlreadyInMatch
	}

	existing, err := s.GetUnacceptedChallenge(ctx, scope, challengerID)
	if err != nil {
		return nil, err
	}
	// a challenge received from someone else still counts as the player's match
	if existing != nil && existing.RedPlayerID != challengerID {
		return nil, domain.ErrAlreadyInMatch
	}

	busy, err := s.GetActiveMatch(ctx, scope, challengedID, true)
	if err != nil {
		return nil, err
	}
	if busy != nil && (existing == nil || busy.ID != existing.ID) {
		return nil, domain.ErrOpponentBusy
	}

	if existing != nil {
		return s.UpdateChallenge(ctx, existing, *challenged, wager)
	}
	return s.CreateChallenge(ctx, *challenger, *challenged, wager)
}

// Accept starts the pending challenge addressed to playerID.
func (s *Service) Accept(ctx context.Context, scope domain.ScopeID, playerID domain.PlayerID) (*domain.Match, error) {
	pending, err := s.GetUnacceptedChallenge(ctx, scope, playerID)
	if err != nil {
		return nil, err
	}
	if pending == nil || pending.YellowPlayerID != playerID {
		return nil, domain.ErrNoPendingChallenge
	}

	// balances may have moved since the challenge was issued
	if pending.Wager > 0 {
		for _, id := range []domain.PlayerID{pending.RedPlayerID, pending.YellowPlayerID} {
			p, err := s.player(ctx, scope, id)
			if err != nil {
				return nil, err
			}
			if p.Balance < pending.Wager {
				return nil, domain.ErrInsufficientFunds
			}
		}
	}

	unlock, err := s.locker.Lock(ctx, matchLockKey(pending.ID))
	if err != nil {
		return nil, fmt.Errorf("lock match %s: %w", pending.ID, err)
	}
	defer unlock()

	return s.AcceptChallenge(ctx, pending)
}

// Move plays column for playerID in their active match: validate, drop, detect, advance.
func (s *Service) Move(ctx context.Context, scope domain.ScopeID, playerID domain.PlayerID, column int) (*MoveResult, error) {
	active, err := s.AssertActiveMatch(ctx, scope, playerID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, matchLockKey(active.ID))
	if err != nil {
		return nil, fmt.Errorf("lock match %s: %w", active.ID, err)
	}
	defer unlock()

	// re-read under the lock so the move applies to the current snapshot
	m, err := s.matches.FindMatchByID(ctx, active.ID)
	if err != nil {
		return nil, fmt.Errorf("reload match %s: %w", active.ID, err)
	}
	if m == nil || m.IsComplete() {
		return nil, domain.ErrNoActiveMatch
	}

	m, row, err := s.ApplyMove(playerID, m, column)
	if err != nil {
		return nil, err
	}

	saved, outcome, err := s.EndTurn(ctx, m)
	if saved == nil {
		return nil, err
	}

	s.log.Debug().
		Str("match_id", saved.ID).
		Str("player", string(playerID)).
		Int("column", column).
		Int("row", row).
		Msg("move played")

	result := &MoveResult{Match: saved, Column: column, Row: row, Outcome: outcome}
	if err != nil {
		result.SettlementError = err.Error()
	}
	return result, err
}

// CurrentMatch returns the player's incomplete match, pending or in progress.
func (s *Service) CurrentMatch(ctx context.Context, scope domain.ScopeID, playerID domain.PlayerID) (*domain.Match, error) {
	m, err := s.GetActiveMatch(ctx, scope, playerID, true)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNoActiveMatch
	}
	return m, nil
}
