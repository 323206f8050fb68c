package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
)

// ApplyMove validates player's move and drops the token into m in place.
// The turn is not advanced and nothing is persisted; see EndTurn.
func (s *Service) ApplyMove(player domain.PlayerID, m *domain.Match, column int) (*domain.Match, int, error) {
	row, err := m.ApplyMove(player, column)
	if err != nil {
		return nil, -1, err
	}
	return m, row, nil
}

// EndTurn finalizes the move already applied to m: a win or draw completes the match,
// anything else hands the turn to the opponent. The result is persisted and, for a
// completed match, handed to the settler. A settlement failure is returned alongside
// the saved match since the outcome itself is already durable.
func (s *Service) EndTurn(ctx context.Context, m *domain.Match) (*domain.Match, *domain.Outcome, error) {
	outcome, err := m.EndTurn()
	if err != nil {
		return nil, nil, err
	}
	m.UpdatedAt = s.now()

	saved, err := s.matches.UpdateMatch(ctx, m)
	if err != nil {
		return nil, nil, err
	}

	if outcome == nil {
		return saved, nil, nil
	}

	s.log.Info().
		Str("match_id", saved.ID).
		Str("server_id", string(saved.ScopeID)).
		Str("status", saved.Status()).
		Int64("wager", saved.Wager).
		Msg("match complete")

	if s.settler != nil {
		if err := s.settler.Settle(ctx, *outcome); err != nil {
			s.log.Error().Err(err).Str("match_id", saved.ID).Msg("wager settlement failed")
			return saved, outcome, fmt.Errorf("settle wager for match %s: %w", saved.ID, err)
		}
	}
	return saved, outcome, nil
}

// ReconcileSettlements retries settlement for complete matches the ledger reports as
// unsettled, at most limit per call. It returns how many were settled.
func (s *Service) ReconcileSettlements(ctx context.Context, limit int) (int, error) {
	if s.settler == nil || s.ledger == nil {
		return 0, nil
	}
	outcomes, err := s.ledger.UnsettledOutcomes(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unsettled matches: %w", err)
	}

	settled := 0
	var errs []error
	for _, outcome := range outcomes {
		if err := s.settler.Settle(ctx, outcome); err != nil {
			errs = append(errs, fmt.Errorf("settle wager for match %s: %w", outcome.MatchID, err))
			continue
		}
		settled++
		s.log.Info().Str("match_id", outcome.MatchID).Int64("wager", outcome.Wager).Msg("settlement reconciled")
	}
	return settled, errors.Join(errs...)
}
