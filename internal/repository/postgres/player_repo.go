package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

type PlayerRepo struct {
	DB *sql.DB
}

func NewPlayerRepo(db *sql.DB) *PlayerRepo {
	return &PlayerRepo{DB: db}
}

const playerSelectFields = `server_id, user_id, username, balance, connect_four_wins, connect_four_losses, connect_four_draws`

// scanPlayer is a helper that scans a row into a Player
func scanPlayer(row interface{ Scan(dest ...any) error }) (*domain.Player, error) {
	var p domain.Player
	err := row.Scan(&p.ScopeID, &p.ID, &p.Username, &p.Balance, &p.Wins, &p.Losses, &p.Draws)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlayer retrieves a server member, or domain.ErrPlayerNotFound
func (r *PlayerRepo) GetPlayer(ctx context.Context, scope domain.ScopeID, id domain.PlayerID) (*domain.Player, error) {
	query := `SELECT ` + playerSelectFields + ` FROM players WHERE server_id = $1 AND user_id = $2;`
	p, err := scanPlayer(r.DB.QueryRowContext(ctx, query, scope, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// Settle transfers the wager from loser to winner and records the result transactionally.
// Each game is settled at most once.
func (r *PlayerRepo) Settle(ctx context.Context, outcome domain.Outcome) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO connect_four_settlements (game_id, winner_id, loser_id, wager)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (game_id) DO NOTHING;
	`, outcome.MatchID, nullable(outcome.Winner), nullable(outcome.Loser()), outcome.Wager)
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.Warn().Str("match_id", outcome.MatchID).Msg("game already settled")
		return nil
	}

	if outcome.Draw {
		for _, id := range []domain.PlayerID{outcome.RedPlayerID, outcome.YellowPlayerID} {
			if err := r.updatePlayerStatsTx(ctx, tx, outcome.ScopeID, id, 0, "connect_four_draws"); err != nil {
				return err
			}
		}
	} else {
		if err := r.updatePlayerStatsTx(ctx, tx, outcome.ScopeID, outcome.Winner, outcome.Wager, "connect_four_wins"); err != nil {
			return err
		}
		if err := r.updatePlayerStatsTx(ctx, tx, outcome.ScopeID, outcome.Loser(), -outcome.Wager, "connect_four_losses"); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// updatePlayerStatsTx adjusts balance and bumps one result counter within a transaction
func (r *PlayerRepo) updatePlayerStatsTx(ctx context.Context, tx *sql.Tx, scope domain.ScopeID, id domain.PlayerID, delta int64, counter string) error {
	// counter is a fixed column name chosen by Settle
	query := `
	UPDATE players
	SET balance = balance + $3,
	    ` + counter + ` = ` + counter + ` + 1
	WHERE server_id = $1 AND user_id = $2;
	`
	res, err := tx.ExecContext(ctx, query, scope, id, delta)
	if err != nil {
		return fmt.Errorf("failed to update player stats in transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("settle player %s: %w", id, domain.ErrPlayerNotFound)
	}
	return nil
}
