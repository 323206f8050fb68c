package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
	"github.com/BillyP-Bot/billybot-backend/pkg/uid"
)

type MatchRepo struct {
	DB *sql.DB
}

func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{DB: db}
}

const matchSelectFields = `g.id, g.server_id, g.red_user_id, g.yellow_user_id, COALESCE(g.to_move, ''), g.board, g.wager,
	COALESCE(g.status, ''), g.is_accepted, g.is_complete, g.version, g.created_at, g.updated_at`

// scanMatch is a helper that scans a row into a Match
func scanMatch(row interface{ Scan(dest ...any) error }) (*domain.Match, error) {
	var (
		m                      domain.Match
		toMove, status         string
		isAccepted, isComplete bool
	)
	err := row.Scan(
		&m.ID,
		&m.ScopeID,
		&m.RedPlayerID,
		&m.YellowPlayerID,
		&toMove,
		&m.Board,
		&m.Wager,
		&status,
		&isAccepted,
		&isComplete,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.ToMove = domain.PlayerID(toMove)
	m.State = domain.StateFromFlags(isAccepted, isComplete, status)
	if m.State == domain.StateWon {
		m.Winner = domain.PlayerID(status)
	}
	return &m, nil
}

func nullable(id domain.PlayerID) sql.NullString {
	return sql.NullString{String: string(id), Valid: id != ""}
}

func nullableStatus(m *domain.Match) sql.NullString {
	s := m.Status()
	return sql.NullString{String: s, Valid: s != ""}
}

// FindActiveMatch returns the player's incomplete game in the server, or nil.
func (r *MatchRepo) FindActiveMatch(ctx context.Context, scope domain.ScopeID, player domain.PlayerID, includePending bool) (*domain.Match, error) {
	query := `
	SELECT ` + matchSelectFields + `
	FROM connect_four_games g
	JOIN connect_four_participants p ON p.game_id = g.id
	WHERE p.server_id = $1 AND p.user_id = $2
	  AND NOT g.is_complete
	  AND ($3 OR g.is_accepted)
	LIMIT 1;
	`
	m, err := scanMatch(r.DB.QueryRowContext(ctx, query, scope, player, includePending))
	if err != nil {
		return nil, fmt.Errorf("failed to find active game: %w", err)
	}
	return m, nil
}

// FindPendingChallenge returns the player's unaccepted challenge, sent or received, or nil.
func (r *MatchRepo) FindPendingChallenge(ctx context.Context, scope domain.ScopeID, player domain.PlayerID) (*domain.Match, error) {
	query := `
	SELECT ` + matchSelectFields + `
	FROM connect_four_games g
	JOIN connect_four_participants p ON p.game_id = g.id
	WHERE p.server_id = $1 AND p.user_id = $2
	  AND NOT g.is_complete
	  AND NOT g.is_accepted
	LIMIT 1;
	`
	m, err := scanMatch(r.DB.QueryRowContext(ctx, query, scope, player))
	if err != nil {
		return nil, fmt.Errorf("failed to find pending challenge: %w", err)
	}
	return m, nil
}

func (r *MatchRepo) FindMatchByID(ctx context.Context, id string) (*domain.Match, error) {
	if !uid.IsMatchID(id) {
		return nil, nil
	}
	query := `SELECT ` + matchSelectFields + ` FROM connect_four_games g WHERE g.id = $1;`
	m, err := scanMatch(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get game by ID: %w", err)
	}
	return m, nil
}

// InsertMatch stores a new game and claims both players in one transaction.
// A player who already has an incomplete game yields domain.ErrAlreadyInMatch.
func (r *MatchRepo) InsertMatch(ctx context.Context, m *domain.Match) (*domain.Match, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO connect_four_games (id, server_id, red_user_id, yellow_user_id, to_move, board, wager, status, is_accepted, is_complete, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
	RETURNING ` + returningFields + `;
	`
	saved, err := scanMatch(tx.QueryRowContext(ctx, query,
		m.ID, m.ScopeID, m.RedPlayerID, m.YellowPlayerID, nullable(m.ToMove), m.Board, m.Wager,
		nullableStatus(m), m.IsAccepted(), m.IsComplete(), m.CreatedAt, m.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert game: %w", err)
	}

	for _, player := range []domain.PlayerID{m.RedPlayerID, m.YellowPlayerID} {
		if err := claimPlayerTx(ctx, tx, m.ScopeID, player, m.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return saved, nil
}

const returningFields = `id, server_id, red_user_id, yellow_user_id, COALESCE(to_move, ''), board, wager,
	COALESCE(status, ''), is_accepted, is_complete, version, created_at, updated_at`

// UpdateMatch writes m if the stored version still equals m.Version and the game is
// still open, otherwise domain.ErrStaleMatch. The participant guard follows the
// yellow player on a retargeted challenge and is released when the game completes.
func (r *MatchRepo) UpdateMatch(ctx context.Context, m *domain.Match) (*domain.Match, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		oldYellow domain.PlayerID
		version   int64
		complete  bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT yellow_user_id, version, is_complete FROM connect_four_games WHERE id = $1 FOR UPDATE;`, m.ID,
	).Scan(&oldYellow, &version, &complete)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStaleMatch
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock game: %w", err)
	}
	if version != m.Version || complete {
		return nil, domain.ErrStaleMatch
	}

	query := `
	UPDATE connect_four_games
	SET yellow_user_id = $2,
	    to_move = $3,
	    board = $4,
	    wager = $5,
	    status = $6,
	    is_accepted = $7,
	    is_complete = $8,
	    updated_at = $9,
	    version = version + 1
	WHERE id = $1
	RETURNING ` + returningFields + `;
	`
	saved, err := scanMatch(tx.QueryRowContext(ctx, query,
		m.ID, m.YellowPlayerID, nullable(m.ToMove), m.Board, m.Wager,
		nullableStatus(m), m.IsAccepted(), m.IsComplete(), m.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	if oldYellow != m.YellowPlayerID {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM connect_four_participants WHERE game_id = $1 AND user_id = $2;`, m.ID, oldYellow); err != nil {
			return nil, fmt.Errorf("failed to release previous opponent: %w", err)
		}
		if err := claimPlayerTx(ctx, tx, m.ScopeID, m.YellowPlayerID, m.ID); err != nil {
			return nil, err
		}
	}

	if m.IsComplete() {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM connect_four_participants WHERE game_id = $1;`, m.ID); err != nil {
			return nil, fmt.Errorf("failed to release players: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return saved, nil
}

// claimPlayerTx marks player as busy with gameID within a transaction
func claimPlayerTx(ctx context.Context, tx *sql.Tx, scope domain.ScopeID, player domain.PlayerID, gameID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO connect_four_participants (server_id, user_id, game_id) VALUES ($1, $2, $3);`,
		scope, player, gameID)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyInMatch
	}
	if err != nil {
		return fmt.Errorf("failed to claim player %s: %w", player, err)
	}
	return nil
}

// UnsettledOutcomes lists complete games with no settlement row, oldest first.
// A limit of zero or less means no limit.
func (r *MatchRepo) UnsettledOutcomes(ctx context.Context, limit int) ([]domain.Outcome, error) {
	maxRows := sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
	query := `
	SELECT ` + matchSelectFields + `
	FROM connect_four_games g
	LEFT JOIN connect_four_settlements s ON s.game_id = g.id
	WHERE g.is_complete AND s.game_id IS NULL
	ORDER BY g.updated_at
	LIMIT $1;
	`
	rows, err := r.DB.QueryContext(ctx, query, maxRows)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsettled games: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unsettled game: %w", err)
		}
		if outcome := m.Outcome(); outcome != nil {
			outcomes = append(outcomes, *outcome)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unsettled games: %w", err)
	}
	return outcomes, nil
}
