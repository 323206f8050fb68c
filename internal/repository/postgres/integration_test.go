package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
	"github.com/BillyP-Bot/billybot-backend/pkg/uid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDB needs a live server; set DATABASE_TEST_URL to run these.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("DATABASE_TEST_URL")
	if url == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}
	driver := os.Getenv("DATABASE_TEST_DRIVER")
	if driver == "" {
		driver = "pgx"
	}
	ctx := context.Background()
	db, err := Open(ctx, driver, url, 5, 5, 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrations(ctx, db))
	return db
}

// newScope returns a server id no other test run uses.
func newScope() domain.ScopeID {
	return domain.ScopeID("test-" + uuid.NewString())
}

func addPlayers(t *testing.T, db *sql.DB, scope domain.ScopeID, balance int64, ids ...domain.PlayerID) {
	t.Helper()
	for _, id := range ids {
		_, err := db.ExecContext(context.Background(),
			`INSERT INTO players (server_id, user_id, username, balance) VALUES ($1, $2, $3, $4);`,
			scope, id, string(id), balance)
		require.NoError(t, err)
	}
}

func newMatch(scope domain.ScopeID, red, yellow domain.PlayerID, wager int64) *domain.Match {
	return domain.NewChallenge(uid.GenerateMatchID(),
		domain.Player{ID: red, ScopeID: scope},
		domain.Player{ID: yellow, ScopeID: scope},
		wager, time.Now().UTC())
}

// completeAsRedWin starts m and records red as the winner.
func completeAsRedWin(t *testing.T, repo *MatchRepo, m *domain.Match) *domain.Match {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.Start(m.RedPlayerID))
	started, err := repo.UpdateMatch(ctx, m)
	require.NoError(t, err)

	started.State = domain.StateWon
	started.Winner = started.RedPlayerID
	started.ToMove = ""
	done, err := repo.UpdateMatch(ctx, started)
	require.NoError(t, err)
	return done
}

func TestMatchRepoInsertGuardsOpenMatches(t *testing.T) {
	db := testDB(t)
	repo := NewMatchRepo(db)
	ctx := context.Background()
	scope := newScope()

	first, err := repo.InsertMatch(ctx, newMatch(scope, "a", "b", 10))
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.Version)
	assert.Equal(t, domain.StatePending, first.State)
	assert.Len(t, first.Board, domain.Columns)

	_, err = repo.InsertMatch(ctx, newMatch(scope, "c", "b", 0))
	assert.ErrorIs(t, err, domain.ErrAlreadyInMatch)
	_, err = repo.InsertMatch(ctx, newMatch(scope, "a", "c", 0))
	assert.ErrorIs(t, err, domain.ErrAlreadyInMatch)

	// the failed insert left no game behind for c
	m, err := repo.FindActiveMatch(ctx, scope, "c", true)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = repo.FindActiveMatch(ctx, scope, "b", true)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, first.ID, m.ID)

	m, err = repo.FindActiveMatch(ctx, scope, "b", false)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = repo.FindPendingChallenge(ctx, scope, "a")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, first.ID, m.ID)

	// another server is a separate scope
	_, err = repo.InsertMatch(ctx, newMatch(newScope(), "a", "b", 0))
	assert.NoError(t, err)
}

func TestMatchRepoUpdateIsCompareAndSwap(t *testing.T) {
	db := testDB(t)
	repo := NewMatchRepo(db)
	ctx := context.Background()
	scope := newScope()

	created, err := repo.InsertMatch(ctx, newMatch(scope, "a", "b", 0))
	require.NoError(t, err)
	stale := created.Clone()

	require.NoError(t, created.Start("b"))
	_, err = created.ApplyMove("b", 3)
	require.NoError(t, err)
	saved, err := repo.UpdateMatch(ctx, created)
	require.NoError(t, err)
	assert.EqualValues(t, 2, saved.Version)
	assert.Equal(t, domain.StateInProgress, saved.State)
	assert.Equal(t, []domain.Color{domain.Yellow}, saved.Board[3])

	require.NoError(t, stale.Start("a"))
	_, err = repo.UpdateMatch(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrStaleMatch)

	reloaded, err := repo.FindMatchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlayerID("b"), reloaded.ToMove)
	assert.EqualValues(t, 2, reloaded.Version)

	missing, err := repo.FindMatchByID(ctx, uid.GenerateMatchID())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMatchRepoRetargetMovesGuard(t *testing.T) {
	db := testDB(t)
	repo := NewMatchRepo(db)
	ctx := context.Background()
	scope := newScope()

	m, err := repo.InsertMatch(ctx, newMatch(scope, "a", "b", 5))
	require.NoError(t, err)
	changed, err := m.Retarget("c", 5)
	require.NoError(t, err)
	require.True(t, changed)
	_, err = repo.UpdateMatch(ctx, m)
	require.NoError(t, err)

	// b is free again, c is now taken
	_, err = repo.InsertMatch(ctx, newMatch(scope, "b", "d", 0))
	assert.NoError(t, err)
	_, err = repo.InsertMatch(ctx, newMatch(scope, "e", "c", 0))
	assert.ErrorIs(t, err, domain.ErrAlreadyInMatch)

	found, err := repo.FindPendingChallenge(ctx, scope, "c")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, m.ID, found.ID)
}

func TestMatchRepoRetargetToBusyPlayer(t *testing.T) {
	db := testDB(t)
	repo := NewMatchRepo(db)
	ctx := context.Background()
	scope := newScope()

	_, err := repo.InsertMatch(ctx, newMatch(scope, "c", "d", 0))
	require.NoError(t, err)
	m, err := repo.InsertMatch(ctx, newMatch(scope, "a", "b", 0))
	require.NoError(t, err)

	_, err = m.Retarget("d", 0)
	require.NoError(t, err)
	_, err = repo.UpdateMatch(ctx, m)
	assert.ErrorIs(t, err, domain.ErrAlreadyInMatch)

	// the rollback kept b on the original challenge
	found, err := repo.FindPendingChallenge(ctx, scope, "b")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.PlayerID("b"), found.YellowPlayerID)
}

func TestMatchRepoCompletionReleasesPlayers(t *testing.T) {
	db := testDB(t)
	repo := NewMatchRepo(db)
	ctx := context.Background()
	scope := newScope()

	m, err := repo.InsertMatch(ctx, newMatch(scope, "a", "b", 0))
	require.NoError(t, err)
	done := completeAsRedWin(t, repo, m)
	assert.Equal(t, domain.StateWon, done.State)
	assert.Equal(t, domain.PlayerID("a"), done.Winner)
	assert.Empty(t, done.ToMove)

	for _, id := range []domain.PlayerID{"a", "b"} {
		active, err := repo.FindActiveMatch(ctx, scope, id, true)
		require.NoError(t, err)
		assert.Nil(t, active)
	}

	// complete games accept no further writes
	_, err = repo.UpdateMatch(ctx, done)
	assert.ErrorIs(t, err, domain.ErrStaleMatch)

	_, err = repo.InsertMatch(ctx, newMatch(scope, "b", "a", 0))
	assert.NoError(t, err)
}

func TestPlayerRepoSettleOnce(t *testing.T) {
	db := testDB(t)
	matches := NewMatchRepo(db)
	players := NewPlayerRepo(db)
	ctx := context.Background()
	scope := newScope()
	addPlayers(t, db, scope, 100, "a", "b")

	m, err := matches.InsertMatch(ctx, newMatch(scope, "a", "b", 30))
	require.NoError(t, err)
	done := completeAsRedWin(t, matches, m)

	assert.Contains(t, unsettledIDs(t, matches), done.ID)

	outcome := done.Outcome()
	require.NotNil(t, outcome)
	require.NoError(t, players.Settle(ctx, *outcome))
	require.NoError(t, players.Settle(ctx, *outcome))

	winner, err := players.GetPlayer(ctx, scope, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 130, winner.Balance)
	assert.Equal(t, 1, winner.Wins)
	loser, err := players.GetPlayer(ctx, scope, "b")
	require.NoError(t, err)
	assert.EqualValues(t, 70, loser.Balance)
	assert.Equal(t, 1, loser.Losses)

	assert.NotContains(t, unsettledIDs(t, matches), done.ID)
}

func TestPlayerRepoSettleDraw(t *testing.T) {
	db := testDB(t)
	matches := NewMatchRepo(db)
	players := NewPlayerRepo(db)
	ctx := context.Background()
	scope := newScope()
	addPlayers(t, db, scope, 100, "a", "b")

	m, err := matches.InsertMatch(ctx, newMatch(scope, "a", "b", 30))
	require.NoError(t, err)
	require.NoError(t, m.Start("a"))
	started, err := matches.UpdateMatch(ctx, m)
	require.NoError(t, err)
	started.State = domain.StateDrawn
	started.ToMove = ""
	done, err := matches.UpdateMatch(ctx, started)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraw, done.Status())

	require.NoError(t, players.Settle(ctx, *done.Outcome()))
	for _, id := range []domain.PlayerID{"a", "b"} {
		p, err := players.GetPlayer(ctx, scope, id)
		require.NoError(t, err)
		assert.EqualValues(t, 100, p.Balance)
		assert.Equal(t, 1, p.Draws)
	}
}

func TestPlayerRepoSettleUnknownPlayerRollsBack(t *testing.T) {
	db := testDB(t)
	matches := NewMatchRepo(db)
	players := NewPlayerRepo(db)
	ctx := context.Background()
	scope := newScope()
	addPlayers(t, db, scope, 100, "a")

	m, err := matches.InsertMatch(ctx, newMatch(scope, "a", "ghost", 30))
	require.NoError(t, err)
	done := completeAsRedWin(t, matches, m)

	err = players.Settle(ctx, *done.Outcome())
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	// nothing was recorded, so reconciliation still sees the game
	p, err := players.GetPlayer(ctx, scope, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 100, p.Balance)
	assert.Contains(t, unsettledIDs(t, matches), done.ID)

	_, err = players.GetPlayer(ctx, scope, "ghost")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func unsettledIDs(t *testing.T, repo *MatchRepo) []string {
	t.Helper()
	outcomes, err := repo.UnsettledOutcomes(context.Background(), 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		ids = append(ids, o.MatchID)
	}
	return ids
}
