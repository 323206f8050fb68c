package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedMatch(t *testing.T, first PlayerID) *Match {
	t.Helper()
	red := Player{ID: "red", ScopeID: "guild"}
	yellow := Player{ID: "yellow", ScopeID: "guild"}
	m := NewChallenge("m1", red, yellow, 100, time.Now())
	require.NoError(t, m.Start(first))
	return m
}

func TestNewChallengeIsPending(t *testing.T) {
	m := NewChallenge("m1", Player{ID: "a", ScopeID: "g"}, Player{ID: "b", ScopeID: "g"}, 0, time.Now())

	assert.Equal(t, StatePending, m.State)
	assert.Equal(t, PlayerID("a"), m.RedPlayerID)
	assert.Equal(t, PlayerID("b"), m.YellowPlayerID)
	assert.Equal(t, ScopeID("g"), m.ScopeID)
	assert.Empty(t, m.ToMove)
	assert.False(t, m.IsAccepted())
	assert.False(t, m.IsComplete())
	assert.Empty(t, m.Status())
	assert.Zero(t, m.Board.MoveCount())
}

func TestRetarget(t *testing.T) {
	m := NewChallenge("m1", Player{ID: "a"}, Player{ID: "b"}, 10, time.Now())

	changed, err := m.Retarget("b", 10)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = m.Retarget("c", 10)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, PlayerID("c"), m.YellowPlayerID)

	changed, err = m.Retarget("c", 25)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.EqualValues(t, 25, m.Wager)

	require.NoError(t, m.Start("a"))
	_, err = m.Retarget("c", 50)
	assert.ErrorIs(t, err, ErrChallengeAccepted)
	assert.EqualValues(t, 25, m.Wager)
}

func TestStart(t *testing.T) {
	m := NewChallenge("m1", Player{ID: "a"}, Player{ID: "b"}, 0, time.Now())
	assert.ErrorIs(t, m.Start("z"), ErrPlayerNotFound)
	assert.Equal(t, StatePending, m.State)

	require.NoError(t, m.Start("b"))
	assert.Equal(t, StateInProgress, m.State)
	assert.Equal(t, PlayerID("b"), m.ToMove)
	assert.True(t, m.IsAccepted())

	assert.ErrorIs(t, m.Start("a"), ErrChallengeAccepted)
}

func TestApplyMoveRejections(t *testing.T) {
	m := startedMatch(t, "red")

	_, err := m.ApplyMove("yellow", 3)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	for _, col := range []int{-1, 7} {
		_, err = m.ApplyMove("red", col)
		assert.ErrorIs(t, err, ErrInvalidColumn)
	}

	for i := 0; i < Rows; i++ {
		m.Board[0] = append(m.Board[0], Yellow)
	}
	_, err = m.ApplyMove("red", 0)
	assert.ErrorIs(t, err, ErrColumnFull)

	assert.Equal(t, Rows, m.Board.MoveCount())
	assert.Equal(t, PlayerID("red"), m.ToMove)
}

func TestApplyMoveNotYourTurnRegardlessOfBoard(t *testing.T) {
	m := startedMatch(t, "yellow")
	m.Board = drawnBoard()

	_, err := m.ApplyMove("red", 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	pending := NewChallenge("m2", Player{ID: "red"}, Player{ID: "yellow"}, 0, time.Now())
	_, err = pending.ApplyMove("red", 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestApplyMoveDropsMoverColorWithoutAdvancing(t *testing.T) {
	m := startedMatch(t, "yellow")

	row, err := m.ApplyMove("yellow", 4)
	require.NoError(t, err)
	assert.Equal(t, 0, row)
	assert.Equal(t, []Color{Yellow}, m.Board[4])
	assert.Equal(t, PlayerID("yellow"), m.ToMove)
}

func TestEndTurnPassesTurn(t *testing.T) {
	m := startedMatch(t, "red")
	_, err := m.ApplyMove("red", 3)
	require.NoError(t, err)

	outcome, err := m.EndTurn()
	require.NoError(t, err)
	assert.Nil(t, outcome)
	assert.Equal(t, PlayerID("yellow"), m.ToMove)
	assert.Equal(t, StateInProgress, m.State)
}

func TestEndTurnWin(t *testing.T) {
	m := startedMatch(t, "red")
	// red stacks column 0, yellow stacks column 1
	moves := []struct {
		player PlayerID
		col    int
	}{
		{"red", 0}, {"yellow", 1}, {"red", 0}, {"yellow", 1}, {"red", 0}, {"yellow", 1},
	}
	for _, mv := range moves {
		_, err := m.ApplyMove(mv.player, mv.col)
		require.NoError(t, err)
		outcome, err := m.EndTurn()
		require.NoError(t, err)
		require.Nil(t, outcome)
	}

	_, err := m.ApplyMove("red", 0)
	require.NoError(t, err)
	outcome, err := m.EndTurn()
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, StateWon, m.State)
	assert.Equal(t, PlayerID("red"), m.Winner)
	assert.Empty(t, m.ToMove)
	assert.True(t, m.IsComplete())
	assert.Equal(t, "red", m.Status())

	assert.Equal(t, PlayerID("red"), outcome.Winner)
	assert.Equal(t, PlayerID("yellow"), outcome.Loser())
	assert.False(t, outcome.Draw)
	assert.EqualValues(t, 100, outcome.Wager)

	_, err = m.EndTurn()
	assert.ErrorIs(t, err, ErrMatchNotInProgress)
	_, err = m.ApplyMove("yellow", 2)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestEndTurnDraw(t *testing.T) {
	m := startedMatch(t, "yellow")
	m.Board = drawnBoard()
	m.Board[6] = m.Board[6][:Rows-1]

	_, err := m.ApplyMove("yellow", 6)
	require.NoError(t, err)
	outcome, err := m.EndTurn()
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, StateDrawn, m.State)
	assert.Equal(t, StatusDraw, m.Status())
	assert.Empty(t, m.ToMove)
	assert.Empty(t, m.Winner)
	assert.True(t, outcome.Draw)
	assert.Empty(t, outcome.Loser())
}

func TestStateFromFlags(t *testing.T) {
	assert.Equal(t, StatePending, StateFromFlags(false, false, ""))
	assert.Equal(t, StateInProgress, StateFromFlags(true, false, ""))
	assert.Equal(t, StateWon, StateFromFlags(true, true, "1234"))
	assert.Equal(t, StateDrawn, StateFromFlags(true, true, StatusDraw))
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(ErrColumnFull))
	assert.True(t, IsRejection(ErrInvalidBoard))
	assert.False(t, IsRejection(assert.AnError))
	assert.False(t, IsRejection(nil))
}

func TestOutcomeOnlyWhenComplete(t *testing.T) {
	m := startedMatch(t, "red")
	assert.Nil(t, m.Outcome())

	m.State = StateWon
	m.Winner = "yellow"
	m.ToMove = ""
	outcome := m.Outcome()
	require.NotNil(t, outcome)
	assert.Equal(t, "m1", outcome.MatchID)
	assert.Equal(t, PlayerID("yellow"), outcome.Winner)
	assert.Equal(t, PlayerID("red"), outcome.Loser())
}

func TestMatchJSONCarriesLifecycleFlags(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		winner   PlayerID
		accepted bool
		complete bool
		status   string
	}{
		{"pending", StatePending, "", false, false, ""},
		{"in progress", StateInProgress, "", true, false, ""},
		{"won", StateWon, "red", true, true, "red"},
		{"drawn", StateDrawn, "", true, true, StatusDraw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewChallenge("m1", Player{ID: "red", ScopeID: "g"}, Player{ID: "yellow", ScopeID: "g"}, 5, time.Now())
			m.State = tt.state
			m.Winner = tt.winner

			data, err := json.Marshal(m)
			require.NoError(t, err)
			var out map[string]any
			require.NoError(t, json.Unmarshal(data, &out))

			assert.Equal(t, tt.accepted, out["is_accepted"])
			assert.Equal(t, tt.complete, out["is_complete"])
			assert.Equal(t, tt.status, out["status"])
			assert.Equal(t, string(tt.state), out["state"])
			assert.Equal(t, "m1", out["id"])
			assert.Len(t, out["board"], Columns)
		})
	}
}
