package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the lifecycle position of a match.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateWon        State = "won"
	StateDrawn      State = "drawn"
)

func (s State) Terminal() bool {
	return s == StateWon || s == StateDrawn
}

// StateFromFlags rebuilds the lifecycle state from the stored is_accepted, is_complete
// and status columns.
func StateFromFlags(isAccepted, isComplete bool, status string) State {
	switch {
	case isComplete && status == StatusDraw:
		return StateDrawn
	case isComplete:
		return StateWon
	case isAccepted:
		return StateInProgress
	default:
		return StatePending
	}
}

// Match is one game of connect four from challenge to outcome.
// The challenger always plays red.
type Match struct {
	ID             string    `json:"id"`
	ScopeID        ScopeID   `json:"server_id"`
	RedPlayerID    PlayerID  `json:"red_user_id"`
	YellowPlayerID PlayerID  `json:"yellow_user_id"`
	ToMove         PlayerID  `json:"to_move,omitempty"`
	Board          Board     `json:"board"`
	Wager          int64     `json:"wager"`
	State          State     `json:"state"`
	Winner         PlayerID  `json:"winner,omitempty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewChallenge builds a pending match with an empty board.
func NewChallenge(id string, challenger, challenged Player, wager int64, now time.Time) *Match {
	return &Match{
		ID:             id,
		ScopeID:        challenger.ScopeID,
		RedPlayerID:    challenger.ID,
		YellowPlayerID: challenged.ID,
		Board:          NewBoard(),
		Wager:          wager,
		State:          StatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (m *Match) IsAccepted() bool {
	return m.State != StatePending
}

func (m *Match) IsComplete() bool {
	return m.State.Terminal()
}

// Status is the winner id for a won match, "draw" for a drawn one and empty otherwise.
func (m *Match) Status() string {
	switch m.State {
	case StateWon:
		return string(m.Winner)
	case StateDrawn:
		return StatusDraw
	default:
		return ""
	}
}

func (m *Match) HasPlayer(id PlayerID) bool {
	return id == m.RedPlayerID || id == m.YellowPlayerID
}

// ColorOf returns the color played by id.
func (m *Match) ColorOf(id PlayerID) (Color, bool) {
	switch id {
	case m.RedPlayerID:
		return Red, true
	case m.YellowPlayerID:
		return Yellow, true
	default:
		return "", false
	}
}

func (m *Match) Opponent(id PlayerID) PlayerID {
	if id == m.RedPlayerID {
		return m.YellowPlayerID
	}
	return m.RedPlayerID
}

// Retarget points a pending challenge at a new opponent and/or wager.
// changed is false when nothing differs, so callers can skip the write.
func (m *Match) Retarget(opponent PlayerID, wager int64) (changed bool, err error) {
	if m.State != StatePending {
		return false, ErrChallengeAccepted
	}
	if m.YellowPlayerID == opponent && m.Wager == wager {
		return false, nil
	}
	m.YellowPlayerID = opponent
	m.Wager = wager
	return true, nil
}

// Start accepts a pending challenge with first to move.
func (m *Match) Start(first PlayerID) error {
	if m.State != StatePending {
		return ErrChallengeAccepted
	}
	if !m.HasPlayer(first) {
		return fmt.Errorf("%w: %s is not in match %s", ErrPlayerNotFound, first, m.ID)
	}
	m.State = StateInProgress
	m.ToMove = first
	return nil
}

// ApplyMove validates a move by player and drops their token. It does not
// advance the turn; EndTurn does that once the board has been checked.
func (m *Match) ApplyMove(player PlayerID, column int) (int, error) {
	// a pending or finished match has no player to move
	if m.ToMove != player {
		return -1, ErrNotYourTurn
	}
	if m.State != StateInProgress {
		return -1, ErrMatchNotInProgress
	}
	if column < 0 || column >= Columns {
		return -1, ErrInvalidColumn
	}
	if m.Board.IsColumnFull(column) {
		return -1, ErrColumnFull
	}
	color, _ := m.ColorOf(player)
	return m.Board.Drop(column, color)
}

// EndTurn settles the move just made: the mover wins, the board is drawn,
// or the turn passes to the opponent. A non-nil Outcome means the match is over.
func (m *Match) EndTurn() (*Outcome, error) {
	if m.State != StateInProgress {
		return nil, ErrMatchNotInProgress
	}

	switch {
	case IsGameWon(m):
		m.State = StateWon
		m.Winner = m.ToMove
		m.ToMove = ""
	case IsGameDrawn(m):
		m.State = StateDrawn
		m.ToMove = ""
	default:
		m.ToMove = m.Opponent(m.ToMove)
		return nil, nil
	}

	return m.Outcome(), nil
}

// Outcome reports the result of a complete match, or nil while it is still open.
func (m *Match) Outcome() *Outcome {
	if !m.IsComplete() {
		return nil
	}
	return &Outcome{
		MatchID:        m.ID,
		ScopeID:        m.ScopeID,
		RedPlayerID:    m.RedPlayerID,
		YellowPlayerID: m.YellowPlayerID,
		Winner:         m.Winner,
		Draw:           m.State == StateDrawn,
		Wager:          m.Wager,
	}
}

// MarshalJSON adds the is_accepted, is_complete and status fields the bot reads
// alongside the explicit state.
func (m Match) MarshalJSON() ([]byte, error) {
	type plain Match
	return json.Marshal(struct {
		plain
		IsAccepted bool   `json:"is_accepted"`
		IsComplete bool   `json:"is_complete"`
		Status     string `json:"status"`
	}{
		plain:      plain(m),
		IsAccepted: m.IsAccepted(),
		IsComplete: m.IsComplete(),
		Status:     m.Status(),
	})
}

func (m *Match) Clone() *Match {
	out := *m
	out.Board = m.Board.Clone()
	return &out
}
