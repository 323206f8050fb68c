package domain

import "errors"

// PlayerID is an opaque Discord user id. Only equality is meaningful.
type PlayerID string

// ScopeID is the Discord server (guild) a match belongs to.
type ScopeID string

// Color of a token on the board.
type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
)

func (c Color) Valid() bool {
	return c == Red || c == Yellow
}

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == Red {
		return Yellow
	}
	return Red
}

const (
	Columns = 7
	Rows    = 6
	ToWin   = 4
)

// StatusDraw is the status label of a drawn match.
const StatusDraw = "draw"

// Player is a resolved member of a server as returned by the player directory.
type Player struct {
	ID       PlayerID `json:"user_id"`
	ScopeID  ScopeID  `json:"server_id"`
	Username string   `json:"username"`
	Balance  int64    `json:"balance"`
	Wins     int      `json:"connect_four_wins"`
	Losses   int      `json:"connect_four_losses"`
	Draws    int      `json:"connect_four_draws"`
}

// Outcome is reported once a match reaches a terminal state so the wager can be settled.
type Outcome struct {
	MatchID        string   `json:"match_id"`
	ScopeID        ScopeID  `json:"server_id"`
	RedPlayerID    PlayerID `json:"red_user_id"`
	YellowPlayerID PlayerID `json:"yellow_user_id"`
	Winner         PlayerID `json:"winner,omitempty"`
	Draw           bool     `json:"draw"`
	Wager          int64    `json:"wager"`
}

// Loser returns the losing player, or "" for a draw.
func (o Outcome) Loser() PlayerID {
	switch {
	case o.Draw:
		return ""
	case o.Winner == o.RedPlayerID:
		return o.YellowPlayerID
	default:
		return o.RedPlayerID
	}
}

// basic error that can occur
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrNoActiveMatch      Error = "you do not have an active game of connect four"
	ErrNotYourTurn        Error = "it is not your turn"
	ErrInvalidColumn      Error = "invalid move: column must be an integer between 0 and 6 inclusive"
	ErrColumnFull         Error = "invalid move: board column is full"
	ErrMatchNotInProgress Error = "match is not in progress"
	ErrChallengeAccepted  Error = "challenge has already been accepted"
	ErrAlreadyInMatch     Error = "player already has an active game of connect four"
	ErrOpponentBusy       Error = "opponent already has an active game or challenge"
	ErrNoPendingChallenge Error = "you do not have a pending challenge to accept"
	ErrSelfChallenge      Error = "you cannot challenge yourself"
	ErrInvalidWager       Error = "wager must be a non-negative integer"
	ErrInsufficientFunds  Error = "insufficient balance to cover the wager"
	ErrPlayerNotFound     Error = "player not found"
	ErrStaleMatch         Error = "match was modified concurrently"
	ErrInvalidBoard       Error = "invalid board"
)

// IsRejection reports whether err is a caller-input rejection raised by the engine,
// as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	var e Error
	return errors.As(err, &e)
}
