package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
)

// PlayerDirectory is an in-memory player table that also settles wagers.
type PlayerDirectory struct {
	mu      sync.RWMutex
	players map[participantKey]domain.Player
	settled map[string]bool // matchID → settled

	enroll          bool
	startingBalance int64
}

func NewPlayerDirectory(players ...domain.Player) *PlayerDirectory {
	d := &PlayerDirectory{
		players: make(map[participantKey]domain.Player),
		settled: make(map[string]bool),
	}
	for _, p := range players {
		d.Put(p)
	}
	return d
}

// Put inserts or replaces a player.
func (d *PlayerDirectory) Put(p domain.Player) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.players[participantKey{p.ScopeID, p.ID}] = p
}

// AutoEnroll makes GetPlayer create unknown players with balance instead of
// failing. Used when the server runs without a database.
func (d *PlayerDirectory) AutoEnroll(balance int64) *PlayerDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enroll = true
	d.startingBalance = balance
	return d
}

func (d *PlayerDirectory) GetPlayer(ctx context.Context, scope domain.ScopeID, id domain.PlayerID) (*domain.Player, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := participantKey{scope, id}
	p, ok := d.players[key]
	if !ok {
		if !d.enroll {
			return nil, domain.ErrPlayerNotFound
		}
		p = domain.Player{ID: id, ScopeID: scope, Username: string(id), Balance: d.startingBalance}
		d.players[key] = p
	}
	return &p, nil
}

// Settled reports whether the match's outcome has been settled.
func (d *PlayerDirectory) Settled(matchID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settled[matchID]
}

// Settle moves the wager from loser to winner and records the result, once per match.
// Draws move nothing.
func (d *PlayerDirectory) Settle(ctx context.Context, outcome domain.Outcome) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settled[outcome.MatchID] {
		return nil
	}
	redKey := participantKey{outcome.ScopeID, outcome.RedPlayerID}
	yellowKey := participantKey{outcome.ScopeID, outcome.YellowPlayerID}
	red, ok := d.players[redKey]
	if !ok {
		return fmt.Errorf("settle %s: red %s: %w", outcome.MatchID, outcome.RedPlayerID, domain.ErrPlayerNotFound)
	}
	yellow, ok := d.players[yellowKey]
	if !ok {
		return fmt.Errorf("settle %s: yellow %s: %w", outcome.MatchID, outcome.YellowPlayerID, domain.ErrPlayerNotFound)
	}

	switch {
	case outcome.Draw:
		red.Draws++
		yellow.Draws++
	case outcome.Winner == red.ID:
		red.Wins++
		red.Balance += outcome.Wager
		yellow.Losses++
		yellow.Balance -= outcome.Wager
	default:
		yellow.Wins++
		yellow.Balance += outcome.Wager
		red.Losses++
		red.Balance -= outcome.Wager
	}

	d.players[redKey] = red
	d.players[yellowKey] = yellow
	d.settled[outcome.MatchID] = true
	return nil
}
