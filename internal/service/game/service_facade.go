package game

import (
	"context"
	"time"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
	"github.com/BillyP-Bot/billybot-backend/pkg/uid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MatchStore persists connect four matches.
// InsertMatch and UpdateMatch are conditional writes: InsertMatch fails with
// domain.ErrAlreadyInMatch when either player already has an incomplete match in the
// scope, and UpdateMatch fails with domain.ErrStaleMatch when the stored version no
// longer equals m.Version.
type MatchStore interface {
	FindActiveMatch(ctx context.Context, scope domain.ScopeID, player domain.PlayerID, includePending bool) (*domain.Match, error)
	FindPendingChallenge(ctx context.Context, scope domain.ScopeID, player domain.PlayerID) (*domain.Match, error)
	FindMatchByID(ctx context.Context, id string) (*domain.Match, error)
	InsertMatch(ctx context.Context, m *domain.Match) (*domain.Match, error)
	UpdateMatch(ctx context.Context, m *domain.Match) (*domain.Match, error)
}

// PlayerDirectory resolves server members. Unknown players yield domain.ErrPlayerNotFound.
type PlayerDirectory interface {
	GetPlayer(ctx context.Context, scope domain.ScopeID, id domain.PlayerID) (*domain.Player, error)
}

// Settler moves the wager once a match is over.
type Settler interface {
	Settle(ctx context.Context, outcome domain.Outcome) error
}

// SettlementLedger lists complete matches whose outcome has not been settled yet.
type SettlementLedger interface {
	UnsettledOutcomes(ctx context.Context, limit int) ([]domain.Outcome, error)
}

// Service is the entry point for game logic (facade)
type Service struct {
	matches MatchStore
	players PlayerDirectory
	coin    Coin
	settler Settler // optional
	ledger  SettlementLedger
	locker  Locker
	log     zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires the engine. A nil coin defaults to CryptoCoin and a nil locker
// to a process-local MemoryLocker; settler may be nil when wagers are settled elsewhere.
func NewService(matches MatchStore, players PlayerDirectory, coin Coin, settler Settler, locker Locker) *Service {
	if coin == nil {
		coin = CryptoCoin{}
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &Service{
		matches: matches,
		players: players,
		coin:    coin,
		settler: settler,
		locker:  locker,
		log:     log.With().Str("component", "game").Logger(),
		now:     time.Now,
		newID:   uid.GenerateMatchID,
	}
}

// WithLedger enables ReconcileSettlements.
func (s *Service) WithLedger(ledger SettlementLedger) *Service {
	s.ledger = ledger
	return s
}
