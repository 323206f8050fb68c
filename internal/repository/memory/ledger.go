package memory

import (
	"context"
	"sort"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
)

// SettlementLedger reports complete matches in a MatchStore that the
// PlayerDirectory has not settled.
type SettlementLedger struct {
	Matches *MatchStore
	Players *PlayerDirectory
}

func NewSettlementLedger(matches *MatchStore, players *PlayerDirectory) *SettlementLedger {
	return &SettlementLedger{Matches: matches, Players: players}
}

// UnsettledOutcomes returns up to limit outcomes, oldest completion first.
func (l *SettlementLedger) UnsettledOutcomes(ctx context.Context, limit int) ([]domain.Outcome, error) {
	complete := l.Matches.completeMatches()
	sort.Slice(complete, func(i, j int) bool {
		return complete[i].UpdatedAt.Before(complete[j].UpdatedAt)
	})

	var out []domain.Outcome
	for _, m := range complete {
		if limit > 0 && len(out) >= limit {
			break
		}
		if l.Players.Settled(m.ID) {
			continue
		}
		out = append(out, *m.Outcome())
	}
	return out, nil
}
