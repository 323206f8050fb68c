package game

import (
	"crypto/rand"
)

// Coin is a fair boolean source used to pick who moves first.
type Coin interface {
	Flip() bool
}

// CryptoCoin flips using crypto/rand so the first mover cannot be predicted from match data.
type CryptoCoin struct{}

func (CryptoCoin) Flip() bool {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic("game: crypto/rand unavailable: " + err.Error())
	}
	return b[0]&1 == 1
}

// CoinFunc adapts a function to Coin.
type CoinFunc func() bool

func (f CoinFunc) Flip() bool { return f() }
