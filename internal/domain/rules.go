package domain

// scanner reports whether color has four in a row along one axis.
type scanner func(b *Board, color Color) bool

var scanners = []scanner{
	scanHorizontal,
	scanVertical,
	scanAscending,
	scanDescending,
}

// HasFourInARow checks every axis for a run of ToWin tokens of color.
// Only the color that just moved can have completed a new line.
func HasFourInARow(b *Board, color Color) bool {
	for _, scan := range scanners {
		if scan(b, color) {
			return true
		}
	}
	return false
}

// line checks ToWin cells starting at (col,row) stepping by (dc,dr).
func line(b *Board, color Color, col, row, dc, dr int) bool {
	for i := 0; i < ToWin; i++ {
		got, ok := b.At(col+i*dc, row+i*dr)
		if !ok || got != color {
			return false
		}
	}
	return true
}

func scanHorizontal(b *Board, color Color) bool {
	for r := 0; r < Rows; r++ {
		for c := 0; c <= Columns-ToWin; c++ {
			if line(b, color, c, r, 1, 0) {
				return true
			}
		}
	}
	return false
}

func scanVertical(b *Board, color Color) bool {
	for c := 0; c < Columns; c++ {
		// a shorter column cannot hold a vertical run
		if b.Height(c) < ToWin {
			continue
		}
		for r := 0; r <= Rows-ToWin; r++ {
			if line(b, color, c, r, 0, 1) {
				return true
			}
		}
	}
	return false
}

// column and row both increasing
func scanAscending(b *Board, color Color) bool {
	for c := 0; c <= Columns-ToWin; c++ {
		for r := 0; r <= Rows-ToWin; r++ {
			if line(b, color, c, r, 1, 1) {
				return true
			}
		}
	}
	return false
}

// column increasing, row decreasing
func scanDescending(b *Board, color Color) bool {
	for c := 0; c <= Columns-ToWin; c++ {
		for r := ToWin - 1; r < Rows; r++ {
			if line(b, color, c, r, 1, -1) {
				return true
			}
		}
	}
	return false
}

// IsGameWon checks the board for the color of the player who just moved.
// It must run after ApplyMove and before EndTurn advances the turn.
func IsGameWon(m *Match) bool {
	color, ok := m.ColorOf(m.ToMove)
	if !ok {
		return false
	}
	return HasFourInARow(&m.Board, color)
}

// IsGameDrawn is true once every column is full.
func IsGameDrawn(m *Match) bool {
	return m.Board.IsFull()
}
