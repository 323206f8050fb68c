package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Board holds 7 columns that grow from the bottom (index 0) up to Rows tokens.
// Empty cells are simply absent, so a token's row is the column height at drop time.
type Board [Columns][]Color

func NewBoard() Board {
	var b Board
	for c := range b {
		b[c] = make([]Color, 0, Rows)
	}
	return b
}

func (b *Board) Height(column int) int {
	return len(b[column])
}

func (b *Board) IsColumnFull(column int) bool {
	return len(b[column]) >= Rows
}

func (b *Board) IsFull() bool {
	for c := 0; c < Columns; c++ {
		if !b.IsColumnFull(c) {
			return false
		}
	}
	return true
}

// At returns the token at (column, row). ok is false when the cell is off the board or empty.
func (b *Board) At(column, row int) (Color, bool) {
	if column < 0 || column >= Columns || row < 0 || row >= len(b[column]) {
		return "", false
	}
	return b[column][row], true
}

// Drop appends color to column and returns the row it landed on.
func (b *Board) Drop(column int, color Color) (int, error) {
	if column < 0 || column >= Columns {
		return -1, ErrInvalidColumn
	}
	if b.IsColumnFull(column) {
		return -1, ErrColumnFull
	}
	row := len(b[column])
	b[column] = append(b[column], color)
	return row, nil
}

// this creates a deep copy of the board
func (b Board) Clone() Board {
	var out Board
	for c := range b {
		out[c] = make([]Color, len(b[c]), Rows)
		copy(out[c], b[c])
	}
	return out
}

func (b *Board) ValidMoves() []int {
	moves := make([]int, 0, Columns)
	for c := 0; c < Columns; c++ {
		if !b.IsColumnFull(c) {
			moves = append(moves, c)
		}
	}
	return moves
}

func (b *Board) MoveCount() int {
	n := 0
	for c := range b {
		n += len(b[c])
	}
	return n
}

func (b Board) MarshalJSON() ([]byte, error) {
	cols := make([][]Color, Columns)
	for c := range b {
		cols[c] = b[c]
		if cols[c] == nil {
			cols[c] = []Color{}
		}
	}
	return json.Marshal(cols)
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var cols [][]Color
	if err := json.Unmarshal(data, &cols); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBoard, err)
	}
	if cols == nil {
		*b = NewBoard()
		return nil
	}
	if len(cols) != Columns {
		return fmt.Errorf("%w: expected %d columns, got %d", ErrInvalidBoard, Columns, len(cols))
	}
	next := NewBoard()
	for c, col := range cols {
		if len(col) > Rows {
			return fmt.Errorf("%w: column %d holds %d tokens", ErrInvalidBoard, c, len(col))
		}
		for r, color := range col {
			if !color.Valid() {
				return fmt.Errorf("%w: unknown color %q at (%d,%d)", ErrInvalidBoard, color, c, r)
			}
		}
		next[c] = append(next[c], col...)
	}
	*b = next
	return nil
}

// Value stores the board as a JSON document. It is sent as text so the simple
// query protocol casts it to jsonb instead of bytea.
func (b Board) Value() (driver.Value, error) {
	data, err := b.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (b *Board) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b = NewBoard()
		return nil
	case []byte:
		return b.UnmarshalJSON(v)
	case string:
		return b.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidBoard, src)
	}
}
