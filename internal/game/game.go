package game

import (
	"errors"
	"fmt"
)

// PlayerMark represents the mark of a player (X, O) or an empty cell.
type PlayerMark string

const (
	// Player marks
	None    PlayerMark = ""
	PlayerX PlayerMark = "X"
	PlayerO PlayerMark = "O"

	// Board boundaries
	BorderMin = 0
	BorderMax = 2
	Size      = BorderMax + 1
)

var (
	ErrOutOfRange   = errors.New("position out of range")
	ErrCellOccupied = errors.New("cell already occupied")
	ErrInvalidMark  = errors.New("invalid player mark")
)

// Opponent returns the other player's mark. None has no opponent.
func (m PlayerMark) Opponent() PlayerMark {
	switch m {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return None
	}
}

// Valid reports whether m is a mark a player can place.
func (m PlayerMark) Valid() bool {
	return m == PlayerX || m == PlayerO
}

// Position addresses a single cell, row-major.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// InRange reports whether both coordinates fall inside the board.
func (p Position) InRange() bool {
	return p.Row >= BorderMin && p.Row <= BorderMax && p.Col >= BorderMin && p.Col <= BorderMax
}

// Board is a 3x3 grid of marks. It is a value type: every Place returns a
// fresh copy and the receiver is never modified.
type Board [Size][Size]PlayerMark

// EmptyBoard returns the all-None board.
func EmptyBoard() Board {
	return Board{}
}

// Place returns a new board with mark set at (row, col).
func (b Board) Place(row, col int, mark PlayerMark) (Board, error) {
	if !mark.Valid() {
		return b, ErrInvalidMark
	}
	pos := Position{Row: row, Col: col}
	if !pos.InRange() {
		return b, fmt.Errorf("%w: %s", ErrOutOfRange, pos)
	}
	if b[row][col] != None {
		return b, fmt.Errorf("%w: %s", ErrCellOccupied, pos)
	}

	b[row][col] = mark
	return b, nil
}

// EmptyCells lists the free cells in row-major order. Move tie-breaks in the
// bot package depend on this exact order.
func (b Board) EmptyCells() []Position {
	cells := make([]Position, 0, Size*Size)
	for r := range [Size]int{} {
		for c := range [Size]int{} {
			if b[r][c] == None {
				cells = append(cells, Position{Row: r, Col: c})
			}
		}
	}
	return cells
}

// IsFull checks whether no empty cell remains.
func (b Board) IsFull() bool {
	for r := range [Size]int{} {
		for c := range [Size]int{} {
			if b[r][c] == None {
				return false
			}
		}
	}
	return true
}

// Count returns how many cells hold mark.
func (b Board) Count(mark PlayerMark) int {
	n := 0
	for r := range [Size]int{} {
		for c := range [Size]int{} {
			if b[r][c] == mark {
				n++
			}
		}
	}
	return n
}

// Diff returns the first cell, in row-major order, that differs between b and other.
func (b Board) Diff(other Board) (Position, bool) {
	for r := range [Size]int{} {
		for c := range [Size]int{} {
			if b[r][c] != other[r][c] {
				return Position{Row: r, Col: c}, true
			}
		}
	}
	return Position{}, false
}

// Rows converts the game board to a dynamic slice of slices for the wire.
func (b Board) Rows() [][]PlayerMark {
	board := make([][]PlayerMark, Size)
	for i := range [Size]int{} {
		board[i] = make([]PlayerMark, Size)
		copy(board[i], b[i][:])
	}
	return board
}

// BoardFromRows is the inverse of Rows. Short or missing rows stay empty.
func BoardFromRows(rows [][]PlayerMark) Board {
	var b Board
	for r := 0; r < len(rows) && r < Size; r++ {
		for c := 0; c < len(rows[r]) && c < Size; c++ {
			b[r][c] = rows[r][c]
		}
	}
	return b
}

// The engine seats the human as X and the computer as O.
const (
	Human    = PlayerX
	Computer = PlayerO
)
