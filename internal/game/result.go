package game

// Outcome classifies a board.
type Outcome string

const (
	InProgress Outcome = "in_progress"
	Win        Outcome = "win"
	Draw       Outcome = "draw"
)

// Result is what Evaluate derives from a board. Winner is set only for Win.
type Result struct {
	Outcome Outcome    `json:"outcome"`
	Winner  PlayerMark `json:"winner,omitempty"`
}

// IsTerminal reports whether the game is over.
func (r Result) IsTerminal() bool {
	return r.Outcome == Win || r.Outcome == Draw
}

func (r Result) String() string {
	if r.Outcome == Win {
		return string(r.Winner) + " wins"
	}
	return string(r.Outcome)
}

// Lines holds the eight winning triples: rows, columns, then the two diagonals.
var Lines = [8][3]Position{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Evaluate returns the first completed line in Lines order, a draw for a
// full board, and InProgress otherwise.
func Evaluate(b Board) Result {
	for _, line := range Lines {
		a := b[line[0].Row][line[0].Col]
		if a != None && a == b[line[1].Row][line[1].Col] && a == b[line[2].Row][line[2].Col] {
			return Result{Outcome: Win, Winner: a}
		}
	}

	if b.IsFull() {
		return Result{Outcome: Draw}
	}

	return Result{Outcome: InProgress}
}

// Winners lists every mark holding at least one completed line. Legal play
// never yields more than one.
func Winners(b Board) []PlayerMark {
	var marks []PlayerMark
	seen := map[PlayerMark]bool{}
	for _, line := range Lines {
		a := b[line[0].Row][line[0].Col]
		if a != None && a == b[line[1].Row][line[1].Col] && a == b[line[2].Row][line[2].Col] && !seen[a] {
			seen[a] = true
			marks = append(marks, a)
		}
	}
	return marks
}
