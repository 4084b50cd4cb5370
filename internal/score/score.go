package score

import (
	"ctchen222/tictactoe-engine/internal/game"
	"errors"
	"fmt"
)

var ErrNotTerminal = errors.New("result is not terminal")

// Score is the running tally shown to the player.
type Score struct {
	HumanWins    int `json:"human_wins"`
	ComputerWins int `json:"computer_wins"`
	Draws        int `json:"draws"`
}

// Total is the number of finished games.
func (s Score) Total() int {
	return s.HumanWins + s.ComputerWins + s.Draws
}

// Tracker counts finished games. It is owned by a single session and is not
// safe for concurrent use on its own.
type Tracker struct {
	score Score
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordOutcome bumps exactly one counter for a terminal result.
func (t *Tracker) RecordOutcome(result game.Result) error {
	switch {
	case result.Outcome == game.Draw:
		t.score.Draws++
	case result.Outcome == game.Win && result.Winner == game.Human:
		t.score.HumanWins++
	case result.Outcome == game.Win && result.Winner == game.Computer:
		t.score.ComputerWins++
	default:
		return fmt.Errorf("%w: %s", ErrNotTerminal, result)
	}
	return nil
}

// Score returns a copy of the current tally.
func (t *Tracker) Score() Score {
	return t.score
}

// Reset zeroes every counter.
func (t *Tracker) Reset() {
	t.score = Score{}
}
