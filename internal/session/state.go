package session

import (
	"ctchen222/tictactoe-engine/internal/bot"
	"ctchen222/tictactoe-engine/internal/game"
	"ctchen222/tictactoe-engine/internal/score"
)

// State is the position of a session in its lifecycle.
type State string

const (
	NotStarted       State = "not_started"
	AwaitingHuman    State = "awaiting_human"
	AwaitingComputer State = "awaiting_computer"
	Finished         State = "finished"
)

// Snapshot is a read-only copy of a session for rendering. Version grows by
// one with every change so consumers can discard out-of-order copies. Game
// grows every time the board is cleared, so two snapshots with different
// Game values never belong to the same game.
type Snapshot struct {
	ID               string          `json:"id"`
	Board            game.Board      `json:"board"`
	WhoseTurn        game.PlayerMark `json:"whose_turn"`
	Result           game.Result     `json:"result"`
	Score            score.Score     `json:"score"`
	Started          bool            `json:"started"`
	State            State           `json:"state"`
	Difficulty       bot.Difficulty  `json:"difficulty"`
	LastComputerMove *game.Position  `json:"last_computer_move,omitempty"`
	Starter          game.PlayerMark `json:"starter,omitempty"`
	Game             uint64          `json:"game"`
	Version          uint64          `json:"version"`
}
