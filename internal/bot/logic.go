package bot

import (
	"ctchen222/tictactoe-engine/internal/game"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// mediumRandomChance is how often Medium falls back to a random move.
const mediumRandomChance = 0.4

// winScore is the base score of a won terminal board before depth is applied.
const winScore = 10

var ErrNoMoves = errors.New("no moves available")

// Rand is the random source the Easy and Medium policies draw from.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// CalculateNextMove determines the computer's next move based on the specified difficulty.
// The board must not be terminal.
func CalculateNextMove(board game.Board, difficulty Difficulty, rng Rand) (game.Position, error) {
	if game.Evaluate(board).IsTerminal() {
		return game.Position{}, ErrNoMoves
	}

	switch difficulty {
	case Easy:
		return easyMove(board, rng), nil
	case Medium:
		return mediumMove(board, rng), nil
	case Hard:
		return hardMove(board), nil
	default:
		return game.Position{}, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}
}

// easyMove makes a uniformly random move.
func easyMove(board game.Board, rng Rand) game.Position {
	availableMoves := board.EmptyCells()
	return availableMoves[rng.IntN(len(availableMoves))]
}

// mediumMove plays randomly 40% of the time and optimally otherwise.
func mediumMove(board game.Board, rng Rand) game.Position {
	if rng.Float64() < mediumRandomChance {
		return easyMove(board, rng)
	}
	return hardMove(board)
}

// hardMove implements the optimal strategy.
func hardMove(board game.Board) game.Position {
	bestBoard, _ := Minimax(board, 0, true, math.MinInt, math.MaxInt)
	if pos, ok := board.Diff(bestBoard); ok {
		return pos
	}
	// Unreachable for a non-terminal board.
	return board.EmptyCells()[0]
}

// Minimax searches board with alpha-beta pruning. The computer (O) maximizes
// and the human (X) minimizes. It returns the child board chosen for the side
// to move together with its score; for a terminal board it returns the board
// itself.
//
// Children are generated in row-major order and a child replaces the current
// best only on a strictly better score, so the first of equally scored moves wins.
func Minimax(board game.Board, depth int, maximizing bool, alpha, beta int) (game.Board, int) {
	switch result := game.Evaluate(board); result.Outcome {
	case game.Win:
		if result.Winner == game.Computer {
			return board, winScore - depth
		}
		return board, depth - winScore
	case game.Draw:
		return board, 0
	}

	mark, bestScore := game.Human, math.MaxInt
	if maximizing {
		mark, bestScore = game.Computer, math.MinInt
	}
	bestBoard := board

	for _, cell := range board.EmptyCells() {
		child := board
		child[cell.Row][cell.Col] = mark

		_, score := Minimax(child, depth+1, !maximizing, alpha, beta)

		if maximizing {
			if score > bestScore {
				bestScore, bestBoard = score, child
			}
			alpha = max(alpha, bestScore)
		} else {
			if score < bestScore {
				bestScore, bestBoard = score, child
			}
			beta = min(beta, bestScore)
		}
		if beta <= alpha {
			break
		}
	}

	return bestBoard, bestScore
}
