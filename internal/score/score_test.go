package score

import (
	"ctchen222/tictactoe-engine/internal/game"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RecordOutcome(t *testing.T) {
	tr := NewTracker()

	require.NoError(t, tr.RecordOutcome(game.Result{Outcome: game.Win, Winner: game.PlayerX}))
	require.NoError(t, tr.RecordOutcome(game.Result{Outcome: game.Win, Winner: game.PlayerO}))
	require.NoError(t, tr.RecordOutcome(game.Result{Outcome: game.Win, Winner: game.PlayerO}))
	require.NoError(t, tr.RecordOutcome(game.Result{Outcome: game.Draw}))

	assert.Equal(t, Score{HumanWins: 1, ComputerWins: 2, Draws: 1}, tr.Score())
	assert.Equal(t, 4, tr.Score().Total())
}

func TestTracker_RejectsInProgress(t *testing.T) {
	tr := NewTracker()

	err := tr.RecordOutcome(game.Result{Outcome: game.InProgress})
	assert.ErrorIs(t, err, ErrNotTerminal)

	err = tr.RecordOutcome(game.Result{Outcome: game.Win})
	assert.ErrorIs(t, err, ErrNotTerminal)

	assert.Equal(t, Score{}, tr.Score())
}

func TestTracker_ScoreIsACopy(t *testing.T) {
	tr := NewTracker()
	s := tr.Score()
	s.Draws = 99

	assert.Zero(t, tr.Score().Draws)
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.RecordOutcome(game.Result{Outcome: game.Draw}))

	tr.Reset()

	assert.Equal(t, Score{}, tr.Score())
}
