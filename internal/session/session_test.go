package session

import (
	"context"
	"ctchen222/tictactoe-engine/internal/bot"
	"ctchen222/tictactoe-engine/internal/game"
	"ctchen222/tictactoe-engine/internal/score"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	x = game.PlayerX
	o = game.PlayerO
)

type manualTimer struct {
	f       func()
	delay   time.Duration
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// manualScheduler records scheduled calls and runs them only when told to.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{f: f, delay: d}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualScheduler) pending() []*manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs every live timer.
func (m *manualScheduler) fire() int {
	live := m.pending()
	for _, t := range live {
		m.mu.Lock()
		t.fired = true
		m.mu.Unlock()
		t.f()
	}
	return len(live)
}

func (m *manualScheduler) last() *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers[len(m.timers)-1]
}

// fixedRand always returns the same draw.
type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int   { return r.n % n }

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) SessionChanged(_ context.Context, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func newTestSession(t *testing.T, d bot.Difficulty, opts ...Option) (*Session, *manualScheduler) {
	t.Helper()
	sch := &manualScheduler{}
	opts = append([]Option{WithID("test"), WithScheduler(sch), WithRand(fixedRand{})}, opts...)
	s, err := New(d, opts...)
	require.NoError(t, err)
	return s, sch
}

func TestNew(t *testing.T) {
	s, _ := newTestSession(t, bot.Easy)
	snap := s.Snapshot()

	assert.Equal(t, "test", snap.ID)
	assert.Equal(t, NotStarted, snap.State)
	assert.Equal(t, game.EmptyBoard(), snap.Board)
	assert.Equal(t, game.None, snap.WhoseTurn)
	assert.False(t, snap.Started)
	assert.Equal(t, game.InProgress, snap.Result.Outcome)
	assert.Equal(t, bot.Easy, snap.Difficulty)

	_, err := New(bot.Difficulty("nightmare"))
	assert.ErrorIs(t, err, bot.ErrUnknownDifficulty)
}

func TestChooseStartingPlayer_Human(t *testing.T) {
	s, sch := newTestSession(t, bot.Hard)

	snap, err := s.ChooseStartingPlayer(context.Background(), game.PlayerX)
	require.NoError(t, err)

	assert.Equal(t, AwaitingHuman, snap.State)
	assert.Equal(t, game.PlayerX, snap.WhoseTurn)
	assert.True(t, snap.Started)
	assert.Empty(t, sch.pending())
}

func TestChooseStartingPlayer_ComputerHardOpensTopLeft(t *testing.T) {
	s, sch := newTestSession(t, bot.Hard)

	snap, err := s.ChooseStartingPlayer(context.Background(), game.PlayerO)
	require.NoError(t, err)

	// The move is scheduled, not played inline.
	assert.Equal(t, AwaitingComputer, snap.State)
	assert.Equal(t, game.EmptyBoard(), snap.Board)
	require.Len(t, sch.pending(), 1)
	assert.Equal(t, DefaultThinkDelay, sch.last().delay)

	require.Equal(t, 1, sch.fire())

	snap = s.Snapshot()
	assert.Equal(t, o, snap.Board[0][0])
	assert.Equal(t, 1, snap.Board.Count(o))
	assert.Equal(t, AwaitingHuman, snap.State)
	assert.Equal(t, game.PlayerX, snap.WhoseTurn)
	require.NotNil(t, snap.LastComputerMove)
	assert.Equal(t, game.Position{Row: 0, Col: 0}, *snap.LastComputerMove)
}

func TestChooseStartingPlayer_EachCallStartsNewGame(t *testing.T) {
	s, _ := newTestSession(t, bot.Easy)
	ctx := context.Background()

	first, err := s.ChooseStartingPlayer(ctx, game.PlayerX)
	require.NoError(t, err)
	assert.Equal(t, game.PlayerX, first.Starter)

	second, err := s.ChooseStartingPlayer(ctx, game.PlayerO)
	require.NoError(t, err)
	assert.Equal(t, game.PlayerO, second.Starter)
	assert.Greater(t, second.Game, first.Game)

	reset := s.Reset(ctx)
	assert.Equal(t, game.None, reset.Starter)
	assert.Greater(t, reset.Game, second.Game)
}

func TestChooseStartingPlayer_Invalid(t *testing.T) {
	s, _ := newTestSession(t, bot.Easy)

	_, err := s.ChooseStartingPlayer(context.Background(), game.None)
	assert.ErrorIs(t, err, ErrInvalidPlayer)
	assert.Equal(t, NotStarted, s.Snapshot().State)
}

func TestMakeHumanMove_WinsImmediately(t *testing.T) {
	s, sch := newTestSession(t, bot.Hard)
	s.board = game.Board{{x, x, ""}, {"", o, ""}, {"", "", ""}}
	s.turn = game.PlayerX
	s.started = true
	s.state = AwaitingHuman

	snap, err := s.MakeHumanMove(context.Background(), 0, 2)
	require.NoError(t, err)

	assert.Equal(t, game.Result{Outcome: game.Win, Winner: game.PlayerX}, snap.Result)
	assert.Equal(t, Finished, snap.State)
	assert.False(t, snap.Started)
	assert.Equal(t, score.Score{HumanWins: 1}, snap.Score)
	assert.Empty(t, sch.pending(), "no computer move after a finished game")
}

func TestMakeHumanMove_SchedulesComputerOnPostMoveBoard(t *testing.T) {
	s, sch := newTestSession(t, bot.Hard)
	_, err := s.ChooseStartingPlayer(context.Background(), game.PlayerX)
	require.NoError(t, err)

	snap, err := s.MakeHumanMove(context.Background(), 1, 1)
	require.NoError(t, err)

	// The human move is visible before anything else happens.
	assert.Equal(t, x, snap.Board[1][1])
	assert.Equal(t, AwaitingComputer, snap.State)
	assert.Equal(t, game.PlayerO, snap.WhoseTurn)
	require.Len(t, sch.pending(), 1)

	sch.fire()

	snap = s.Snapshot()
	assert.Equal(t, x, snap.Board[1][1])
	assert.Equal(t, 1, snap.Board.Count(o))
	assert.Equal(t, AwaitingHuman, snap.State)
	assert.Equal(t, game.PlayerX, snap.WhoseTurn)
}

func TestMakeHumanMove_IllegalStates(t *testing.T) {
	ctx := context.Background()

	t.Run("before the game starts", func(t *testing.T) {
		s, _ := newTestSession(t, bot.Easy)
		_, err := s.MakeHumanMove(ctx, 0, 0)
		assert.ErrorIs(t, err, ErrIllegalMove)
	})

	t.Run("during the computer turn", func(t *testing.T) {
		s, _ := newTestSession(t, bot.Easy)
		_, err := s.ChooseStartingPlayer(ctx, game.PlayerO)
		require.NoError(t, err)

		_, err = s.MakeHumanMove(ctx, 1, 1)
		assert.ErrorIs(t, err, ErrIllegalMove)
		assert.Equal(t, game.EmptyBoard(), s.Snapshot().Board)
	})

	t.Run("after the game finished", func(t *testing.T) {
		s, _ := newTestSession(t, bot.Easy)
		s.board = game.Board{{x, x, ""}, {o, o, ""}, {"", "", ""}}
		s.turn, s.started, s.state = game.PlayerX, true, AwaitingHuman
		_, err := s.MakeHumanMove(ctx, 0, 2)
		require.NoError(t, err)

		_, err = s.MakeHumanMove(ctx, 1, 2)
		assert.ErrorIs(t, err, ErrIllegalMove)
	})

	t.Run("occupied cell", func(t *testing.T) {
		s, sch := newTestSession(t, bot.Easy)
		_, err := s.ChooseStartingPlayer(ctx, game.PlayerX)
		require.NoError(t, err)
		_, err = s.MakeHumanMove(ctx, 0, 0)
		require.NoError(t, err)
		sch.fire()

		before := s.Snapshot()
		occupied := before.Board.Count(x) + before.Board.Count(o)
		require.Equal(t, 2, occupied)

		_, err = s.MakeHumanMove(ctx, 0, 0)
		assert.ErrorIs(t, err, ErrIllegalMove)
		assert.ErrorIs(t, err, game.ErrCellOccupied)
		assert.Equal(t, before.Board, s.Snapshot().Board)
		assert.Equal(t, AwaitingHuman, s.Snapshot().State)
	})

	t.Run("out of range", func(t *testing.T) {
		s, _ := newTestSession(t, bot.Easy)
		_, err := s.ChooseStartingPlayer(ctx, game.PlayerX)
		require.NoError(t, err)

		_, err = s.MakeHumanMove(ctx, 3, 0)
		assert.ErrorIs(t, err, ErrIllegalMove)
		assert.ErrorIs(t, err, game.ErrOutOfRange)
	})
}

func TestReset_CancelsPendingComputerMove(t *testing.T) {
	s, sch := newTestSession(t, bot.Hard)
	ctx := context.Background()

	_, err := s.ChooseStartingPlayer(ctx, game.PlayerX)
	require.NoError(t, err)
	_, err = s.MakeHumanMove(ctx, 0, 0)
	require.NoError(t, err)
	stale := sch.last()

	snap := s.Reset(ctx)

	assert.True(t, stale.stopped)
	assert.Empty(t, sch.pending())
	assert.Equal(t, NotStarted, snap.State)
	assert.Equal(t, game.EmptyBoard(), snap.Board)
	assert.Equal(t, game.None, snap.WhoseTurn)
	assert.False(t, snap.Started)

	// A callback that slipped past Stop must not land on the new board.
	stale.f()
	assert.Equal(t, game.EmptyBoard(), s.Snapshot().Board)
	assert.Equal(t, NotStarted, s.Snapshot().State)
}

func TestChooseStartingPlayer_DiscardsOldPendingMove(t *testing.T) {
	s, sch := newTestSession(t, bot.Hard)
	ctx := context.Background()

	_, err := s.ChooseStartingPlayer(ctx, game.PlayerO)
	require.NoError(t, err)
	stale := sch.last()

	_, err = s.ChooseStartingPlayer(ctx, game.PlayerO)
	require.NoError(t, err)
	require.Len(t, sch.pending(), 1)

	stale.f()
	assert.Equal(t, game.EmptyBoard(), s.Snapshot().Board)

	sch.fire()
	assert.Equal(t, 1, s.Snapshot().Board.Count(o))
}

func TestReset_KeepsScore(t *testing.T) {
	s, _ := newTestSession(t, bot.Easy)
	ctx := context.Background()
	s.board = game.Board{{x, x, ""}, {o, o, ""}, {"", "", ""}}
	s.turn, s.started, s.state = game.PlayerX, true, AwaitingHuman
	_, err := s.MakeHumanMove(ctx, 0, 2)
	require.NoError(t, err)

	snap := s.Reset(ctx)

	assert.Equal(t, score.Score{HumanWins: 1}, snap.Score)
	assert.Equal(t, game.EmptyBoard(), snap.Board)
	assert.Equal(t, NotStarted, snap.State)

	snap = s.ClearScore(ctx)
	assert.Equal(t, score.Score{}, snap.Score)
}

func TestSetDifficulty(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unknown values", func(t *testing.T) {
		s, _ := newTestSession(t, bot.Easy)
		_, err := s.SetDifficulty(ctx, "impossible")
		assert.ErrorIs(t, err, bot.ErrUnknownDifficulty)
		assert.Equal(t, bot.Easy, s.Snapshot().Difficulty)
	})

	t.Run("scheduled move keeps its difficulty", func(t *testing.T) {
		// Easy with index 8 picks (2,2) on an empty board; hard would pick (0,0).
		s, sch := newTestSession(t, bot.Easy, WithRand(fixedRand{n: 8}))
		_, err := s.ChooseStartingPlayer(ctx, game.PlayerO)
		require.NoError(t, err)

		snap, err := s.SetDifficulty(ctx, bot.Hard)
		require.NoError(t, err)
		assert.Equal(t, bot.Hard, snap.Difficulty)

		sch.fire()
		assert.Equal(t, o, s.Snapshot().Board[2][2])
	})

	t.Run("next move uses the new difficulty", func(t *testing.T) {
		s, sch := newTestSession(t, bot.Easy, WithRand(fixedRand{n: 7}))
		_, err := s.ChooseStartingPlayer(ctx, game.PlayerX)
		require.NoError(t, err)
		_, err = s.SetDifficulty(ctx, bot.Hard)
		require.NoError(t, err)

		_, err = s.MakeHumanMove(ctx, 1, 1)
		require.NoError(t, err)
		sch.fire()

		// Hard answers a centre opening in the first corner.
		assert.Equal(t, o, s.Snapshot().Board[0][0])
	})
}

func TestMediumExploitMatchesHard(t *testing.T) {
	board := game.Board{{x, "", ""}, {"", "", ""}, {"", "", ""}}

	play := func(d bot.Difficulty, rng bot.Rand) game.Board {
		s, sch := newTestSession(t, d, WithRand(rng))
		s.board, s.turn, s.started, s.state = board, game.PlayerO, true, AwaitingComputer
		s.scheduleComputerMoveLocked()
		sch.fire()
		return s.Snapshot().Board
	}

	assert.Equal(t, play(bot.Hard, fixedRand{}), play(bot.Medium, fixedRand{f: 0.9, n: 5}))
}

func TestFullGameAgainstHardNeverLoses(t *testing.T) {
	ctx := context.Background()
	s, sch := newTestSession(t, bot.Hard)

	for _, first := range []game.PlayerMark{game.PlayerX, game.PlayerO} {
		_, err := s.ChooseStartingPlayer(ctx, first)
		require.NoError(t, err)

		for {
			snap := s.Snapshot()
			if snap.State == Finished {
				assert.NotEqual(t, game.Result{Outcome: game.Win, Winner: game.Human}, snap.Result)
				break
			}
			if snap.State == AwaitingComputer {
				require.Equal(t, 1, sch.fire())
				continue
			}
			cell := snap.Board.EmptyCells()[0]
			_, err := s.MakeHumanMove(ctx, cell.Row, cell.Col)
			require.NoError(t, err)
		}
	}

	assert.Equal(t, 2, s.Snapshot().Score.Total())
	assert.Zero(t, s.Snapshot().Score.HumanWins)
}

func TestObserverSeesEveryChange(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s, sch := newTestSession(t, bot.Hard, WithObserver(rec))

	_, err := s.ChooseStartingPlayer(ctx, game.PlayerX)
	require.NoError(t, err)
	_, err = s.MakeHumanMove(ctx, 1, 1)
	require.NoError(t, err)
	sch.fire()
	s.Reset(ctx)

	snaps := rec.all()
	require.Len(t, snaps, 4)
	assert.Equal(t, AwaitingHuman, snaps[0].State)
	assert.Equal(t, AwaitingComputer, snaps[1].State)
	assert.Equal(t, AwaitingHuman, snaps[2].State)
	assert.NotNil(t, snaps[2].LastComputerMove)
	assert.Equal(t, NotStarted, snaps[3].State)

	for i := 1; i < len(snaps); i++ {
		assert.Greater(t, snaps[i].Version, snaps[i-1].Version)
	}
}

func TestClose_StopsPendingMove(t *testing.T) {
	ctx := context.Background()
	s, sch := newTestSession(t, bot.Hard)
	_, err := s.ChooseStartingPlayer(ctx, game.PlayerO)
	require.NoError(t, err)
	pending := sch.last()

	s.Close()

	assert.True(t, pending.stopped)
	pending.f()
	assert.Equal(t, game.EmptyBoard(), s.Snapshot().Board)
}

func TestAssertConsistentPanicsOnCorruptBoard(t *testing.T) {
	assert.Panics(t, func() {
		assertConsistent(game.Board{{x, x, x}, {o, o, o}, {"", "", ""}})
	})
	assert.Panics(t, func() {
		assertConsistent(game.Board{{x, x, x}, {x, "", ""}, {"", "", ""}})
	})
	assert.NotPanics(t, func() {
		assertConsistent(game.Board{{x, o, ""}, {"", x, ""}, {"", "", ""}})
	})
}

func TestTimeSchedulerRunsComputerMove(t *testing.T) {
	done := make(chan Snapshot, 4)
	s, err := New(bot.Hard,
		WithThinkDelay(time.Millisecond),
		WithObserver(ObserverFunc(func(_ context.Context, snap Snapshot) { done <- snap })),
	)
	require.NoError(t, err)

	_, err = s.ChooseStartingPlayer(context.Background(), game.PlayerO)
	require.NoError(t, err)

	// The timer goroutine may notify before the caller does; keep the newest.
	var latest Snapshot
	for i := 0; i < 2; i++ {
		select {
		case snap := <-done:
			if snap.Version > latest.Version {
				latest = snap
			}
		case <-time.After(2 * time.Second):
			t.Fatal("computer did not move within the expected time")
		}
	}
	assert.Equal(t, o, latest.Board[0][0])
	assert.Equal(t, AwaitingHuman, latest.State)
}
