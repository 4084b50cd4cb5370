package session

import (
	"context"
	"ctchen222/tictactoe-engine/internal/bot"
	"ctchen222/tictactoe-engine/internal/game"
	"ctchen222/tictactoe-engine/internal/score"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultThinkDelay is how long the computer waits before answering.
const DefaultThinkDelay = 700 * time.Millisecond

// MoveCalculator defines an interface for an agent that can calculate a game move.
type MoveCalculator interface {
	CalculateNextMove(ctx context.Context, board game.Board, difficulty bot.Difficulty, rng bot.Rand) (game.Position, error)
}

// Observer is told about every state change, including the ones made by the
// scheduled computer move. It is called without the session lock held.
type Observer interface {
	SessionChanged(ctx context.Context, snap Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, snap Snapshot)

func (f ObserverFunc) SessionChanged(ctx context.Context, snap Snapshot) { f(ctx, snap) }

// Option configures a Session.
type Option func(*Session)

func WithID(id string) Option { return func(s *Session) { s.id = id } }

func WithThinkDelay(d time.Duration) Option { return func(s *Session) { s.thinkDelay = d } }

func WithScheduler(sch Scheduler) Option { return func(s *Session) { s.scheduler = sch } }

func WithRand(rng bot.Rand) Option { return func(s *Session) { s.rng = rng } }

func WithMoveCalculator(c MoveCalculator) Option { return func(s *Session) { s.calculator = c } }

func WithObserver(o Observer) Option { return func(s *Session) { s.observer = o } }

// Session is one human-versus-computer game plus the running score. The human
// always plays X and the computer always plays O.
//
// Calls are serialized by an internal mutex, which also guards against the
// scheduled computer move racing with the caller.
type Session struct {
	mu sync.Mutex

	id               string
	board            game.Board
	turn             game.PlayerMark
	started          bool
	state            State
	difficulty       bot.Difficulty
	score            *score.Tracker
	lastComputerMove *game.Position
	starter          game.PlayerMark
	games            uint64
	version          uint64

	calculator MoveCalculator
	rng        bot.Rand
	scheduler  Scheduler
	thinkDelay time.Duration
	observer   Observer

	// pending is the scheduled computer move, if any. epoch is bumped every
	// time the board is replaced so a callback that already fired cannot
	// touch a newer game.
	pending Timer
	epoch   uint64
}

// New creates a session in NotStarted.
func New(difficulty bot.Difficulty, opts ...Option) (*Session, error) {
	if !difficulty.Valid() {
		return nil, fmt.Errorf("%w: %q", bot.ErrUnknownDifficulty, difficulty)
	}

	s := &Session{
		board:      game.EmptyBoard(),
		turn:       game.None,
		state:      NotStarted,
		difficulty: difficulty,
		score:      score.NewTracker(),
		calculator: &bot.BotMoveCalculator{},
		scheduler:  TimeScheduler{},
		thinkDelay: DefaultThinkDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = bot.NewRand(uint64(time.Now().UnixNano()))
	}
	return s, nil
}

// ID returns the identifier given with WithID.
func (s *Session) ID() string {
	return s.id
}

// ChooseStartingPlayer starts a fresh game with p to move. When the computer
// starts, its first move is scheduled and the call returns immediately.
func (s *Session) ChooseStartingPlayer(ctx context.Context, p game.PlayerMark) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "session.ChooseStartingPlayer", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("player.mark", string(p)),
	))
	defer span.End()

	if !p.Valid() {
		err := fmt.Errorf("%w: %q", ErrInvalidPlayer, p)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid starting player")
		return Snapshot{}, err
	}

	s.mu.Lock()
	s.clearBoardLocked()
	s.turn = p
	s.starter = p
	s.started = true
	if p == game.Human {
		s.state = AwaitingHuman
	} else {
		s.state = AwaitingComputer
		s.scheduleComputerMoveLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.InfoContext(ctx, "Game started", "session.id", s.id, "player.mark", p, "bot.difficulty", snap.Difficulty)
	s.notify(ctx, snap)
	return snap, nil
}

// MakeHumanMove places X at (row, col). On a non-terminal result the turn
// passes to the computer and its move is scheduled; the returned snapshot
// already reflects the human move.
func (s *Session) MakeHumanMove(ctx context.Context, row, col int) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "session.MakeHumanMove", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.Int("move.row", row),
		attribute.Int("move.col", col),
	))
	defer span.End()

	s.mu.Lock()
	if s.state != AwaitingHuman {
		state := s.state
		s.mu.Unlock()
		err := fmt.Errorf("%w: session is %s", ErrIllegalMove, state)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Move outside the human turn")
		return Snapshot{}, err
	}

	next, err := s.board.Place(row, col, game.Human)
	if err != nil {
		s.mu.Unlock()
		err = fmt.Errorf("%w: %w", ErrIllegalMove, err)
		span.SetAttributes(attribute.Bool("move.valid", false))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid move")
		return Snapshot{}, err
	}
	span.SetAttributes(attribute.Bool("move.valid", true))

	s.board = next
	s.afterMoveLocked(ctx, game.Human)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.DebugContext(ctx, "Human moved", "session.id", s.id, "move.row", row, "move.col", col, "game.result", snap.Result)
	s.notify(ctx, snap)
	return snap, nil
}

// Reset clears the board and cancels any pending computer move. The score is kept.
func (s *Session) Reset(ctx context.Context) Snapshot {
	ctx, span := tracer.Start(ctx, "session.Reset", trace.WithAttributes(
		attribute.String("session.id", s.id),
	))
	defer span.End()

	s.mu.Lock()
	s.clearBoardLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.InfoContext(ctx, "Game reset", "session.id", s.id)
	s.notify(ctx, snap)
	return snap
}

// SetDifficulty changes the policy used for computer moves scheduled from now
// on. A move that is already scheduled keeps the difficulty it was scheduled with.
func (s *Session) SetDifficulty(ctx context.Context, d bot.Difficulty) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "session.SetDifficulty", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("bot.difficulty", string(d)),
	))
	defer span.End()

	if !d.Valid() {
		err := fmt.Errorf("%w: %q", bot.ErrUnknownDifficulty, d)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unknown difficulty")
		return Snapshot{}, err
	}

	s.mu.Lock()
	s.difficulty = d
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.InfoContext(ctx, "Difficulty changed", "session.id", s.id, "bot.difficulty", d)
	s.notify(ctx, snap)
	return snap, nil
}

// ClearScore zeroes the tally. The board is left alone.
func (s *Session) ClearScore(ctx context.Context) Snapshot {
	s.mu.Lock()
	s.score.Reset()
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.InfoContext(ctx, "Score cleared", "session.id", s.id)
	s.notify(ctx, snap)
	return snap
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close cancels a pending computer move. The session stays readable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked()
	s.epoch++
}

// computerMove is the scheduled callback. It plays only if it still belongs to
// the current game and the computer is still to move.
func (s *Session) computerMove(epoch uint64, difficulty bot.Difficulty) {
	ctx, span := tracer.Start(context.Background(), "session.computerMove", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("bot.difficulty", string(difficulty)),
	))
	defer span.End()

	s.mu.Lock()
	if epoch != s.epoch || s.state != AwaitingComputer {
		s.mu.Unlock()
		slog.DebugContext(ctx, "Discarding stale computer move", "session.id", s.id)
		span.SetAttributes(attribute.Bool("move.stale", true))
		return
	}
	s.pending = nil

	start := time.Now()
	pos, err := s.calculator.CalculateNextMove(ctx, s.board, difficulty, s.rng)
	computerMoveDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(attribute.String("bot.difficulty", string(difficulty))))
	if err != nil {
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Computer could not move", "session.id", s.id, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Computer could not move")
		return
	}

	next, err := s.board.Place(pos.Row, pos.Col, game.Computer)
	if err != nil {
		s.mu.Unlock()
		panic(fmt.Sprintf("session %s: move calculator chose an illegal move %s: %v", s.id, pos, err))
	}

	s.board = next
	s.lastComputerMove = &pos
	s.afterMoveLocked(ctx, game.Computer)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("move.row", pos.Row), attribute.Int("move.col", pos.Col))
	slog.DebugContext(ctx, "Computer moved", "session.id", s.id, "move.row", pos.Row, "move.col", pos.Col, "game.result", snap.Result)
	s.notify(ctx, snap)
}

// afterMoveLocked evaluates the board after mover played and advances the
// state machine.
func (s *Session) afterMoveLocked(ctx context.Context, mover game.PlayerMark) {
	assertConsistent(s.board)
	s.version++

	result := game.Evaluate(s.board)
	if result.IsTerminal() {
		s.finishLocked(ctx, result)
		return
	}

	s.turn = mover.Opponent()
	if s.turn == game.Computer {
		s.state = AwaitingComputer
		s.scheduleComputerMoveLocked()
	} else {
		s.state = AwaitingHuman
	}
}

func (s *Session) finishLocked(ctx context.Context, result game.Result) {
	s.state = Finished
	s.started = false
	if err := s.score.RecordOutcome(result); err != nil {
		panic(fmt.Sprintf("session %s: %v", s.id, err))
	}
	gamesFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("game.result", result.String())))
	slog.InfoContext(ctx, "Game finished", "session.id", s.id, "game.result", result.String())
}

func (s *Session) scheduleComputerMoveLocked() {
	s.cancelPendingLocked()
	epoch, difficulty := s.epoch, s.difficulty
	s.pending = s.scheduler.AfterFunc(s.thinkDelay, func() {
		s.computerMove(epoch, difficulty)
	})
}

func (s *Session) cancelPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *Session) clearBoardLocked() {
	s.cancelPendingLocked()
	s.epoch++
	s.games++
	s.version++
	s.board = game.EmptyBoard()
	s.turn = game.None
	s.starter = game.None
	s.started = false
	s.state = NotStarted
	s.lastComputerMove = nil
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:         s.id,
		Board:      s.board,
		WhoseTurn:  s.turn,
		Result:     game.Evaluate(s.board),
		Score:      s.score.Score(),
		Started:    s.started,
		State:      s.state,
		Difficulty: s.difficulty,
		Starter:    s.starter,
		Game:       s.games,
		Version:    s.version,
	}
	if s.lastComputerMove != nil {
		pos := *s.lastComputerMove
		snap.LastComputerMove = &pos
	}
	return snap
}

func (s *Session) notify(ctx context.Context, snap Snapshot) {
	if s.observer != nil {
		s.observer.SessionChanged(ctx, snap)
	}
}

// assertConsistent panics on boards legal alternating play cannot produce.
func assertConsistent(b game.Board) {
	if d := b.Count(game.PlayerX) - b.Count(game.PlayerO); d < -1 || d > 1 {
		panic(fmt.Sprintf("corrupted board %v: mark counts differ by %d", b, d))
	}
	if winners := game.Winners(b); len(winners) > 1 {
		panic(fmt.Sprintf("corrupted board %v: both players hold a line", b))
	}
}
