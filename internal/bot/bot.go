package bot

import (
	"context"
	"ctchen222/tictactoe-engine/internal/game"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bot")

// BotMoveCalculator wraps CalculateNextMove with tracing and logging.
type BotMoveCalculator struct{}

// CalculateNextMove calls the package-level function inside a span.
func (c *BotMoveCalculator) CalculateNextMove(ctx context.Context, board game.Board, difficulty Difficulty, rng Rand) (game.Position, error) {
	ctx, span := tracer.Start(ctx, "bot.CalculateNextMove", trace.WithAttributes(
		attribute.String("bot.difficulty", string(difficulty)),
		attribute.Int("board.empty_cells", len(board.EmptyCells())),
	))
	defer span.End()

	pos, err := CalculateNextMove(board, difficulty, rng)
	if err != nil {
		slog.WarnContext(ctx, "Bot could not pick a move", "bot.difficulty", difficulty, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bot could not pick a move")
		return game.Position{}, err
	}

	span.SetAttributes(attribute.Int("move.row", pos.Row), attribute.Int("move.col", pos.Col))
	slog.DebugContext(ctx, "Bot picked move", "bot.difficulty", difficulty, "move.row", pos.Row, "move.col", pos.Col)
	return pos, nil
}
