package session

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("session")
	meter  = otel.Meter("session")

	gamesFinished, _ = meter.Int64Counter("session.games.finished",
		metric.WithDescription("Finished games by result"),
	)
	computerMoveDuration, _ = meter.Float64Histogram("session.computer_move.duration",
		metric.WithDescription("Time spent choosing a computer move"),
		metric.WithUnit("ms"),
	)
)
