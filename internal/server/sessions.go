package server

import (
	"ctchen222/tictactoe-engine/internal/api/response"
	"ctchen222/tictactoe-engine/internal/bot"
	"ctchen222/tictactoe-engine/internal/game"
	"ctchen222/tictactoe-engine/internal/session"
	"ctchen222/tictactoe-engine/internal/validator"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type createSessionRequest struct {
	Difficulty string `json:"difficulty" validate:"omitempty,difficulty"`
}

type startRequest struct {
	Player string `json:"player" validate:"required,mark"`
}

type moveRequest struct {
	Row *int `json:"row" validate:"required"`
	Col *int `json:"col" validate:"required"`
}

type difficultyRequest struct {
	Difficulty string `json:"difficulty" validate:"required,difficulty"`
}

type createSessionResponse struct {
	ID       string           `json:"id"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// bind decodes and validates the JSON body. An empty body is allowed when
// every field is optional.
func bind(c *gin.Context, req any) bool {
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			response.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return false
		}
	}
	if err := validator.GetValidator().Struct(req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "Session request failed", "player.id", playerID(c), "error", err)
	}
	response.ErrorResponse(c, code, err.Error())
}

func (s *Server) lookup(c *gin.Context, name string) (*session.Session, trace.Span, bool) {
	ctx, span := tracer.Start(c.Request.Context(), name, trace.WithAttributes(
		attribute.String("session.id", c.Param("id")),
		attribute.String("player.id", playerID(c)),
	))
	c.Request = c.Request.WithContext(ctx)

	sess, err := s.hub.Get(c.Param("id"), playerID(c))
	if err != nil {
		s.fail(c, span, err)
		return nil, span, false
	}
	return sess, span, true
}

func (s *Server) createSession(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "server.createSession")
	defer span.End()

	var req createSessionRequest
	if !bind(c, &req) {
		return
	}
	difficulty := s.defaultDifficulty
	if req.Difficulty != "" {
		difficulty, _ = bot.ParseDifficulty(req.Difficulty)
	}

	sess, err := s.hub.Create(ctx, playerID(c), difficulty)
	if err != nil {
		s.fail(c, span, err)
		return
	}
	response.CreatedResponse(c, createSessionResponse{ID: sess.ID(), Snapshot: sess.Snapshot()})
}

func (s *Server) getSession(c *gin.Context) {
	sess, span, ok := s.lookup(c, "server.getSession")
	defer span.End()
	if !ok {
		return
	}
	response.SuccessResponse(c, sess.Snapshot())
}

func (s *Server) deleteSession(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "server.deleteSession", trace.WithAttributes(
		attribute.String("session.id", c.Param("id")),
	))
	defer span.End()

	if err := s.hub.Remove(ctx, c.Param("id"), playerID(c)); err != nil {
		s.fail(c, span, err)
		return
	}
	response.SuccessResponse(c, gin.H{"message": "Session closed"})
}

func (s *Server) startGame(c *gin.Context) {
	sess, span, ok := s.lookup(c, "server.startGame")
	defer span.End()
	if !ok {
		return
	}
	var req startRequest
	if !bind(c, &req) {
		return
	}

	snap, err := sess.ChooseStartingPlayer(c.Request.Context(), game.PlayerMark(req.Player))
	if err != nil {
		s.fail(c, span, err)
		return
	}
	response.SuccessResponse(c, snap)
}

func (s *Server) makeMove(c *gin.Context) {
	sess, span, ok := s.lookup(c, "server.makeMove")
	defer span.End()
	if !ok {
		return
	}
	var req moveRequest
	if !bind(c, &req) {
		return
	}

	snap, err := sess.MakeHumanMove(c.Request.Context(), *req.Row, *req.Col)
	if err != nil {
		s.fail(c, span, err)
		return
	}
	response.SuccessResponse(c, snap)
}

func (s *Server) resetGame(c *gin.Context) {
	sess, span, ok := s.lookup(c, "server.resetGame")
	defer span.End()
	if !ok {
		return
	}
	response.SuccessResponse(c, sess.Reset(c.Request.Context()))
}

func (s *Server) setDifficulty(c *gin.Context) {
	sess, span, ok := s.lookup(c, "server.setDifficulty")
	defer span.End()
	if !ok {
		return
	}
	var req difficultyRequest
	if !bind(c, &req) {
		return
	}
	difficulty, _ := bot.ParseDifficulty(req.Difficulty)

	snap, err := sess.SetDifficulty(c.Request.Context(), difficulty)
	if err != nil {
		s.fail(c, span, err)
		return
	}
	response.SuccessResponse(c, snap)
}

func (s *Server) clearScore(c *gin.Context) {
	sess, span, ok := s.lookup(c, "server.clearScore")
	defer span.End()
	if !ok {
		return
	}
	response.SuccessResponse(c, sess.ClearScore(c.Request.Context()))
}
