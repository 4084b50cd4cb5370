package server

import (
	"context"
	"ctchen222/tictactoe-engine/internal/api/response"
	"ctchen222/tictactoe-engine/internal/bot"
	"ctchen222/tictactoe-engine/internal/game"
	"ctchen222/tictactoe-engine/internal/hub"
	"ctchen222/tictactoe-engine/internal/session"
	"ctchen222/tictactoe-engine/pkg/proto"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	writeWait    = 10 * time.Second
	replyBuffer  = 8
	maxFrameSize = 4096
)

// client is one websocket attached to a session. Only writePump writes to conn.
type client struct {
	conn    *websocket.Conn
	session *session.Session
	sub     *hub.Subscriber
	replies chan *proto.ServerToClientMessage
}

// handleWebSocket upgrades the connection and streams snapshots of the
// session until either side goes away.
func (s *Server) handleWebSocket(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("session.id", c.Param("id")),
		attribute.String("player.id", playerID(c)),
	))
	defer span.End()

	sess, err := s.hub.Get(c.Param("id"), playerID(c))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session lookup failed")
		response.ErrorResponse(c, statusFor(err), err.Error())
		return
	}
	sub, err := s.hub.Subscribe(sess.ID(), playerID(c))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Subscribe failed")
		response.ErrorResponse(c, statusFor(err), err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.hub.Unsubscribe(sub)
		slog.ErrorContext(ctx, "Failed to upgrade connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}
	conn.SetReadLimit(maxFrameSize)

	cl := &client{
		conn:    conn,
		session: sess,
		sub:     sub,
		replies: make(chan *proto.ServerToClientMessage, replyBuffer),
	}
	slog.InfoContext(ctx, "Websocket attached", "session.id", sess.ID(), "player.id", playerID(c))

	ctx = context.WithoutCancel(ctx)
	go cl.writePump(ctx)
	cl.readPump(ctx)
	s.hub.Unsubscribe(sub)
}

// readPump applies inbound frames to the session until the connection fails.
func (cl *client) readPump(ctx context.Context) {
	defer func() {
		_ = cl.conn.Close()
	}()

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.WarnContext(ctx, "Websocket read error", "session.id", cl.session.ID(), "error", err)
			}
			return
		}

		msg, err := proto.DecodeClientMessage(data)
		if err != nil {
			cl.reply(ctx, proto.ErrorMessage(err.Error()))
			continue
		}
		if err := cl.apply(ctx, msg); err != nil {
			cl.reply(ctx, proto.ErrorMessage(err.Error()))
		}
	}
}

func (cl *client) apply(ctx context.Context, msg *proto.ClientToServerMessage) error {
	ctx, span := tracer.Start(ctx, "server.applyMessage", trace.WithAttributes(
		attribute.String("session.id", cl.session.ID()),
		attribute.String("message.type", msg.Type),
	))
	defer span.End()

	var err error
	switch msg.Type {
	case proto.TypeMove:
		_, err = cl.session.MakeHumanMove(ctx, msg.Position[0], msg.Position[1])
	case proto.TypeStart:
		_, err = cl.session.ChooseStartingPlayer(ctx, game.PlayerMark(msg.Player))
	case proto.TypeReset:
		cl.session.Reset(ctx)
	case proto.TypeDifficulty:
		var d bot.Difficulty
		if d, err = bot.ParseDifficulty(msg.Difficulty); err == nil {
			_, err = cl.session.SetDifficulty(ctx, d)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Message rejected")
	}
	return err
}

func (cl *client) reply(ctx context.Context, msg *proto.ServerToClientMessage) {
	select {
	case cl.replies <- msg:
	default:
		slog.WarnContext(ctx, "Dropping reply to slow websocket", "session.id", cl.session.ID())
	}
}

// writePump forwards snapshots and replies to the connection. It stops when
// the subscription is closed or a write fails.
func (cl *client) writePump(ctx context.Context) {
	defer func() {
		_ = cl.conn.Close()
	}()

	for {
		var msg *proto.ServerToClientMessage
		select {
		case snap, ok := <-cl.sub.C():
			if !ok {
				_ = cl.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			msg = proto.SnapshotMessage(snap)
		case msg = <-cl.replies:
		}

		data, err := proto.Encode(msg)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to encode frame", "error", err)
			continue
		}
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.WarnContext(ctx, "Websocket write error", "session.id", cl.session.ID(), "error", err)
			return
		}
	}
}
