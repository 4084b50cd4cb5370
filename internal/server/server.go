package server

import (
	"ctchen222/tictactoe-engine/internal/api/controller"
	"ctchen222/tictactoe-engine/internal/api/service"
	"ctchen222/tictactoe-engine/internal/bot"
	"ctchen222/tictactoe-engine/internal/hub"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("server")

type Server struct {
	hub               *hub.Hub
	players           *controller.PlayerController
	auth              service.PlayerService
	defaultDifficulty bot.Difficulty
	upgrader          websocket.Upgrader
	engine            *gin.Engine
}

func NewServer(h *hub.Hub, players *controller.PlayerController, auth service.PlayerService, defaultDifficulty bot.Difficulty) *Server {
	s := &Server{
		hub:               h,
		players:           players,
		auth:              auth,
		defaultDifficulty: defaultDifficulty,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.engine = s.routes()
	return s
}

// Engine returns the HTTP handler.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.hub.Active()})
	})

	players := r.Group("/api/players")
	players.POST("/register", s.players.Register)
	players.POST("/login", s.players.Login)
	players.POST("/guest", s.players.GuestLogin)

	authed := r.Group("/", AuthMiddleware(s.auth))

	sessions := authed.Group("/api/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("/:id", s.getSession)
	sessions.DELETE("/:id", s.deleteSession)
	sessions.POST("/:id/start", s.startGame)
	sessions.POST("/:id/moves", s.makeMove)
	sessions.POST("/:id/reset", s.resetGame)
	sessions.PUT("/:id/difficulty", s.setDifficulty)
	sessions.DELETE("/:id/score", s.clearScore)

	authed.GET("/ws/sessions/:id", s.handleWebSocket)
	return r
}
