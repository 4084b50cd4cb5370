package server

import (
	"ctchen222/tictactoe-engine/internal/api/response"
	"ctchen222/tictactoe-engine/internal/api/service"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const playerIDKey = "player.id"

// AuthMiddleware accepts a bearer token, or a "token" query parameter for
// websocket clients that cannot set headers, and stores the player id.
func AuthMiddleware(auth service.PlayerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			response.AbortWithError(c, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := auth.ParseToken(token)
		if err != nil {
			slog.DebugContext(c.Request.Context(), "Rejected token", "error", err)
			response.AbortWithError(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(playerIDKey, claims.Subject)
		c.Next()
	}
}

func playerID(c *gin.Context) string {
	return c.GetString(playerIDKey)
}
