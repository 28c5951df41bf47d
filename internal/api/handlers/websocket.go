package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"notify-service/internal/api/middleware"
	"notify-service/internal/websocket"
)

type WSHandler struct {
	session *websocket.Session
	auth    *middleware.AuthMiddleware
}

func NewWSHandler(session *websocket.Session, auth *middleware.AuthMiddleware) *WSHandler {
	return &WSHandler{session: session, auth: auth}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Establish a WebSocket connection for realtime notifications
// @Tags websocket
// @Param token query string true "JWT carrying the user identity"
// @Success 101 "Switching Protocols - WebSocket connection established"
// @Failure 401 {object} map[string]interface{} "missing or invalid identity"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// Browsers cannot set headers on websocket handshakes, so the token
	// arrives as a query parameter.
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
	}
	if token == "" {
		slog.Warn("WebSocket connection rejected: no identity")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}

	userID, err := h.auth.UserIDFromToken(token)
	if err != nil {
		slog.Warn("WebSocket connection rejected: invalid token", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	websocket.ServeWS(h.session, c.Writer, c.Request, userID)
}
