// internal/handlers/websocket/websocket.go
package websocket

import (
	"errors"
	"net/http"
	"strings"
	"time"

	xerrors "attendance-service/internal/pkg/errors"
	"attendance-service/internal/pkg/response"
	ws "attendance-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	auth     *ws.TokenAuthenticator
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts upgrades from the listed origins; "*" or an
// empty list accepts any.
func NewWebSocketHandler(hub *ws.Hub, auth *ws.TokenAuthenticator, origins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
		logger: logger,
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// HandleConnection authenticates the token against a live session before
// upgrading.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		response.Unauthorized(c, "missing authentication token")
		return
	}

	auth, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		h.logger.Debug("websocket authentication failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		switch {
		case errors.Is(err, ws.ErrInvalidToken):
			response.Unauthorized(c, "invalid or expired token")
		case errors.Is(err, ws.ErrSessionNotLive):
			response.Unauthorized(c, "session is no longer active")
		case xerrors.KindOf(err) == xerrors.KindInternal:
			response.Fail(c, err)
		default:
			response.Unauthorized(c, "session not found")
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, auth)
	h.hub.Register(c.Request.Context(), client)

	h.logger.Info("websocket client connected",
		zap.String("user_id", auth.UserID),
		zap.String("session_id", auth.SessionID),
		zap.String("role", auth.Role),
	)

	go client.WritePump()
	go client.ReadPump()
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GetStats returns push channel connection counts (admin only).
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := gin.H{
		"ok":               true,
		"totalConnections": h.hub.TotalClients(),
		"timestamp":        time.Now().UTC(),
	}
	if userID := c.Query("userId"); userID != "" {
		stats["userId"] = userID
		stats["userConnections"] = h.hub.ConnectedClients(userID)
	}
	response.JSON(c, http.StatusOK, stats)
}
