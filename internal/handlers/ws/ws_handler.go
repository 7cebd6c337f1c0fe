// internal/handlers/ws/ws_handler.go
package ws

import (
	"net/http"

	"cargolink-service/internal/pkg/jwt"
	"cargolink-service/internal/pkg/response"
	"cargolink-service/internal/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Auth happens via the token query param; origin is not the gate.
		return true
	},
}

type WebSocketHandler struct {
	hub      *websocket.Hub
	verifier *jwt.Verifier
	logger   *zap.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, verifier *jwt.Verifier, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		verifier: verifier,
		logger:   logger,
	}
}

// HandleConnection upgrades an authenticated request to a websocket
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "missing token")
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.Int64("identity_id", claims.IdentityID),
			zap.Error(err))
		return
	}

	client := websocket.NewClient(h.hub, conn, claims.IdentityID, h.logger)
	client.Start()
}

// GetStats reports hub connection counts. Admin only.
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "websocket stats retrieved", gin.H{
		"total_clients": h.hub.TotalClients(),
	})
}
