package handlers

import (
	"net/http"

	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin access is governed by the CORS layer; the websocket
	// endpoint carries no credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebsocketHandler upgrades GET /ws connections into status subscriptions
type WebsocketHandler struct {
	push *services.WebsocketPushService
}

// NewWebsocketHandler creates the websocket handler
func NewWebsocketHandler(push *services.WebsocketPushService) *WebsocketHandler {
	return &WebsocketHandler{push: push}
}

// Subscribe handles GET /ws?account=0x..
func (h *WebsocketHandler) Subscribe(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.push.HandleConnection(conn, c.Query("account"))
}
