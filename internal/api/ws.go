package api

import (
	"context"
	"net/http"

	"taskbot/pkg/auth"
	"taskbot/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventStream serves a user's live event connection until it closes.
type EventStream interface {
	Serve(ctx context.Context, userID int64, conn *websocket.Conn)
}

type wsRoutes struct {
	stream   EventStream
	shutdown context.Context
}

// NewWSRoutes registers the mini-app event stream. Connections are closed when
// shutdown is done.
func NewWSRoutes(handler *gin.RouterGroup, stream EventStream, a *auth.TelegramAuth, shutdown context.Context) {
	r := &wsRoutes{stream: stream, shutdown: shutdown}

	h := handler.Group("/ws")
	h.Use(a.TelegramAuthMiddleware())
	h.GET("/", r.handleWebSocket)
}

func (r *wsRoutes) handleWebSocket(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Logger().Info("websocket upgrade failed", zap.Error(err))
		return
	}

	r.stream.Serve(r.shutdown, tgUser.ID, conn)
}
