package notify

import (
	"context"
	"sync"
	"time"

	"taskbot/internal/model"
	"taskbot/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

type client struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte
}

// Hub keeps the mini-app websocket connections of each user and pushes engine
// events to them. Events for users without an open connection are dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*client]struct{})}
}

// Serve owns conn until it is closed by the peer or ctx is done.
func (h *Hub) Serve(ctx context.Context, userID int64, conn *websocket.Conn) {
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readLoop(c)
	}()

	h.writeLoop(ctx, c, done)

	h.unregister(c)
	_ = conn.Close()
}

func (h *Hub) Notify(ctx context.Context, event model.Event) error {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[event.UserID]))
	for c := range h.clients[event.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			logger.Logger().Warn("websocket send buffer full, dropping event",
				zap.Int64("user_id", c.userID),
				zap.String("type", string(event.Type)),
			)
		}
	}

	return nil
}

// Connections returns the number of open connections for userID.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients[c.userID], c)
	if len(h.clients[c.userID]) == 0 {
		delete(h.clients, c.userID)
	}
}

// readLoop only drains control frames; the mini-app does not send commands.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Logger().Info("websocket unexpected close", zap.Int64("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Logger().Info("websocket write failed", zap.Int64("user_id", c.userID), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return

		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(writeWait))
			return
		}
	}
}
