package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans material status updates out to the owning user's connections.
type Hub struct {
	Clients map[uint]map[*websocket.Conn]*Client
	Mutex   sync.RWMutex
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		Clients: make(map[uint]map[*websocket.Conn]*Client),
		log:     log.With("component", "WebSocketHub"),
	}
}

func (h *Hub) Register(userID uint, conn *websocket.Conn) *Client {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if _, ok := h.Clients[userID]; !ok {
		h.Clients[userID] = make(map[*websocket.Conn]*Client)
	}
	client := &Client{UserID: userID, Conn: conn, Send: make(chan []byte, sendBuffer)}
	h.Clients[userID][conn] = client
	return client
}

func (h *Hub) Unregister(userID uint, conn *websocket.Conn) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if clients, ok := h.Clients[userID]; ok {
		if client, ok := clients[conn]; ok {
			close(client.Send)
			delete(clients, conn)
		}
		if len(clients) == 0 {
			delete(h.Clients, userID)
		}
	}
}

// SendToUser queues data on every connection of the user. Slow clients
// whose buffer is full miss the message.
func (h *Hub) SendToUser(userID uint, data []byte) int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	delivered := 0
	for _, client := range h.Clients[userID] {
		select {
		case client.Send <- data:
			delivered++
		default:
		}
	}
	return delivered
}

// NotifyMaterialStatus pushes an update straight to local connections.
func (h *Hub) NotifyMaterialStatus(_ context.Context, update services.MaterialStatusUpdate) error {
	h.Deliver(update)
	return nil
}

func (h *Hub) Deliver(update services.MaterialStatusUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		h.log.Warn("marshal status update", "error", err)
		return
	}
	h.SendToUser(update.UserID, data)
}

func (h *Hub) GetStats() map[string]int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	conns := 0
	for _, clients := range h.Clients {
		conns += len(clients)
	}
	return map[string]int{"users": len(h.Clients), "connections": conns}
}

func (h *Hub) readPump(c *Client) {
	defer h.Unregister(c.UserID, c.Conn)

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
