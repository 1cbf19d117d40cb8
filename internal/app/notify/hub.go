// Package notify pushes realtime events to connected operator UIs over
// WebSocket. Events are scoped to a company; a connection only ever sees its
// own tenant's traffic.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 32
)

// Event is the envelope sent to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub tracks WebSocket subscribers per company.
type Hub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub constructs a hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// Subscribe upgrades the request and streams the company's events until the
// peer disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, companyID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(companyID, c)
	h.log.WithField("company_id", companyID).Info("notify subscriber connected")

	go h.writeLoop(companyID, c)
	h.readLoop(companyID, c)
}

// Broadcast sends an event to every subscriber of the company. Clients whose
// buffers are full are dropped rather than letting one slow reader stall the
// rest.
func (h *Hub) Broadcast(companyID string, event Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Warn("event marshal failed")
		return
	}

	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.clients[companyID]))
	for c := range h.clients[companyID] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	for _, c := range subscribers {
		select {
		case c.send <- raw:
		default:
			h.log.WithField("company_id", companyID).Warn("dropping slow notify subscriber")
			h.remove(companyID, c)
		}
	}
}

// SaleCompleted publishes a completed checkout.
func (h *Hub) SaleCompleted(companyID string, sale pos.Sale) {
	h.Broadcast(companyID, Event{Type: "sale.completed", Payload: sale})
}

// SubscriberCount reports the current number of connections for a company.
func (h *Hub) SubscriberCount(companyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[companyID])
}

func (h *Hub) add(companyID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[companyID] == nil {
		h.clients[companyID] = make(map[*client]struct{})
	}
	h.clients[companyID][c] = struct{}{}
}

func (h *Hub) remove(companyID string, c *client) {
	h.mu.Lock()
	if _, ok := h.clients[companyID][c]; ok {
		delete(h.clients[companyID], c)
		if len(h.clients[companyID]) == 0 {
			delete(h.clients, companyID)
		}
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) readLoop(companyID string, c *client) {
	defer func() {
		h.remove(companyID, c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Clients never send application data; reads only surface closes.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(companyID string, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				h.remove(companyID, c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(companyID, c)
				return
			}
		}
	}
}
