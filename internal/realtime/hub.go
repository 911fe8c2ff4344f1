package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"election-core/internal/domain"
	"election-core/internal/service"
	"election-core/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS middleware in front.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans election status updates out to websocket clients. One room per
// class holds the clients and a single broadcaster subscription; the room is
// created when the first client connects and torn down with the last one.
type Hub struct {
	broadcaster *service.Broadcaster
	logger      *logger.Logger

	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	classID string
	clients map[*client]bool
	cancel  func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a new websocket hub
func NewHub(broadcaster *service.Broadcaster, logger *logger.Logger) *Hub {
	return &Hub{
		broadcaster: broadcaster,
		logger:      logger,
		rooms:       make(map[string]*room),
	}
}

// ServeStatus upgrades the connection and streams status updates for a
// class. The latest mirrored status is sent immediately so a late joiner
// does not wait for the next transition.
func (h *Hub) ServeStatus(w http.ResponseWriter, r *http.Request, classID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 8),
	}

	h.register(classID, c)

	if status, err := h.broadcaster.Current(r.Context(), classID); err == nil && status != nil {
		if payload, err := json.Marshal(status); err == nil {
			select {
			case c.send <- payload:
			default:
			}
		}
	}

	go c.writePump()
	go h.readPump(classID, c)
}

func (h *Hub) register(classID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[classID]
	if !ok {
		updates, cancel := h.broadcaster.Subscribe(context.Background(), classID)
		rm = &room{
			classID: classID,
			clients: make(map[*client]bool),
			cancel:  cancel,
		}
		h.rooms[classID] = rm
		go h.fanOut(rm, updates)
	}
	rm.clients[c] = true

	h.logger.WithFields(map[string]interface{}{
		"class_id": classID,
		"clients":  len(rm.clients),
	}).Debug("Websocket client joined")
}

func (h *Hub) unregister(classID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[classID]
	if !ok {
		return
	}
	if _, ok := rm.clients[c]; !ok {
		return
	}
	delete(rm.clients, c)
	close(c.send)

	if len(rm.clients) == 0 {
		rm.cancel()
		delete(h.rooms, classID)
	}
}

// fanOut pushes every subscription update to the room's clients. Clients
// that cannot keep up are dropped; they reconnect and resync from Current.
func (h *Hub) fanOut(rm *room, updates <-chan domain.BroadcastStatus) {
	for status := range updates {
		payload, err := json.Marshal(status)
		if err != nil {
			continue
		}

		h.mu.Lock()
		var slow []*client
		for c := range rm.clients {
			select {
			case c.send <- payload:
			default:
				slow = append(slow, c)
			}
		}
		h.mu.Unlock()

		for _, c := range slow {
			h.unregister(rm.classID, c)
			c.conn.Close()
		}
	}
}

// Close disconnects all clients and cancels every room subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for classID, rm := range h.rooms {
		// Remove before closing send, same as unregister: fanOut may still
		// hold a buffered update and must not see a closed channel.
		for c := range rm.clients {
			delete(rm.clients, c)
			close(c.send)
			c.conn.Close()
		}
		rm.cancel()
		delete(h.rooms, classID)
	}
}

// readPump drains the connection to process control frames and detect close
func (h *Hub) readPump(classID string, c *client) {
	defer func() {
		h.unregister(classID, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
