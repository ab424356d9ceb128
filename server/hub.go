package server

import (
	"encoding/json"
	"sync"
	"time"

	"syncthat/logger"
	"syncthat/model"

	"github.com/gorilla/websocket"
)

// envelope is the wire frame for every websocket message, both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// client is one live websocket connection.
type client struct {
	id   model.ConnID
	conn *websocket.Conn
	send chan []byte
	room string

	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Hub tracks live connections and their room subscriptions. It is the
// delivery side of the engine: sessions hand it events, it hands them to
// sockets. Slow consumers get dropped rather than block a room.
type Hub struct {
	mu      sync.RWMutex
	clients map[model.ConnID]*client
	rooms   map[string]map[model.ConnID]*client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[model.ConnID]*client),
		rooms:   make(map[string]map[model.ConnID]*client),
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(id model.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	h.detach(c)
	delete(h.clients, id)
	c.close()
}

// detach removes the client from its room set. Caller holds the lock.
func (h *Hub) detach(c *client) {
	if c.room == "" {
		return
	}
	if members, ok := h.rooms[c.room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.room = ""
}

// Join subscribes the connection to a room's broadcasts, leaving any
// previous room first.
func (h *Hub) Join(roomID string, conn model.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[conn]
	if !ok {
		return
	}
	h.detach(c)
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[model.ConnID]*client)
	}
	h.rooms[roomID][conn] = c
	c.room = roomID
}

// Send unicasts an event to one connection.
func (h *Hub) Send(conn model.ConnID, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c := h.clients[conn]; c != nil {
		h.deliver(c, data)
	}
}

// Broadcast fans an event out to every connection in the room.
func (h *Hub) Broadcast(roomID string, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomID] {
		h.deliver(c, data)
	}
}

// Disconnect forcibly closes a connection. The read pump notices the
// closed socket and runs the normal teardown.
func (h *Hub) Disconnect(conn model.ConnID) {
	h.mu.RLock()
	c := h.clients[conn]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.conn.Close()
}

// deliver queues a frame for the client, dropping the client when its
// buffer is full.
func (h *Hub) deliver(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		logger.Warn("send buffer full, dropping client",
			logger.String("room", c.room))
		c.conn.Close()
	}
}

func encode(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Error("failed to encode event payload",
				logger.ErrorField(err),
				logger.String("event", event))
			return nil, err
		}
		raw = data
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}
