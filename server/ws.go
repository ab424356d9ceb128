package server

import (
	"encoding/json"
	"net/http"
	"time"

	"syncthat/core/room"
	"syncthat/logger"
	"syncthat/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 4096
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebsocket upgrades the connection and runs its pumps. Every socket
// gets a fresh connection ID; identity across sockets lives in the session,
// keyed by the private ID the client presents on join.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	c := &client{
		id:   model.ConnID(uuid.NewString()),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	s.hub.add(c)

	logger.Debug("websocket connected", logger.String("conn", string(c.id)))

	go c.writePump()
	c.readPump(s.hub, s.registry)
}

// readPump reads inbound frames and hands them to the registry until the
// socket dies, then tears the connection down.
func (c *client) readPump(hub *Hub, registry *room.Registry) {
	defer func() {
		hub.remove(c.id)
		registry.HandleDisconnect(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("conn", string(c.id)))
			}
			return
		}

		var msg envelope
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format",
				logger.ErrorField(err),
				logger.String("conn", string(c.id)))
			continue
		}

		registry.Dispatch(c.id, msg.Event, msg.Data)
	}
}

// writePump drains the send buffer to the socket and keeps the connection
// alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
