package room

import (
	"encoding/json"
	"sync"

	"syncthat/core/resolver"
	"syncthat/logger"
	"syncthat/model"
)

// Registry owns the fixed set of room sessions and routes every inbound
// connection event to the right one. Rooms are created up front from the
// configured IDs and live for the length of the process.
type Registry struct {
	transport Transport
	rooms     map[string]*Session

	mu     sync.Mutex
	byConn map[model.ConnID]*Session
}

func NewRegistry(roomIDs []string, transport Transport, res resolver.Resolver, adminPassword string) *Registry {
	r := &Registry{
		transport: transport,
		rooms:     make(map[string]*Session, len(roomIDs)),
		byConn:    make(map[model.ConnID]*Session),
	}
	for _, id := range roomIDs {
		r.rooms[id] = NewSession(id, transport, res, adminPassword)
	}
	return r
}

// Start spins up every session loop.
func (r *Registry) Start() {
	for _, s := range r.rooms {
		s.Start()
	}
}

// Stop shuts every session loop down.
func (r *Registry) Stop() {
	for _, s := range r.rooms {
		s.Stop()
	}
}

// Rooms returns the configured room IDs.
func (r *Registry) Rooms() map[string]*Session {
	return r.rooms
}

// Dispatch routes one inbound message. A join-room targets the session
// named in the message and may move the connection between rooms; every
// other event goes to the session the connection last joined.
func (r *Registry) Dispatch(conn model.ConnID, event string, data json.RawMessage) {
	if event == CmdJoinRoom {
		var msg JoinMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("malformed join message", logger.ErrorField(err))
			r.transport.Disconnect(conn)
			return
		}
		r.join(conn, msg)
		return
	}

	r.mu.Lock()
	session := r.byConn[conn]
	r.mu.Unlock()
	if session == nil {
		// Talking without joining first gets you nowhere.
		r.transport.Disconnect(conn)
		return
	}
	session.HandleCommand(conn, event, data)
}

func (r *Registry) join(conn model.ConnID, msg JoinMessage) {
	target, ok := r.rooms[msg.Room]
	if !ok {
		logger.Warn("join for unknown room", logger.String("room", msg.Room))
		r.transport.Disconnect(conn)
		return
	}

	r.mu.Lock()
	prev := r.byConn[conn]
	r.byConn[conn] = target
	r.mu.Unlock()

	if prev != nil && prev != target {
		prev.Disconnect(conn)
	}
	target.Join(conn, msg)
}

// HandleDisconnect informs the connection's session that its socket is gone.
func (r *Registry) HandleDisconnect(conn model.ConnID) {
	r.mu.Lock()
	session := r.byConn[conn]
	delete(r.byConn, conn)
	r.mu.Unlock()

	if session != nil {
		session.Disconnect(conn)
	}
}
