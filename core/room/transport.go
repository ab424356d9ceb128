package room

import "syncthat/model"

// Outbound events broadcast to a whole room.
const (
	EventUsers       = "users"
	EventCurrentSong = "current-song"
	EventQueue       = "queue"
	EventPlayedSongs = "played-songs"
	EventLog         = "log"
)

// Outbound events sent to a single connection.
const (
	EventYou              = "you"
	EventPrivateMessage   = "private-message"
	EventAlreadyConnected = "already-connected"
)

// Transport delivers engine output to clients. The engine never touches
// sockets directly; the websocket hub implements this.
type Transport interface {
	// Join subscribes a connection to a room's broadcasts.
	Join(roomID string, conn model.ConnID)
	// Send unicasts an event to one connection.
	Send(conn model.ConnID, event string, payload any)
	// Broadcast fans an event out to every connection in the room.
	Broadcast(roomID string, event string, payload any)
	// Disconnect forcibly closes a connection.
	Disconnect(conn model.ConnID)
}
