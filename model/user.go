package model

import "time"

// ConnID identifies a live transport connection. Empty means disconnected.
type ConnID string

// TimeTillInactive is how long a user may be silent before the activity
// sweep flips them to inactive.
const TimeTillInactive = 30 * time.Second

// UserState carries the volatile presentation flags a client reports
// (or the server derives) for a user.
type UserState struct {
	Listening bool `json:"listening"`
	Typing    bool `json:"typing"`
	Active    bool `json:"active"`
}

// ConnectedUser is one identity in a room. The record survives transport
// disconnects: PrivateID is the reconnection secret, PublicID the identity
// everyone else sees. Votes and song ownership key on PublicID.
type ConnectedUser struct {
	PrivateID string
	PublicID  string
	Name      string
	Emoji     string
	Admin     bool

	// Conn is the currently attached connection, empty when disconnected.
	Conn ConnID
	// DisconnectedSince is the unix-ms timestamp of the disconnect, 0 while connected.
	DisconnectedSince int64
	// LastActivity is the unix-ms timestamp of the last inbound command.
	LastActivity int64

	State UserState
}

// NewConnectedUser creates a freshly joined user attached to conn.
func NewConnectedUser(conn ConnID, privateID, publicID, name, emoji string) *ConnectedUser {
	return &ConnectedUser{
		PrivateID:    privateID,
		PublicID:     publicID,
		Name:         name,
		Emoji:        emoji,
		Conn:         conn,
		LastActivity: time.Now().UnixMilli(),
		State:        UserState{Active: true},
	}
}

// IsConnected reports whether the user has a live connection.
func (u *ConnectedUser) IsConnected() bool {
	return u.Conn != "" && u.DisconnectedSince == 0
}

// Touch stamps the last-activity time.
func (u *ConnectedUser) Touch() {
	u.LastActivity = time.Now().UnixMilli()
}

// DetermineActive recomputes the active flag from the last activity time.
func (u *ConnectedUser) DetermineActive() bool {
	return u.LastActivity > time.Now().Add(-TimeTillInactive).UnixMilli()
}

// UpdateActive sets the active flag and reports whether it changed.
func (u *ConnectedUser) UpdateActive(active bool) bool {
	if u.State.Active == active {
		return false
	}
	u.State.Active = active
	return true
}

// PublicUser is the roster entry broadcast to the whole room.
type PublicUser struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Emoji string          `json:"emoji"`
	Admin bool            `json:"admin"`
	State PublicUserState `json:"state"`
}

// PublicUserState extends UserState with the derived connected flag.
type PublicUserState struct {
	Connected bool `json:"connected"`
	Listening bool `json:"listening"`
	Typing    bool `json:"typing"`
	Active    bool `json:"active"`
}

// PrivateUser is the identity payload sent only to its owner ("you" event).
type PrivateUser struct {
	PrivateID string `json:"privateId"`
	PublicID  string `json:"publicId"`
	Name      string `json:"name"`
	Emoji     string `json:"emoji"`
	Admin     bool   `json:"admin"`
}

// PublicData builds the broadcastable view of the user.
func (u *ConnectedUser) PublicData() PublicUser {
	return PublicUser{
		ID:    u.PublicID,
		Name:  u.Name,
		Emoji: u.Emoji,
		Admin: u.Admin,
		State: PublicUserState{
			Connected: u.IsConnected(),
			Listening: u.State.Listening,
			Typing:    u.State.Typing,
			Active:    u.State.Active,
		},
	}
}

// PrivateData builds the owner-only view of the user.
func (u *ConnectedUser) PrivateData() PrivateUser {
	return PrivateUser{
		PrivateID: u.PrivateID,
		PublicID:  u.PublicID,
		Name:      u.Name,
		Emoji:     u.Emoji,
		Admin:     u.Admin,
	}
}
