package room

// Inbound command names, mirroring the public command surface.
const (
	CmdJoinRoom        = "join-room"
	CmdQueueSong       = "queue-song"
	CmdRemoveSong      = "remove-song-from-queue"
	CmdForcePlay       = "force-play-from-queue"
	CmdMoveSong        = "move-song-in-queue"
	CmdSkipSong        = "skip-song"
	CmdSkipToTimestamp = "skip-to-timestamp"
	CmdBecomeAdmin     = "become-admin"
	CmdChangeUser      = "change-user"
	CmdChangeUserState = "change-user-state"
	CmdSendChat        = "send-chat-message"
	CmdVote            = "vote-on-current-song"
)

// JoinMessage asks to join a room, optionally reclaiming an identity.
type JoinMessage struct {
	Room      string `json:"room"`
	Name      string `json:"name,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
	PrivateID string `json:"privateId,omitempty"`
}

// QueueSongMessage asks to queue the track behind a URL.
type QueueSongMessage struct {
	URL string `json:"url"`
}

// SkipToTimestampMessage asks to jump the current track to a position.
// AtTimestamp anchors the request against clock skew and replays; zero
// means "now".
type SkipToTimestampMessage struct {
	ToSeconds   float64 `json:"toSeconds"`
	AtTimestamp int64   `json:"atTimestamp,omitempty"`
}

// SongKeyMessage names a queued song.
type SongKeyMessage struct {
	Key string `json:"key"`
}

// MoveSongMessage asks to move a queued song to a zero-based position.
type MoveSongMessage struct {
	Key      string `json:"key"`
	Position int    `json:"position"`
}

// BecomeAdminMessage carries the shared admin secret.
type BecomeAdminMessage struct {
	Password string `json:"password"`
}

// ChatMessage is one chat line.
type ChatMessage struct {
	Message string `json:"message"`
}

// VoteMessage records a vote on the current song. A nil Vote retracts.
type VoteMessage struct {
	Vote *bool `json:"vote"`
}

// ChangeUserMessage updates display name and/or emoji.
type ChangeUserMessage struct {
	Name        string `json:"name,omitempty"`
	Emoji       string `json:"emoji,omitempty"`
	RandomEmoji bool   `json:"randomEmoji,omitempty"`
}

// ChangeUserStateMessage partially updates the reported user state.
type ChangeUserStateMessage struct {
	Listening *bool `json:"listening,omitempty"`
	Typing    *bool `json:"typing,omitempty"`
	Active    *bool `json:"active,omitempty"`
}

// notice is a private feedback message for one actor.
type notice struct {
	Message string
	IsError bool
}

func errNotice(message string) notice {
	return notice{Message: message, IsError: true}
}

func infoNotice(message string) notice {
	return notice{Message: message}
}
