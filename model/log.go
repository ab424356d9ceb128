package model

// LogEntryType tags the two kinds of room log entries.
type LogEntryType string

const (
	LogTypeChatMessage  LogEntryType = "chat-message"
	LogTypeNotification LogEntryType = "notification"
)

// NotificationType classifies server-generated notifications.
type NotificationType string

const (
	NotifyUserJoin        NotificationType = "user-join"
	NotifyUserLeave       NotificationType = "user-leave"
	NotifyUserChangedName NotificationType = "user-changed-name"
	NotifySongQueued      NotificationType = "song-added-to-queue"
	NotifySongSkipped     NotificationType = "song-force-skipped"
	NotifySongForcePlayed NotificationType = "song-force-played"
	NotifyPrivateMessage  NotificationType = "private-message"
)

// LogEntry is one entry of the room chat/notification log. Chat fields and
// notification fields are mutually exclusive, discriminated by Type.
type LogEntry struct {
	ID        string       `json:"id"`
	Type      LogEntryType `json:"type"`
	Timestamp int64        `json:"timestamp"`

	// Chat message fields.
	ByID    string `json:"byId,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`

	// Notification fields.
	NotificationType NotificationType `json:"notificationType,omitempty"`
	Emoji            string           `json:"emoji,omitempty"`
}
