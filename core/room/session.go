package room

import (
	"encoding/json"
	"time"

	"syncthat/core/resolver"
	"syncthat/logger"
	"syncthat/model"

	"github.com/google/uuid"
)

const (
	// presenceSweepInterval drives pruning of long-disconnected users.
	presenceSweepInterval = 15 * time.Second
	// activitySweepInterval drives recomputation of the active flags.
	activitySweepInterval = time.Second
	// logDecaySweepInterval drives the log retention sweep.
	logDecaySweepInterval = 10 * time.Minute
)

// Session is the authoritative engine for one room: queue, now-playing
// timeline, membership and log. All mutations run on a single loop, so
// inbound commands, sweeps, resolver callbacks and timer firings never
// interleave. Sessions live for the process lifetime.
type Session struct {
	RoomID string

	transport     Transport
	resolver      resolver.Resolver
	adminPassword string

	ops  chan func()
	done chan struct{}

	users   []*model.ConnectedUser
	queue   []*model.Song
	played  []*model.Song
	current *model.CurrentSong
	log     eventLog

	// subscriptions maps song keys to their resolver progress cancel.
	subscriptions map[string]resolver.CancelFunc

	// endOfSong is the single armed end-of-track timer, nil when idle.
	endOfSong *time.Timer
}

// NewSession creates a session for roomID. Call Start to begin processing.
func NewSession(roomID string, transport Transport, res resolver.Resolver, adminPassword string) *Session {
	return &Session{
		RoomID:        roomID,
		transport:     transport,
		resolver:      res,
		adminPassword: adminPassword,
		ops:           make(chan func(), 64),
		done:          make(chan struct{}),
		subscriptions: make(map[string]resolver.CancelFunc),
	}
}

// Start launches the session loop and its sweeps.
func (s *Session) Start() {
	go s.run()
}

// Stop terminates the session loop.
func (s *Session) Stop() {
	close(s.done)
}

// run is the per-room serialization point: one operation at a time, rooms
// fully independent of each other.
func (s *Session) run() {
	presence := time.NewTicker(presenceSweepInterval)
	activity := time.NewTicker(activitySweepInterval)
	decay := time.NewTicker(logDecaySweepInterval)
	defer func() {
		presence.Stop()
		activity.Stop()
		decay.Stop()
		if s.endOfSong != nil {
			s.endOfSong.Stop()
		}
	}()

	for {
		select {
		case op := <-s.ops:
			op()
		case <-presence.C:
			s.sweepPresence()
		case <-activity.C:
			s.sweepActivity()
		case <-decay.C:
			s.sweepLog()
		case <-s.done:
			return
		}
	}
}

// post schedules an operation onto the session loop.
func (s *Session) post(op func()) {
	select {
	case s.ops <- op:
	case <-s.done:
	}
}

// ========== public command surface ==========

// Join processes a join-room command for conn.
func (s *Session) Join(conn model.ConnID, msg JoinMessage) {
	s.post(func() { s.join(conn, msg) })
}

// Disconnect records that conn went away.
func (s *Session) Disconnect(conn model.ConnID) {
	s.post(func() { s.disconnect(conn) })
}

// HandleCommand decodes and runs one inbound command on the session loop.
func (s *Session) HandleCommand(conn model.ConnID, event string, data json.RawMessage) {
	s.post(func() { s.handleCommand(conn, event, data) })
}

// UserCount reports how many users the room currently tracks.
func (s *Session) UserCount() int {
	reply := make(chan int, 1)
	s.post(func() { reply <- len(s.users) })
	select {
	case n := <-reply:
		return n
	case <-s.done:
		return 0
	}
}

// handleCommand dispatches one decoded command. Every command counts as
// user activity.
func (s *Session) handleCommand(conn model.ConnID, event string, data json.RawMessage) {
	s.touch(conn)

	switch event {
	case CmdQueueSong:
		var msg QueueSongMessage
		if s.decode(conn, event, data, &msg) {
			s.queueSong(conn, msg)
		}
	case CmdRemoveSong:
		var msg SongKeyMessage
		if s.decode(conn, event, data, &msg) {
			s.removeSongFromQueue(conn, msg.Key)
		}
	case CmdForcePlay:
		var msg SongKeyMessage
		if s.decode(conn, event, data, &msg) {
			s.forcePlayFromQueue(conn, msg.Key)
		}
	case CmdMoveSong:
		var msg MoveSongMessage
		if s.decode(conn, event, data, &msg) {
			s.moveSongInQueue(conn, msg.Key, msg.Position)
		}
	case CmdSkipSong:
		s.skip(conn)
	case CmdSkipToTimestamp:
		var msg SkipToTimestampMessage
		if s.decode(conn, event, data, &msg) {
			s.seek(conn, msg)
		}
	case CmdBecomeAdmin:
		var msg BecomeAdminMessage
		if s.decode(conn, event, data, &msg) {
			s.becomeAdmin(conn, msg.Password)
		}
	case CmdChangeUser:
		var msg ChangeUserMessage
		if s.decode(conn, event, data, &msg) {
			s.changeUser(conn, msg)
		}
	case CmdChangeUserState:
		var msg ChangeUserStateMessage
		if s.decode(conn, event, data, &msg) {
			s.changeUserState(conn, msg)
		}
	case CmdSendChat:
		var msg ChatMessage
		if s.decode(conn, event, data, &msg) {
			s.chat(conn, msg)
		}
	case CmdVote:
		var msg VoteMessage
		if s.decode(conn, event, data, &msg) {
			s.vote(conn, msg.Vote)
		}
	default:
		logger.Warn("unknown room command",
			logger.String("room", s.RoomID),
			logger.String("event", event))
	}
}

func (s *Session) decode(conn model.ConnID, event string, data json.RawMessage, into any) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, into); err != nil {
		logger.Warn("invalid command payload",
			logger.ErrorField(err),
			logger.String("room", s.RoomID),
			logger.String("event", event))
		s.emitNotice(conn, errNotice("That message made no sense to me."))
		return false
	}
	return true
}

// ========== lookup helpers ==========

// findUser resolves a connection to its user, nil when unknown.
func (s *Session) findUser(conn model.ConnID) *model.ConnectedUser {
	for _, u := range s.users {
		if u.Conn == conn && conn != "" {
			return u
		}
	}
	return nil
}

// admin resolves a connection to its user if that user is an admin,
// emitting the generic authorization notice otherwise.
func (s *Session) admin(conn model.ConnID) *model.ConnectedUser {
	user := s.findUser(conn)
	if user != nil && user.Admin {
		return user
	}
	s.emitNotice(conn, errNotice("Only admins can do that action."))
	return nil
}

// findQueuedSong looks a song up in the queue by key, with a private
// notice when absent.
func (s *Session) findQueuedSong(conn model.ConnID, key string) *model.Song {
	for _, song := range s.queue {
		if song.Key == key {
			return song
		}
	}
	s.emitNotice(conn, errNotice("That song ain't in the queue."))
	return nil
}

// touch stamps activity for the user behind conn and rebroadcasts the
// roster when the active flag flips back on.
func (s *Session) touch(conn model.ConnID) {
	user := s.findUser(conn)
	if user == nil {
		return
	}
	user.Touch()
	if user.UpdateActive(user.DetermineActive()) {
		s.broadcastUsers()
	}
}

// ========== broadcast helpers ==========

func (s *Session) broadcastUsers() {
	roster := make([]model.PublicUser, 0, len(s.users))
	for _, u := range s.users {
		roster = append(roster, u.PublicData())
	}
	s.transport.Broadcast(s.RoomID, EventUsers, roster)
}

func (s *Session) broadcastQueue() {
	s.transport.Broadcast(s.RoomID, EventQueue, s.queue)
}

func (s *Session) broadcastPlayedSongs() {
	s.transport.Broadcast(s.RoomID, EventPlayedSongs, s.played)
}

func (s *Session) broadcastCurrentSong() {
	s.transport.Broadcast(s.RoomID, EventCurrentSong, s.current)
}

func (s *Session) broadcastLog() {
	s.transport.Broadcast(s.RoomID, EventLog, s.log.snapshot())
}

// emitNotice sends a private feedback entry to one connection.
func (s *Session) emitNotice(conn model.ConnID, n notice) {
	emoji := "✅"
	if n.IsError {
		emoji = "❌"
	}
	s.transport.Send(conn, EventPrivateMessage, model.LogEntry{
		ID:               uuid.NewString(),
		Type:             model.LogTypeNotification,
		Timestamp:        time.Now().UnixMilli(),
		NotificationType: model.NotifyPrivateMessage,
		Message:          n.Message,
		Emoji:            emoji,
	})
}

// broadcastNotice sends a room-wide feedback entry, for failures the whole
// room was already shown (for example a pending download gone bad).
func (s *Session) broadcastNotice(n notice) {
	emoji := "✅"
	if n.IsError {
		emoji = "❌"
	}
	s.transport.Broadcast(s.RoomID, EventPrivateMessage, model.LogEntry{
		ID:               uuid.NewString(),
		Type:             model.LogTypeNotification,
		Timestamp:        time.Now().UnixMilli(),
		NotificationType: model.NotifyPrivateMessage,
		Message:          n.Message,
		Emoji:            emoji,
	})
}

// addNotificationToLog appends a server notification and rebroadcasts the log.
func (s *Session) addNotificationToLog(message string, notifyType model.NotificationType, emoji string) {
	logger.Info(message, logger.String("room", s.RoomID))
	s.addToLog(model.LogEntry{
		ID:               uuid.NewString(),
		Type:             model.LogTypeNotification,
		Timestamp:        time.Now().UnixMilli(),
		NotificationType: notifyType,
		Message:          message,
		Emoji:            emoji,
	})
}

func (s *Session) addToLog(entry model.LogEntry) {
	s.log.append(entry)
	s.broadcastLog()
}

// sweepLog drops log entries past the retention window.
func (s *Session) sweepLog() {
	if s.log.decay(time.Now()) {
		s.broadcastLog()
	}
}
