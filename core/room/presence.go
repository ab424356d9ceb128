package room

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"syncthat/logger"
	"syncthat/model"

	"github.com/google/uuid"
)

// timeTillKick is how long a user may stay disconnected before the
// presence sweep removes them.
const timeTillKick = 60 * time.Second

// join handles a (possibly reconnecting) user entering the room.
//
// A privateId matching an already-connected user rejects the new
// connection and leaves the existing session untouched. A privateId
// matching a disconnected user reattaches. Anything else creates a fresh
// identity.
func (s *Session) join(conn model.ConnID, msg JoinMessage) {
	var user *model.ConnectedUser
	if msg.PrivateID != "" {
		for _, u := range s.users {
			if u.PrivateID == msg.PrivateID {
				user = u
				break
			}
		}
	}

	if user != nil {
		if user.IsConnected() {
			s.transport.Send(conn, EventAlreadyConnected, nil)
			s.transport.Disconnect(conn)
			logger.Info("rejected duplicate session",
				logger.String("room", s.RoomID),
				logger.String("publicId", user.PublicID))
			return
		}

		user.Conn = conn
		user.DisconnectedSince = 0
		user.Touch()
		if msg.Name != "" {
			user.Name = msg.Name
		}
		if msg.Emoji != "" {
			if emoji, ok := normalizeEmoji(msg.Emoji); ok {
				user.Emoji = emoji
			}
		}

		logger.Info("user rejoined the room",
			logger.String("room", s.RoomID),
			logger.String("publicId", user.PublicID),
			logger.String("name", user.Name))
	} else {
		name := msg.Name
		if name == "" {
			name = generateName()
		}
		user = model.NewConnectedUser(conn, uuid.NewString(), uuid.NewString(), name, randomEmoji())
		s.users = append(s.users, user)

		s.addNotificationToLog(fmt.Sprintf("[%s] is now in sync.", user.Name), model.NotifyUserJoin, "🙌")
		logger.Info("new user joined the room",
			logger.String("room", s.RoomID),
			logger.String("publicId", user.PublicID),
			logger.String("name", user.Name))
	}

	// Private identity first, then the roster, then the full room snapshot
	// for the joining connection only.
	s.transport.Join(s.RoomID, conn)
	s.transport.Send(conn, EventYou, user.PrivateData())
	s.broadcastUsers()
	s.transport.Send(conn, EventCurrentSong, s.current)
	s.transport.Send(conn, EventQueue, s.queue)
	s.transport.Send(conn, EventPlayedSongs, s.played)
	s.transport.Send(conn, EventLog, s.log.snapshot())
}

// disconnect clears the connection handle but keeps the user record; the
// presence sweep decides about removal later.
func (s *Session) disconnect(conn model.ConnID) {
	user := s.findUser(conn)
	if user == nil {
		return
	}

	user.Conn = ""
	user.DisconnectedSince = time.Now().UnixMilli()
	s.broadcastUsers()

	logger.Info("user disconnected",
		logger.String("room", s.RoomID),
		logger.String("publicId", user.PublicID))
}

// sweepPresence prunes users disconnected past the kick threshold. Users
// with a song in the current slot or the queue are protected: pruning them
// would orphan DJ attribution.
func (s *Session) sweepPresence() {
	kickBefore := time.Now().Add(-timeTillKick).UnixMilli()

	protected := make(map[string]bool)
	for _, song := range s.queue {
		protected[song.RequestedBy] = true
	}
	if s.current != nil {
		protected[s.current.Song.RequestedBy] = true
	}

	kept := s.users[:0]
	var removed []*model.ConnectedUser
	for _, user := range s.users {
		if user.DisconnectedSince == 0 || user.DisconnectedSince > kickBefore || protected[user.PublicID] {
			kept = append(kept, user)
		} else {
			removed = append(removed, user)
		}
	}

	if len(removed) == 0 {
		return
	}

	s.users = kept
	for _, user := range removed {
		s.addNotificationToLog(fmt.Sprintf("[%s] is no longer a cool kid. Bye!", user.Name), model.NotifyUserLeave, "🤏")
	}
	s.broadcastUsers()
}

// sweepActivity recomputes the active flag of every user and rebroadcasts
// the roster when anything flipped.
func (s *Session) sweepActivity() {
	updated := false
	for _, user := range s.users {
		if user.UpdateActive(user.DetermineActive()) {
			updated = true
		}
	}
	if updated {
		s.broadcastUsers()
	}
}

// changeUser applies a name and/or emoji change.
func (s *Session) changeUser(conn model.ConnID, msg ChangeUserMessage) {
	user := s.findUser(conn)
	if user == nil {
		return
	}

	changed := false

	if msg.Name != "" {
		oldName := user.Name
		newName := strings.TrimSpace(msg.Name)

		if utf8.RuneCountInString(newName) > 40 || newName == "" {
			s.emitNotice(conn, errNotice("How about a normal name?"))
			return
		}
		if oldName == newName {
			s.emitNotice(conn, errNotice("This name is already taken. By you, you idiot."))
			return
		}
		if !s.isNameAvailable(newName, user.PublicID) {
			s.emitNotice(conn, errNotice("This name is already taken?"))
			return
		}

		user.Name = newName
		changed = true

		s.addNotificationToLog(fmt.Sprintf("RIP in pieces [%s]. Welcome [%s].", oldName, newName), model.NotifyUserChangedName, "🐒")
	}

	if msg.Emoji != "" || msg.RandomEmoji {
		if msg.RandomEmoji {
			user.Emoji = randomEmoji()
		} else {
			emoji, ok := normalizeEmoji(msg.Emoji)
			if !ok {
				s.emitNotice(conn, errNotice("Don't know nothing bout that \"emoji\"."))
				return
			}
			if emoji == user.Emoji {
				s.emitNotice(conn, errNotice(fmt.Sprintf("%s is already taken. By you, you idiot.", emoji)))
				return
			}
			user.Emoji = emoji
		}
		changed = true
	}

	if changed {
		s.transport.Send(conn, EventYou, user.PrivateData())
		s.broadcastUsers()
	}
}

// changeUserState applies partial updates to the reported state flags.
func (s *Session) changeUserState(conn model.ConnID, msg ChangeUserStateMessage) {
	user := s.findUser(conn)
	if user == nil {
		return
	}

	changed := false
	if msg.Listening != nil && user.State.Listening != *msg.Listening {
		user.State.Listening = *msg.Listening
		changed = true
	}
	if msg.Typing != nil && user.State.Typing != *msg.Typing {
		user.State.Typing = *msg.Typing
		changed = true
	}
	if msg.Active != nil && user.State.Active != *msg.Active {
		user.State.Active = *msg.Active
		changed = true
	}

	if changed {
		s.broadcastUsers()
	}
}

// isNameAvailable reports whether a display name is free, case-insensitively,
// among all tracked users except the one given.
func (s *Session) isNameAvailable(name string, excludePublicID string) bool {
	for _, user := range s.users {
		if user.PublicID != excludePublicID && strings.EqualFold(user.Name, name) {
			return false
		}
	}
	return true
}
