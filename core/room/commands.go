package room

import (
	"fmt"
	"time"
	"unicode/utf8"

	"syncthat/logger"
	"syncthat/model"

	"github.com/google/uuid"
)

// maxChatLength bounds a single chat message.
const maxChatLength = 1000

// skip ends the current track early. Admins may always skip; everyone else
// only their own request.
func (s *Session) skip(conn model.ConnID) {
	user := s.findUser(conn)
	if user == nil {
		return
	}

	if s.current == nil {
		s.emitNotice(conn, errNotice("Nothing is playing right now."))
		return
	}
	if !user.Admin && s.current.Song.RequestedBy != user.PublicID {
		s.emitNotice(conn, errNotice("You can only skip your own tracks.."))
		return
	}

	// TODO: change the message when the track had upvotes.
	s.addNotificationToLog(fmt.Sprintf("Classic. [%s] has skipped the current track!", user.Name), model.NotifySongSkipped, "🕺")
	s.onCurrentSongEnd()
}

// becomeAdmin grants ephemeral admin authority against the shared secret.
// The rejection is deliberately uninformative.
func (s *Session) becomeAdmin(conn model.ConnID, password string) {
	user := s.findUser(conn)
	if user == nil {
		return
	}

	if user.Admin {
		s.emitNotice(conn, infoNotice("You're already an admin!"))
		return
	}

	if password == s.adminPassword {
		user.Admin = true
		s.broadcastUsers()
		s.transport.Send(conn, EventYou, user.PrivateData())
		s.emitNotice(conn, infoNotice("You're an admin now!"))
		logger.Info("user became admin",
			logger.String("room", s.RoomID),
			logger.String("publicId", user.PublicID))
	} else {
		s.emitNotice(conn, errNotice("Nope."))
		logger.Warn("failed admin attempt",
			logger.String("room", s.RoomID),
			logger.String("publicId", user.PublicID))
	}
}

// vote records, overwrites or retracts (nil) the user's vote on the
// current song. Re-casting the identical vote is rejected as a no-op.
func (s *Session) vote(conn model.ConnID, value *bool) {
	user := s.findUser(conn)
	if user == nil {
		return
	}

	if s.current == nil {
		s.emitNotice(conn, errNotice("Nothing is playing right now. You can't vote on nothing."))
		return
	}

	song := s.current.Song
	existing, hasVote := song.LikedDisliked[user.PublicID]
	same := (value == nil && !hasVote) || (value != nil && hasVote && existing == *value)
	if same {
		s.emitNotice(conn, errNotice("That is already your current vote."))
		return
	}

	if value == nil {
		delete(song.LikedDisliked, user.PublicID)
	} else {
		song.LikedDisliked[user.PublicID] = *value
	}
	s.broadcastCurrentSong()

	choice := "nothing"
	if value != nil {
		if *value {
			choice = "Yay"
		} else {
			choice = "Nay"
		}
	}
	s.emitNotice(conn, infoNotice(fmt.Sprintf("You voted %q", choice)))
}

// chat appends a chat message to the log and clears the typing flag.
func (s *Session) chat(conn model.ConnID, msg ChatMessage) {
	user := s.findUser(conn)
	if user == nil {
		return
	}

	if utf8.RuneCountInString(msg.Message) > maxChatLength {
		s.emitNotice(conn, errNotice("Hou die verhalen lekker voor je maat"))
		return
	}

	s.addToLog(model.LogEntry{
		ID:        uuid.NewString(),
		Type:      model.LogTypeChatMessage,
		Timestamp: time.Now().UnixMilli(),
		ByID:      user.PublicID,
		Name:      user.Name,
		Message:   msg.Message,
	})

	user.State.Typing = false
	s.broadcastUsers()
}
