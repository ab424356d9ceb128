package room

import (
	"time"

	"syncthat/logger"
	"syncthat/model"
)

const (
	// endOfSongBufferMillis pads the computed track end.
	endOfSongBufferMillis = 1000
	// seekWindowMillis bounds how far a seek's anchor timestamp may drift
	// from the server clock.
	seekWindowMillis = 2000
	// maxPlayedSongs caps the most-recent-first played list.
	maxPlayedSongs = 20
)

// endOfSongDelay computes how long from now the current song runs,
// given its timeline reference point.
func endOfSongDelay(cs *model.CurrentSong, now time.Time) time.Duration {
	end := cs.EventTimestamp + int64(cs.Song.DurationInSeconds)*1000 + endOfSongBufferMillis
	millis := end - now.UnixMilli() - int64(cs.LastCurrentSeconds*1000)
	return time.Duration(millis) * time.Millisecond
}

// armEndOfSongTimer schedules the end-of-track transition, cancelling any
// previously armed timer. There is at most one live timer per room.
func (s *Session) armEndOfSongTimer() {
	if s.endOfSong != nil {
		s.endOfSong.Stop()
		s.endOfSong = nil
	}
	if s.current == nil {
		return
	}

	key := s.current.Song.Key
	delay := endOfSongDelay(s.current, time.Now())
	s.endOfSong = time.AfterFunc(delay, func() {
		s.post(func() { s.onEndOfSongTimer(key) })
	})

	logger.Debug("song end scheduled",
		logger.String("room", s.RoomID),
		logger.String("key", key),
		logger.Duration("in", delay))
}

// onEndOfSongTimer runs on the session loop when the armed timer fires. A
// stale firing (the track changed since arming) is ignored.
func (s *Session) onEndOfSongTimer(key string) {
	if s.current == nil || s.current.Song.Key != key {
		return
	}
	logger.Info("song has ended",
		logger.String("room", s.RoomID),
		logger.String("key", key))
	s.onCurrentSongEnd()
}

// onCurrentSongEnd retires the current track: stamps it, prepends it to
// the played list, clears the slot and tries to advance. Also the forced
// path used by skip and force-play.
func (s *Session) onCurrentSongEnd() {
	if s.current == nil {
		s.possiblyAdvance()
		return
	}

	song := s.current.Song
	song.StoppedAt = time.Now().UnixMilli()

	s.played = append([]*model.Song{song}, s.played...)
	if len(s.played) > maxPlayedSongs {
		s.played = s.played[:maxPlayedSongs]
	}
	s.broadcastPlayedSongs()

	s.current = nil
	if s.endOfSong != nil {
		s.endOfSong.Stop()
		s.endOfSong = nil
	}
	s.broadcastCurrentSong()

	s.possiblyAdvance()
}

// seek jumps the current track to a new position (admin only). The anchor
// timestamp guards against replays and client clock skew; positions in the
// final two seconds are rejected because the end transition is imminent.
func (s *Session) seek(conn model.ConnID, msg SkipToTimestampMessage) {
	if s.admin(conn) == nil {
		return
	}

	if s.current == nil {
		s.emitNotice(conn, errNotice("Nothing's playing right now..."))
		return
	}

	now := time.Now().UnixMilli()
	atTimestamp := msg.AtTimestamp
	if atTimestamp == 0 {
		atTimestamp = now
	}
	if atTimestamp < now-seekWindowMillis || atTimestamp > now+seekWindowMillis {
		s.emitNotice(conn, errNotice("Invalid timestamp given"))
		return
	}

	if msg.ToSeconds < 0 || msg.ToSeconds >= float64(s.current.Song.DurationInSeconds-2) {
		s.emitNotice(conn, errNotice("Ehh. That doesn't seem like a moment we can jump to."))
		return
	}

	s.current.LastCurrentSeconds = msg.ToSeconds
	s.current.EventTimestamp = atTimestamp
	s.armEndOfSongTimer()
	s.broadcastCurrentSong()

	logger.Info("seeked current song",
		logger.String("room", s.RoomID),
		logger.String("key", s.current.Song.Key),
		logger.Float64("toSeconds", msg.ToSeconds))
}
