package room

import (
	"context"
	"fmt"
	"time"

	"syncthat/core/resolver"
	"syncthat/logger"
	"syncthat/model"
)

// queueSong resolves a URL and appends the resulting song to the queue
// (admin only). The metadata probe runs off the loop; everything that
// touches room state comes back through post.
func (s *Session) queueSong(conn model.ConnID, msg QueueSongMessage) {
	user := s.admin(conn)
	if user == nil {
		return
	}

	s.emitNotice(conn, infoNotice("Fetching metadata for URL"))

	requestedBy := user.PublicID
	requestedName := user.Name

	go func() {
		result, cancel, err := s.resolver.Resolve(context.Background(), msg.URL, func(upd resolver.Update) {
			s.post(func() { s.applyProgress(upd) })
		})
		s.post(func() { s.finishQueueSong(conn, msg.URL, requestedBy, requestedName, result, cancel, err) })
	}()
}

// finishQueueSong runs on the session loop once the resolver produced
// metadata (or failed to).
func (s *Session) finishQueueSong(conn model.ConnID, url, requestedBy, requestedName string, result *resolver.Result, cancel resolver.CancelFunc, err error) {
	if err != nil || result == nil {
		if cancel != nil {
			cancel()
		}
		logger.Warn("song resolution failed",
			logger.ErrorField(err),
			logger.String("room", s.RoomID),
			logger.String("url", url))
		s.emitNotice(conn, errNotice(fmt.Sprintf("Unable to download the URL %s", url)))
		return
	}

	if s.songByKey(result.Key) != nil {
		cancel()
		s.emitNotice(conn, errNotice("Song is already in the queue"))
		return
	}

	song := model.NewSong(result.Key, result.Title, result.Ready, result.DurationInSeconds, result.WaveformGenerated, result.SongInfo, requestedBy)
	song.DownloadProgress = result.Progress
	s.queue = append(s.queue, song)
	s.subscriptions[song.Key] = cancel
	s.broadcastQueue()

	logger.Info("song queued",
		logger.String("room", s.RoomID),
		logger.String("key", song.Key),
		logger.String("title", song.Title))

	// Progress reported between the resolve snapshot and this append went
	// nowhere; fold in the latest state before anyone notices.
	if upd := s.resolver.Status(song.Key); upd != nil {
		s.applyProgress(*upd)
	}

	s.addNotificationToLog(fmt.Sprintf("[%s] has queued [%s]!", requestedName, song.Title), model.NotifySongQueued, "🕺")
	s.possiblyAdvance()
}

// applyProgress folds one resolver update into the matching song. The song
// instance is shared between queue and current slot, so the mutation is
// visible in both. When the song is gone the subscription unsubscribes
// itself.
func (s *Session) applyProgress(upd resolver.Update) {
	song := s.songByKey(upd.Key)
	if song == nil {
		if cancel, ok := s.subscriptions[upd.Key]; ok {
			cancel()
			delete(s.subscriptions, upd.Key)
		}
		return
	}

	if upd.Progress == model.ProgressFailed {
		s.removeFromQueueByKey(upd.Key)
		s.broadcastQueue()
		s.broadcastNotice(errNotice(fmt.Sprintf("Song %q has been removed due to a failed download", song.Title)))
		logger.Warn("song removed after failed download",
			logger.String("room", s.RoomID),
			logger.String("key", upd.Key))
		s.possiblyAdvance()
		return
	}

	song.DownloadProgress = upd.Progress
	song.WaveformGenerated = upd.WaveformGenerated
	song.Ready = upd.Ready
	s.broadcastQueue()

	if upd.Ready {
		s.possiblyAdvance()
	}

	if s.current != nil && s.current.Song.Key == upd.Key {
		s.broadcastCurrentSong()
	}
}

// removeSongFromQueue removes a song by key (admin only).
func (s *Session) removeSongFromQueue(conn model.ConnID, key string) {
	user := s.admin(conn)
	if user == nil {
		return
	}

	song := s.findQueuedSong(conn, key)
	if song == nil {
		return
	}

	s.removeFromQueueByKey(key)
	s.broadcastQueue()
	s.addNotificationToLog(
		fmt.Sprintf("[%s] is literally wasting my bandwidth! [%s] has been removed from the queue.", user.Name, song.Title),
		model.NotifySongSkipped, "🕺")
}

// forcePlayFromQueue promotes a ready song to the queue head and force-ends
// the current track so advancement picks it up next (admin only). The
// reorder is silent: the queue broadcast comes from the advancement that
// immediately consumes the head.
func (s *Session) forcePlayFromQueue(conn model.ConnID, key string) {
	user := s.admin(conn)
	if user == nil {
		return
	}

	song := s.findQueuedSong(conn, key)
	if song == nil {
		return
	}

	if !song.Ready {
		s.emitNotice(conn, errNotice("This song isn't ready to be played yet. Wait for the download to finish!"))
		return
	}

	if s.queue[0] != song {
		s.spliceOutByKey(key)
		s.queue = append([]*model.Song{song}, s.queue...)
	}

	s.onCurrentSongEnd()
	s.addNotificationToLog(
		fmt.Sprintf("Hi, my name is [%s]. I have no respect for the queue so I'm now playing [%s].", user.Name, song.Title),
		model.NotifySongForcePlayed, "🖕")
}

// moveSongInQueue moves a queued song to a clamped zero-based position
// (admin only).
func (s *Session) moveSongInQueue(conn model.ConnID, key string, position int) {
	if s.admin(conn) == nil {
		return
	}

	song := s.findQueuedSong(conn, key)
	if song == nil {
		return
	}

	index := s.queueIndex(key)
	if index == position {
		s.emitNotice(conn, errNotice("Song is already at that position."))
		return
	}

	s.spliceOutByKey(key)
	if position < 0 {
		position = 0
	}
	if position > len(s.queue) {
		position = len(s.queue)
	}
	rest := append([]*model.Song{song}, s.queue[position:]...)
	s.queue = append(s.queue[:position], rest...)
	s.broadcastQueue()
}

// possiblyAdvance pops the queue head into the current slot when the room
// is idle and the head finished downloading. The timeline starts one
// propagation buffer in the future so clients can prepare.
func (s *Session) possiblyAdvance() {
	if s.current != nil {
		return
	}
	if len(s.queue) == 0 {
		return
	}

	song := s.queue[0]
	if !song.Ready {
		// Still waiting for the download to finish.
		return
	}

	s.queue = s.queue[1:]
	s.broadcastQueue()

	song.PlayedAt = time.Now().UnixMilli()
	s.current = model.NewCurrentSong(song)
	s.broadcastCurrentSong()
	s.armEndOfSongTimer()

	logger.Info("now playing",
		logger.String("room", s.RoomID),
		logger.String("key", song.Key),
		logger.String("title", song.Title))
}

// ========== queue helpers ==========

// songByKey finds a song anywhere it may live: the queue or the current slot.
func (s *Session) songByKey(key string) *model.Song {
	for _, song := range s.queue {
		if song.Key == key {
			return song
		}
	}
	if s.current != nil && s.current.Song.Key == key {
		return s.current.Song
	}
	return nil
}

func (s *Session) queueIndex(key string) int {
	for i, song := range s.queue {
		if song.Key == key {
			return i
		}
	}
	return -1
}

func (s *Session) spliceOutByKey(key string) {
	kept := s.queue[:0]
	for _, song := range s.queue {
		if song.Key != key {
			kept = append(kept, song)
		}
	}
	s.queue = kept
}

// removeFromQueueByKey drops the song and its progress subscription.
func (s *Session) removeFromQueueByKey(key string) {
	s.spliceOutByKey(key)
	if cancel, ok := s.subscriptions[key]; ok {
		cancel()
		delete(s.subscriptions, key)
	}
}
