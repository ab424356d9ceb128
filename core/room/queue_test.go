package room

import (
	"context"
	"strings"
	"testing"

	"syncthat/core/resolver"
	"syncthat/model"
)

func TestQueueSongRequiresAdmin(t *testing.T) {
	s, transport, _ := newTestSession()

	joinUser(t, s, "c1", "Henk")
	s.queueSong("c1", QueueSongMessage{URL: "u"})

	if msg := transport.lastNotice("c1"); msg != "Only admins can do that action." {
		t.Fatalf("expected admin rejection, got %q", msg)
	}
	if len(s.queue) != 0 {
		t.Fatal("queue must stay empty")
	}
}

func TestReadySongStartsPlayingImmediately(t *testing.T) {
	s, transport, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.results["u"] = readyResult("yt-a", "Banger", 180)

	queueURL(t, s, res, "c1", "u")

	if s.current == nil || s.current.Song.Key != "yt-a" {
		t.Fatal("ready song should start playing at once")
	}
	if len(s.queue) != 0 {
		t.Fatal("queue should be drained")
	}
	if s.current.Song.PlayedAt == 0 {
		t.Fatal("played-at stamp missing")
	}
	if s.endOfSong == nil {
		t.Fatal("end-of-song timer not armed")
	}
	if transport.broadcastCount(EventCurrentSong) == 0 {
		t.Fatal("current song was never broadcast")
	}
}

func TestPendingSongWaitsForDownload(t *testing.T) {
	s, _, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.results["u"] = pendingResult("yt-a", "Slow One", 180)

	queueURL(t, s, res, "c1", "u")

	if s.current != nil {
		t.Fatal("unfinished song must not play")
	}
	if len(s.queue) != 1 {
		t.Fatalf("expected one queued song, got %d", len(s.queue))
	}

	res.emit("yt-a", resolver.Update{Key: "yt-a", Progress: 40})
	if s.queue[0].DownloadProgress != 40 {
		t.Fatal("progress update not applied")
	}

	res.emit("yt-a", resolver.Update{Key: "yt-a", Progress: 100, Ready: true, WaveformGenerated: true})
	if s.current == nil || s.current.Song.Key != "yt-a" {
		t.Fatal("ready head should advance into the current slot")
	}
	if !s.current.Song.WaveformGenerated {
		t.Fatal("waveform flag lost on the shared song")
	}
}

func TestDuplicateSongRejected(t *testing.T) {
	s, transport, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.results["u"] = pendingResult("yt-a", "Slow One", 180)

	queueURL(t, s, res, "c1", "u")
	queueURL(t, s, res, "c1", "u")

	if len(s.queue) != 1 {
		t.Fatalf("expected one queued song, got %d", len(s.queue))
	}
	if msg := transport.lastNotice("c1"); msg != "Song is already in the queue" {
		t.Fatalf("expected duplicate rejection, got %q", msg)
	}
	if !res.cancelled["yt-a"] {
		t.Fatal("duplicate subscription not cancelled")
	}
}

func TestResolveFailureNotifiesRequester(t *testing.T) {
	s, transport, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.errs["bad"] = context.DeadlineExceeded

	queueURL(t, s, res, "c1", "bad")

	if len(s.queue) != 0 {
		t.Fatal("failed resolve must not queue anything")
	}
	if msg := transport.lastNotice("c1"); !strings.Contains(msg, "Unable to download the URL bad") {
		t.Fatalf("expected failure notice, got %q", msg)
	}
}

func TestFailedDownloadRemovesSong(t *testing.T) {
	s, transport, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.results["u"] = pendingResult("yt-a", "Doomed", 180)

	queueURL(t, s, res, "c1", "u")
	res.emit("yt-a", resolver.Update{Key: "yt-a", Progress: model.ProgressFailed})

	if len(s.queue) != 0 {
		t.Fatal("failed song must leave the queue")
	}
	if !res.cancelled["yt-a"] {
		t.Fatal("failed song subscription not cancelled")
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	found := false
	for _, b := range transport.broadcasts {
		if b.event == EventPrivateMessage {
			if entry, ok := b.payload.(model.LogEntry); ok && strings.Contains(entry.Message, "failed download") {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("the whole room should hear about the failed download")
	}
}

func TestSongKeptWhilePlayingSharesProgress(t *testing.T) {
	s, _, _ := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	song := &model.Song{Key: "yt-a", Title: "Live One", DurationInSeconds: 180, Ready: true, LikedDisliked: map[string]bool{}}
	s.current = model.NewCurrentSong(song)

	// Waveform finishing after playback started still lands on the song.
	s.applyProgress(resolver.Update{Key: "yt-a", Progress: 100, Ready: true, WaveformGenerated: true})
	if !song.WaveformGenerated {
		t.Fatal("current song did not receive the waveform update")
	}
}

func TestForcePlayJumpsTheQueue(t *testing.T) {
	s, _, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.results["a"] = readyResult("yt-a", "First", 180)
	res.results["b"] = readyResult("yt-b", "Second", 200)

	queueURL(t, s, res, "c1", "a") // starts playing
	queueURL(t, s, res, "c1", "b") // queued behind it

	s.forcePlayFromQueue("c1", "yt-b")

	if s.current == nil || s.current.Song.Key != "yt-b" {
		t.Fatal("force-played song is not current")
	}
	if len(s.played) != 1 || s.played[0].Key != "yt-a" {
		t.Fatal("interrupted song should land in the played list")
	}
	if s.played[0].StoppedAt == 0 {
		t.Fatal("interrupted song missing its stop stamp")
	}
}

func TestForcePlayRejectsUnreadySong(t *testing.T) {
	s, transport, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.results["u"] = pendingResult("yt-a", "Not Yet", 180)
	queueURL(t, s, res, "c1", "u")

	s.forcePlayFromQueue("c1", "yt-a")

	if s.current != nil {
		t.Fatal("unready song must not play")
	}
	if msg := transport.lastNotice("c1"); !strings.Contains(msg, "isn't ready") {
		t.Fatalf("expected readiness rejection, got %q", msg)
	}
}

func TestMoveSongInQueue(t *testing.T) {
	s, transport, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	for _, u := range []string{"a", "b", "c"} {
		res.results[u] = pendingResult("yt-"+u, strings.ToUpper(u), 100)
		queueURL(t, s, res, "c1", u)
	}

	s.moveSongInQueue("c1", "yt-c", 0)
	if s.queue[0].Key != "yt-c" || s.queue[1].Key != "yt-a" || s.queue[2].Key != "yt-b" {
		t.Fatalf("unexpected order after move: %s %s %s", s.queue[0].Key, s.queue[1].Key, s.queue[2].Key)
	}

	s.moveSongInQueue("c1", "yt-c", 0)
	if msg := transport.lastNotice("c1"); msg != "Song is already at that position." {
		t.Fatalf("expected same-position rejection, got %q", msg)
	}

	// Out-of-range target clamps to the end.
	s.moveSongInQueue("c1", "yt-c", 99)
	if s.queue[2].Key != "yt-c" {
		t.Fatal("expected clamped move to the tail")
	}
}

func TestRemoveSongFromQueue(t *testing.T) {
	s, transport, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.results["u"] = pendingResult("yt-a", "Garbage", 100)
	queueURL(t, s, res, "c1", "u")

	s.removeSongFromQueue("c1", "nope")
	if msg := transport.lastNotice("c1"); msg != "That song ain't in the queue." {
		t.Fatalf("expected unknown-key rejection, got %q", msg)
	}

	s.removeSongFromQueue("c1", "yt-a")
	if len(s.queue) != 0 {
		t.Fatal("song not removed")
	}
	if !res.cancelled["yt-a"] {
		t.Fatal("removal must cancel the progress subscription")
	}
}
