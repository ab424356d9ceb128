package room

import (
	"strings"
	"testing"
	"time"

	"syncthat/model"
)

func TestEndOfSongDelay(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	cs := &model.CurrentSong{
		Song:           &model.Song{Key: "yt-a", DurationInSeconds: 180},
		EventTimestamp: 1_000_000,
	}

	if got := endOfSongDelay(cs, now); got != 181*time.Second {
		t.Fatalf("expected 181s from the start, got %v", got)
	}

	// A seek to 170s leaves 10s of track plus the end buffer.
	cs.LastCurrentSeconds = 170
	if got := endOfSongDelay(cs, now); got != 11*time.Second {
		t.Fatalf("expected 11s after seek, got %v", got)
	}

	// Time already past the reference point shortens the delay.
	cs.LastCurrentSeconds = 0
	if got := endOfSongDelay(cs, time.UnixMilli(1_060_000)); got != 121*time.Second {
		t.Fatalf("expected 121s one minute in, got %v", got)
	}
}

func TestStaleEndTimerIgnored(t *testing.T) {
	s, _, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.results["u"] = readyResult("yt-a", "Track", 180)
	queueURL(t, s, res, "c1", "u")

	s.onEndOfSongTimer("yt-old")
	if s.current == nil || s.current.Song.Key != "yt-a" {
		t.Fatal("a stale timer firing must not end the current track")
	}

	s.onEndOfSongTimer("yt-a")
	if s.current != nil {
		t.Fatal("a matching timer firing must end the track")
	}
}

func TestPlayedListIsCapped(t *testing.T) {
	s, _, _ := newTestSession()

	for i := 0; i < maxPlayedSongs; i++ {
		s.played = append(s.played, &model.Song{Key: "old"})
	}
	s.current = model.NewCurrentSong(&model.Song{Key: "yt-new", DurationInSeconds: 1, LikedDisliked: map[string]bool{}})

	s.onCurrentSongEnd()

	if len(s.played) != maxPlayedSongs {
		t.Fatalf("played list grew past the cap: %d", len(s.played))
	}
	if s.played[0].Key != "yt-new" {
		t.Fatal("newest track should be first in the played list")
	}
}

func TestSeekValidation(t *testing.T) {
	s, transport, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")

	s.seek("c1", SkipToTimestampMessage{ToSeconds: 10})
	if msg := transport.lastNotice("c1"); !strings.Contains(msg, "Nothing's playing") {
		t.Fatalf("expected idle rejection, got %q", msg)
	}

	res.results["u"] = readyResult("yt-a", "Track", 180)
	queueURL(t, s, res, "c1", "u")

	s.seek("c1", SkipToTimestampMessage{ToSeconds: 10, AtTimestamp: time.Now().UnixMilli() - 3*seekWindowMillis})
	if msg := transport.lastNotice("c1"); msg != "Invalid timestamp given" {
		t.Fatalf("expected stale-timestamp rejection, got %q", msg)
	}

	s.seek("c1", SkipToTimestampMessage{ToSeconds: 179})
	if msg := transport.lastNotice("c1"); !strings.Contains(msg, "doesn't seem like a moment") {
		t.Fatalf("expected near-end rejection, got %q", msg)
	}

	s.seek("c1", SkipToTimestampMessage{ToSeconds: -1})
	if msg := transport.lastNotice("c1"); !strings.Contains(msg, "doesn't seem like a moment") {
		t.Fatalf("expected negative rejection, got %q", msg)
	}
}

func TestSeekMovesTheTimeline(t *testing.T) {
	s, transport, res := newTestSession()

	joinAdmin(t, s, "c1", "Henk")
	res.results["u"] = readyResult("yt-a", "Track", 180)
	queueURL(t, s, res, "c1", "u")

	before := transport.broadcastCount(EventCurrentSong)
	s.seek("c1", SkipToTimestampMessage{ToSeconds: 42})

	if s.current.LastCurrentSeconds != 42 {
		t.Fatalf("expected position 42, got %v", s.current.LastCurrentSeconds)
	}
	if transport.broadcastCount(EventCurrentSong) != before+1 {
		t.Fatal("seek must rebroadcast the timeline")
	}
}

func TestSeekRequiresAdmin(t *testing.T) {
	s, transport, _ := newTestSession()

	joinUser(t, s, "c1", "Guest")
	s.seek("c1", SkipToTimestampMessage{ToSeconds: 10})

	if msg := transport.lastNotice("c1"); msg != "Only admins can do that action." {
		t.Fatalf("expected admin rejection, got %q", msg)
	}
}
