package model

import (
	"testing"
	"time"
)

func TestActivityTracking(t *testing.T) {
	u := NewConnectedUser("c1", "priv", "pub", "Henk", "🎧")

	if !u.DetermineActive() {
		t.Fatal("a fresh user is active")
	}

	u.LastActivity = time.Now().Add(-TimeTillInactive - time.Second).UnixMilli()
	if u.DetermineActive() {
		t.Fatal("a silent user goes inactive")
	}

	if !u.UpdateActive(false) {
		t.Fatal("flipping the flag must report a change")
	}
	if u.UpdateActive(false) {
		t.Fatal("setting the same value must not report a change")
	}

	u.Touch()
	if !u.DetermineActive() {
		t.Fatal("touch must restore activity")
	}
}

func TestPublicDataHidesPrivateID(t *testing.T) {
	u := NewConnectedUser("c1", "priv", "pub", "Henk", "🎧")
	u.State.Typing = true

	pub := u.PublicData()
	if pub.ID != "pub" || !pub.State.Connected || !pub.State.Typing {
		t.Fatalf("unexpected public view: %+v", pub)
	}

	u.Conn = ""
	u.DisconnectedSince = time.Now().UnixMilli()
	if u.PublicData().State.Connected {
		t.Fatal("disconnected user reported as connected")
	}

	priv := u.PrivateData()
	if priv.PrivateID != "priv" || priv.PublicID != "pub" {
		t.Fatalf("unexpected private view: %+v", priv)
	}
}

func TestNewCurrentSongStartsInTheFuture(t *testing.T) {
	song := NewSong("yt-a", "Track", true, 180, true, SongInfo{}, "pub")
	before := time.Now().UnixMilli()
	cs := NewCurrentSong(song)

	if cs.EventTimestamp < before+StartBufferMillis-50 {
		t.Fatalf("timeline should start about %dms ahead, got offset %d", StartBufferMillis, cs.EventTimestamp-before)
	}
	if !cs.Playing {
		t.Fatal("a fresh current song plays")
	}
	if cs.LastCurrentSeconds != 0 {
		t.Fatal("playback starts at zero seconds")
	}
}
