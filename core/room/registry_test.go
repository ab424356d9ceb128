package room

import (
	"encoding/json"
	"testing"
	"time"

	"syncthat/model"
)

func newTestRegistry(t *testing.T) (*Registry, *fakeTransport, *fakeResolver) {
	t.Helper()
	transport := &fakeTransport{}
	res := newFakeResolver()
	r := NewRegistry([]string{"den", "attic"}, transport, res, testPassword)
	r.Start()
	t.Cleanup(r.Stop)
	return r, transport, res
}

// waitFor polls a loop-owned condition through the session's own queue.
func waitFor(t *testing.T, s *Session, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		reply := make(chan bool, 1)
		s.post(func() { reply <- cond() })
		if <-reply {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDispatchUnknownRoomDisconnects(t *testing.T) {
	r, transport, _ := newTestRegistry(t)

	r.Dispatch("c1", CmdJoinRoom, mustJSON(t, JoinMessage{Room: "basement"}))

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.disconnected) != 1 || transport.disconnected[0] != "c1" {
		t.Fatalf("expected c1 disconnected, got %v", transport.disconnected)
	}
}

func TestDispatchBeforeJoinDisconnects(t *testing.T) {
	r, transport, _ := newTestRegistry(t)

	r.Dispatch("c1", CmdSendChat, mustJSON(t, ChatMessage{Message: "hoi"}))

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.disconnected) != 1 {
		t.Fatal("commands without a prior join must drop the connection")
	}
}

func TestJoinMovesConnectionBetweenRooms(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	den := r.Rooms()["den"]
	attic := r.Rooms()["attic"]

	r.Dispatch("c1", CmdJoinRoom, mustJSON(t, JoinMessage{Room: "den", Name: "Henk"}))
	waitFor(t, den, func() bool { return den.findUser("c1") != nil })

	r.Dispatch("c1", CmdJoinRoom, mustJSON(t, JoinMessage{Room: "attic", Name: "Henk"}))
	waitFor(t, attic, func() bool { return attic.findUser("c1") != nil })
	waitFor(t, den, func() bool {
		u := den.findUser("c1")
		return u == nil
	})

	// The old room keeps the record without a live connection.
	waitFor(t, den, func() bool {
		return len(den.users) == 1 && den.users[0].DisconnectedSince != 0
	})
}

func TestCommandsRouteThroughTheLoop(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	den := r.Rooms()["den"]

	r.Dispatch("c1", CmdJoinRoom, mustJSON(t, JoinMessage{Room: "den", Name: "Henk"}))
	waitFor(t, den, func() bool { return den.findUser("c1") != nil })

	r.Dispatch("c1", CmdBecomeAdmin, mustJSON(t, BecomeAdminMessage{Password: testPassword}))
	waitFor(t, den, func() bool {
		u := den.findUser("c1")
		return u != nil && u.Admin
	})

	r.Dispatch("c1", CmdSendChat, mustJSON(t, ChatMessage{Message: "hoi"}))
	waitFor(t, den, func() bool { return den.log.len() == 2 }) // join notification + chat

	r.HandleDisconnect("c1")
	waitFor(t, den, func() bool {
		u := den.users[0]
		return !u.IsConnected()
	})

	if den.UserCount() != 1 {
		t.Fatal("disconnected user should still be tracked until the sweep")
	}
}

func TestUserCountAcrossRooms(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	den := r.Rooms()["den"]

	r.Dispatch("c1", CmdJoinRoom, mustJSON(t, JoinMessage{Room: "den", Name: "Henk"}))
	r.Dispatch("c2", CmdJoinRoom, mustJSON(t, JoinMessage{Room: "den", Name: "Ingrid"}))
	waitFor(t, den, func() bool { return len(den.users) == 2 })

	if den.UserCount() != 2 {
		t.Fatalf("expected 2 users in den, got %d", den.UserCount())
	}
	if attic := r.Rooms()["attic"]; attic.UserCount() != 0 {
		t.Fatal("attic should be empty")
	}

	var unknown model.ConnID = "ghost"
	r.HandleDisconnect(unknown) // must not panic
}
