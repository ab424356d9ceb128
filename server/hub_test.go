package server

import (
	"encoding/json"
	"testing"

	"syncthat/model"
)

func addTestClient(h *Hub, id model.ConnID) *client {
	c := &client{id: id, send: make(chan []byte, sendBufferSize)}
	h.add(c)
	return c
}

func receive(t *testing.T, c *client) envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return env
	default:
		t.Fatal("no frame queued")
		return envelope{}
	}
}

func TestHubUnicast(t *testing.T) {
	h := NewHub()
	c := addTestClient(h, "c1")

	h.Send("c1", "you", map[string]string{"name": "Henk"})

	env := receive(t, c)
	if env.Event != "you" {
		t.Fatalf("expected you event, got %q", env.Event)
	}
	var payload map[string]string
	if err := json.Unmarshal(env.Data, &payload); err != nil || payload["name"] != "Henk" {
		t.Fatalf("unexpected payload: %s", env.Data)
	}

	// Unknown connections are a silent no-op.
	h.Send("ghost", "you", nil)
}

func TestHubBroadcastScopedToRoom(t *testing.T) {
	h := NewHub()
	a := addTestClient(h, "a")
	b := addTestClient(h, "b")
	c := addTestClient(h, "c")

	h.Join("den", "a")
	h.Join("den", "b")
	h.Join("attic", "c")

	h.Broadcast("den", "queue", []string{})

	if env := receive(t, a); env.Event != "queue" {
		t.Fatal("a missed the broadcast")
	}
	if env := receive(t, b); env.Event != "queue" {
		t.Fatal("b missed the broadcast")
	}
	select {
	case <-c.send:
		t.Fatal("attic client must not hear den broadcasts")
	default:
	}
}

func TestHubRejoinMovesRooms(t *testing.T) {
	h := NewHub()
	a := addTestClient(h, "a")

	h.Join("den", "a")
	h.Join("attic", "a")

	h.Broadcast("den", "queue", nil)
	select {
	case <-a.send:
		t.Fatal("client should have left den")
	default:
	}

	h.Broadcast("attic", "queue", nil)
	if env := receive(t, a); env.Event != "queue" {
		t.Fatal("client missed its new room")
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.rooms["den"]) != 0 {
		t.Fatal("empty den room should be dropped")
	}
}

func TestHubRemoveCleansUp(t *testing.T) {
	h := NewHub()
	addTestClient(h, "a")
	h.Join("den", "a")

	h.remove("a")
	h.remove("a") // idempotent

	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) != 0 || len(h.rooms) != 0 {
		t.Fatal("remove left state behind")
	}
}

func TestEnvelopeWithoutPayload(t *testing.T) {
	data, err := encode("already-connected", nil)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Event != "already-connected" || len(env.Data) != 0 {
		t.Fatalf("unexpected envelope: %s", data)
	}
}
