package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{Send: make(chan []byte, 10)}
	hub.Register(client)

	data := []byte(`{"action":"create","entity":"packages"}`)
	hub.Broadcast(data)

	select {
	case got := <-client.Send:
		if string(got) != string(data) {
			t.Fatalf("expected %s, got %s", data, got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	hub.Unregister(client)
	select {
	case _, ok := <-client.Send:
		if ok {
			t.Fatal("expected closed send channel after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestRecorderStoresAndBroadcastsLocally(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{Send: make(chan []byte, 10)}
	hub.Register(client)

	store := NewMemoryLog(10)
	rec := NewRecorder(store, nil, hub)
	rec.Record(context.Background(), Event{Action: ActionDelete, Entity: "visas", EntityID: 3})

	select {
	case got := <-client.Send:
		var ev Event
		if err := json.Unmarshal(got, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Entity != "visas" || ev.EntityID != 3 || ev.ID == "" || ev.At.IsZero() {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}

	events, _ := store.Recent(context.Background(), 0, 5)
	if len(events) != 1 || events[0].Action != ActionDelete {
		t.Fatalf("store has %+v", events)
	}
}

func TestMemoryLogKeepsNewestFirst(t *testing.T) {
	store := NewMemoryLog(2)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		store.Insert(ctx, Event{ID: name})
	}
	events, _ := store.Recent(ctx, 0, 10)
	if len(events) != 2 || events[0].ID != "c" || events[1].ID != "b" {
		t.Fatalf("got %+v", events)
	}
	events, _ = store.Recent(ctx, 1, 10)
	if len(events) != 1 || events[0].ID != "b" {
		t.Fatalf("offset 1: %+v", events)
	}
	if events, _ = store.Recent(ctx, 5, 10); len(events) != 0 {
		t.Fatalf("past the end: %+v", events)
	}
}

func TestWebSocketHandlerStreamsEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	router := httprouter.New()
	router.GET("/ws", WebSocketHandler(hub))
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// registration is asynchronous; keep broadcasting until the client sees one
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	go func() {
		for time.Now().Before(deadline) {
			hub.Broadcast([]byte(`{"action":"login"}`))
			time.Sleep(50 * time.Millisecond)
		}
	}()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != `{"action":"login"}` {
		t.Fatalf("got %s", msg)
	}
}

func TestRecentHandler(t *testing.T) {
	store := NewMemoryLog(10)
	store.Insert(context.Background(), Event{ID: "1", Action: ActionLogin})
	store.Insert(context.Background(), Event{ID: "2", Action: ActionCreate})

	rec := httptest.NewRecorder()
	RecentHandler(store)(rec, httptest.NewRequest(http.MethodGet, "/api/admin/activity?page=2&limit=1", nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var events []Event
	if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Action != ActionLogin {
		t.Fatalf("got %+v", events)
	}
}
