package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Broadcast("session-1", []byte("hello"))

	select {
	case msg := <-client.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubPublishEncodesEvent(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Publish("session-1", Event{Type: EventFloatingText, Data: FloatingText{Text: "+3 MOBX", ScreenX: 10, ScreenY: 20, ExpiresInMs: 1500}})

	select {
	case msg := <-client.Send:
		var got struct {
			Type EventType    `json:"type"`
			Data FloatingText `json:"data"`
		}
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != EventFloatingText || got.Data.Text != "+3 MOBX" || got.Data.ExpiresInMs != 1500 {
			t.Fatalf("unexpected event %s", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for event")
	}
}

func TestHubIsolatesSessions(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Register("a")
	b := hub.Register("b")
	defer hub.Unregister(a)
	defer hub.Unregister(b)

	hub.Broadcast("a", []byte("only-a"))
	select {
	case <-b.Send:
		t.Fatalf("session b received a's message")
	case <-time.After(20 * time.Millisecond):
	}
	if msg := <-a.Send; string(msg) != "only-a" {
		t.Fatalf("unexpected message")
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "geomine:abc:events" {
		t.Fatalf("unexpected channel %s", ch)
	}
	if sessionIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected session id")
	}
	for _, bad := range []string{"bad", "geomine::events", "tracking:abc:broadcast"} {
		if sessionIDFromChannel(bad) != "" {
			t.Fatalf("expected empty session id for %s", bad)
		}
	}
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-2")
	hub.Unregister(client)
	hub.Unregister(client)
	if _, ok := <-client.Send; ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubRedisFanOut(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb)
	defer hub.Close()
	other := NewHub(rdb)
	defer other.Close()

	ws := other.Register("session-redis")
	defer other.Unregister(ws)

	hub.Broadcast("session-redis", []byte("ping"))

	select {
	case msg := <-ws.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fan-out")
	}

	if err := rdb.Publish(context.Background(), "geomine:session-redis:events", "pong").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	select {
	case msg := <-ws.Send:
		if string(msg) != "pong" {
			t.Fatalf("unexpected message from redis")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for redis message")
	}
}

func TestHubRedisUnavailableDeliversLocally(t *testing.T) {
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	server.Close()
	defer rdb.Close()

	hub := NewHub(rdb)
	client := hub.Register("session-bad")
	defer hub.Unregister(client)

	hub.Broadcast("session-bad", []byte("ping"))
	select {
	case msg := <-client.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected local delivery")
	}
}
