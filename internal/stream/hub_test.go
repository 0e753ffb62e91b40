package stream

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/events"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
		return nil
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, quietLogger())
	client := hub.Register("veh-1")
	defer hub.Unregister(client)
	other := hub.Register("veh-2")
	defer hub.Unregister(other)

	hub.Broadcast("veh-1", []byte("hello"))
	if string(receive(t, client)) != "hello" {
		t.Fatalf("unexpected message")
	}
	select {
	case <-other.Send:
		t.Fatalf("other vehicle must not receive the update")
	default:
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "analytics:abc:scores" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if vehicleIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected vehicle id")
	}
	if vehicleIDFromChannel("bad") != "" || vehicleIDFromChannel("tracking:abc:broadcast") != "" {
		t.Fatalf("expected empty vehicle id")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil, quietLogger())
	client := hub.Register("veh-2")
	hub.Unregister(client)
	if _, ok := <-client.Send; ok {
		t.Fatalf("expected channel closed")
	}
	hub.Broadcast("veh-2", []byte("late"))
}

func TestHubRedisFanOut(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, quietLogger())
	defer hub.Close()
	ws := hub.Register("veh-redis")
	defer hub.Unregister(ws)

	hub.Broadcast("veh-redis", []byte("ping"))
	if string(receive(t, ws)) != "ping" {
		t.Fatalf("unexpected message")
	}

	// another instance publishing the same channel
	if err := rdb.Publish(context.Background(), redisChannel("veh-redis"), "pong").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	if string(receive(t, ws)) != "pong" {
		t.Fatalf("unexpected message from redis")
	}
}

func TestHubRedisUnavailableFallsBackToLocal(t *testing.T) {
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer rdb.Close()

	hub := NewHub(rdb, quietLogger())
	client := hub.Register("veh-bad")
	defer hub.Unregister(client)

	hub.Broadcast("veh-bad", []byte("ping"))
	if string(receive(t, client)) != "ping" {
		t.Fatalf("expected local delivery")
	}
}

func TestHubPublishEvent(t *testing.T) {
	hub := NewHub(nil, quietLogger())
	client := hub.Register("veh-1")
	defer hub.Unregister(client)

	if err := hub.Publish(context.Background(), events.New(events.TypeVehicleScored, "veh-1", map[string]int{"total_trips": 3})); err != nil {
		t.Fatalf("publish: %v", err)
	}
	var got events.Event
	if err := json.Unmarshal(receive(t, client), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != events.TypeVehicleScored || got.VehicleID != "veh-1" {
		t.Fatalf("unexpected event %+v", got)
	}
}
