package events

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()

	var got atomic.Value
	err := bus.Subscribe(TopicForceLogout, func(data ForceLogoutEventData) {
		got.Store(data)
	})
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	bus.Publish(TopicForceLogout, ForceLogoutEventData{Username: "alice", Reason: "new login"})

	data, ok := got.Load().(ForceLogoutEventData)
	if !ok {
		t.Fatal("handler not invoked")
	}
	if data.Username != "alice" || data.Reason != "new login" {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestBusAsyncSubscribe(t *testing.T) {
	bus := NewBus()

	var count atomic.Int32
	err := bus.SubscribeAsync(TopicWSConnected, func(ConnectionEventData) {
		count.Add(1)
	})
	if err != nil {
		t.Fatalf("SubscribeAsync error: %v", err)
	}

	for i := 0; i < 3; i++ {
		bus.Publish(TopicWSConnected, ConnectionEventData{ConnectionID: "c1", Username: "bob"})
	}
	bus.WaitAsync()

	if count.Load() != 3 {
		t.Fatalf("expected 3 deliveries, got %d", count.Load())
	}
}

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope(TypeForceLogout, "account signed in elsewhere", map[string]string{"username": "alice"})
	if env.Type != TypeForceLogout {
		t.Fatalf("unexpected type: %s", env.Type)
	}
	if env.Message != "account signed in elsewhere" {
		t.Fatalf("unexpected message: %s", env.Message)
	}
	if _, err := time.Parse("2006-01-02 15:04:05", env.Timestamp); err != nil {
		t.Fatalf("timestamp not in wire format: %q", env.Timestamp)
	}
}
