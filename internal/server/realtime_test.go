package server

import (
	"context"
	"testing"
	"time"
)

func TestRealtimeDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "renter@example.com")
	defer cleanup()

	dispatcher.Publish(RealtimeMessage{
		UserEmail:   "renter@example.com",
		EventType:   RealtimeEventMessageReceived,
		Sender:      "admin",
		TotalCount:  3,
		UnreadCount: 1,
		Timestamp:   time.Now().UTC(),
	})

	select {
	case received := <-stream:
		if received.EventType != RealtimeEventMessageReceived {
			t.Fatalf("expected event type %s, got %s", RealtimeEventMessageReceived, received.EventType)
		}
		if received.TotalCount != 3 || received.UnreadCount != 1 {
			t.Fatalf("unexpected counters: total %d unread %d", received.TotalCount, received.UnreadCount)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message within deadline")
	}
}

func TestRealtimeDispatcherIsolatedByUser(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	userStream, cleanup := dispatcher.Subscribe(ctx, "first@example.com")
	defer cleanup()

	otherStream, otherCleanup := dispatcher.Subscribe(ctx, "second@example.com")
	defer otherCleanup()

	dispatcher.Publish(RealtimeMessage{
		UserEmail: "first@example.com",
		EventType: RealtimeEventMessageReceived,
	})

	select {
	case <-userStream:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected message for the targeted user")
	}

	select {
	case unexpected := <-otherStream:
		t.Fatalf("unexpected message for other user: %#v", unexpected)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRealtimeDispatcherDropsWhenSubscriberIsFull(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	dispatcher.bufferSize = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "renter@example.com")
	defer cleanup()

	dispatcher.Publish(RealtimeMessage{UserEmail: "renter@example.com", EventType: RealtimeEventMessageReceived, TotalCount: 1})
	dispatcher.Publish(RealtimeMessage{UserEmail: "renter@example.com", EventType: RealtimeEventMessageReceived, TotalCount: 2})

	received := <-stream
	if received.TotalCount != 1 {
		t.Fatalf("expected first message to survive, got total %d", received.TotalCount)
	}
	select {
	case extra := <-stream:
		t.Fatalf("expected overflow message to be dropped, got %#v", extra)
	default:
	}
}

func TestRealtimeDispatcherUnsubscribesOnContextCancel(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := dispatcher.Subscribe(ctx, "renter@example.com")
	defer cleanup()

	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		dispatcher.mu.RLock()
		remaining := len(dispatcher.subscribers["renter@example.com"])
		dispatcher.mu.RUnlock()
		if remaining == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected subscriber to be removed after context cancellation")
}
