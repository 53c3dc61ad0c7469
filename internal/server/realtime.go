package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventMessageReceived = "message-received"
	realtimeEventHeartbeat       = "heartbeat"
	realtimeHeartbeatInterval    = 25 * time.Second
)

// RealtimeMessage is delivered to message-stream subscribers whenever the
// user's chain changes.
type RealtimeMessage struct {
	UserEmail   string    `json:"user_email"`
	EventType   string    `json:"event_type"`
	Sender      string    `json:"sender"`
	TotalCount  int64     `json:"total_count"`
	UnreadCount int64     `json:"unread_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// RealtimeDispatcher fans message events out to the SSE streams of the user
// the chain belongs to. Slow subscribers drop events rather than block the
// publisher.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

func (d *RealtimeDispatcher) Subscribe(ctx context.Context, userEmail string) (<-chan RealtimeMessage, func()) {
	if userEmail == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(userEmail, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(userEmail, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.UserEmail == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.UserEmail]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(userEmail string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userEmail]; !ok {
		d.subscribers[userEmail] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[userEmail][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(userEmail string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userEmail]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userEmail)
		}
	}
	d.mu.Unlock()
}
