// Package events fans out in-process notifications about validate and
// compare runs to any number of listeners, such as the API event stream.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types
const (
	EventValidationCompleted = "validate.completed"
	EventComparisonCompleted = "compare.completed"
	EventReportRecorded      = "report.recorded"

	// Wildcard subscribes to every event type
	Wildcard = "*"
)

// SubscriberBuffer is the channel capacity given to each subscriber.
const SubscriberBuffer = 64

// Event represents an event in the system
type Event struct {
	Type    string                 `json:"type"`
	Time    time.Time              `json:"time"`
	Payload map[string]interface{} `json:"payload"`
}

// Subscriber is a channel that receives events
type Subscriber chan Event

// Bus manages event subscriptions and publishing.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
	dropped     uint64
	closed      bool
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe registers a subscriber for eventType, or Wildcard for all.
// The returned function unsubscribes and closes the channel; calling it more
// than once is safe.
func (b *Bus) Subscribe(eventType string) (Subscriber, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(Subscriber, SubscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subs := b.subscribers[eventType]
			for i, sub := range subs {
				if sub == ch {
					b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}

	return ch, unsubscribe
}

// Publish sends an event to the subscribers of its type and to wildcard
// subscribers. A zero Time is set to now. A nil bus drops the event.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	deliver := func(subs []Subscriber) {
		for _, ch := range subs {
			select {
			case ch <- event:
			default:
				b.dropped++
			}
		}
	}

	deliver(b.subscribers[event.Type])
	if event.Type != Wildcard {
		deliver(b.subscribers[Wildcard])
	}
}

// SubscriberCount returns the number of active subscribers for eventType.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}

// MarshalEvent converts an event to JSON
func MarshalEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}
