// Package events is the notification boundary for race state changes.
// Publishing is fire-and-forget: the core guarantees save-then-publish
// ordering but no delivery.
package events

import "sync"

// Topic identifies one of the fixed notification channels.
type Topic string

const (
	// TopicGamesNew announces a freshly created race.
	TopicGamesNew Topic = "games:new"
	// TopicGamesUpdate announces a mutated race.
	TopicGamesUpdate Topic = "games:update"
	// TopicGamesRemove announces a race that completed out of matchmaking.
	TopicGamesRemove Topic = "games:remove"
	// TopicUsersUpdate announces a mutated player.
	TopicUsersUpdate Topic = "users:update"
)

// Event is one published notification.
type Event struct {
	Topic   Topic `json:"topic"`
	Payload any   `json:"payload"`
}

// Publisher is the fire-and-forget outbound interface used by the core.
type Publisher interface {
	Publish(topic Topic, payload any)
}

// Bus is an in-process publisher that fans events out to subscriber
// channels. Sends never block: a subscriber whose buffer is full misses the
// event, matching the no-delivery-guarantee contract.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its receive channel
// together with a cancel function that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subscribers {
			if sub == ch {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer room.
func (b *Bus) Publish(topic Topic, payload any) {
	evt := Event{Topic: topic, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- evt:
		default:
			// Subscriber is saturated; drop rather than block the caller.
		}
	}
}
