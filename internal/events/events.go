// Package events fans editor notifications out to subscribers such as the
// websocket stream.
package events

import (
	"sync"
	"time"

	"github.com/joescharf/marie/internal/models"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Bus delivers published events to every subscriber. Publish never blocks:
// a subscriber whose queue is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan models.Event
	next   int
	buffer int
}

// NewBus returns a Bus with the given per-subscriber buffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{subs: map[int]chan models.Event{}, buffer: buffer}
}

// Subscribe registers a subscriber. The returned func unsubscribes and
// closes the channel.
func (b *Bus) Subscribe() (<-chan models.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan models.Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish sends an event of type typ to all subscribers.
func (b *Bus) Publish(typ string, payload any) {
	ev := models.Event{Type: typ, Payload: payload, Timestamp: time.Now().UTC()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
