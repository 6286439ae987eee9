package bus

import (
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// DefaultHistorySize is the number of recent events retained for replay.
	DefaultHistorySize = 100

	// DefaultChannelBuffer is the buffer size for subscriber channels.
	DefaultChannelBuffer = 32
)

// SubscriptionID identifies a registered subscriber.
type SubscriptionID string

type subscription struct {
	id        SubscriptionID
	eventType EventType // "" subscribes to everything
	handler   func(Event)
	ch        chan Event
	done      chan struct{}
}

// Bus is a thread-safe publish/subscribe channel with a small replay buffer.
// Each subscriber runs its handler on its own goroutine; publishing never
// blocks on a subscriber.
type Bus struct {
	mu         sync.RWMutex
	subs       map[SubscriptionID]*subscription
	subCounter uint64

	historyMu   sync.RWMutex
	history     []Event
	historySize int

	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a Bus with the default replay buffer size.
func New() *Bus {
	return NewWithHistory(DefaultHistorySize)
}

// NewWithHistory creates a Bus retaining the last historySize events.
func NewWithHistory(historySize int) *Bus {
	return &Bus{
		subs:        make(map[SubscriptionID]*subscription),
		history:     make([]Event, 0, historySize),
		historySize: historySize,
	}
}

// Subscribe registers handler for events of the given type. An empty
// eventType subscribes to all events. The returned id unsubscribes.
func (b *Bus) Subscribe(eventType EventType, handler func(Event)) SubscriptionID {
	if b.closed.Load() {
		return ""
	}

	b.mu.Lock()
	b.subCounter++
	id := SubscriptionID(fmt.Sprintf("sub_%d", b.subCounter))
	sub := &subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
		ch:        make(chan Event, DefaultChannelBuffer),
		done:      make(chan struct{}),
	}
	b.subs[id] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(sub)

	return id
}

func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case event, ok := <-sub.ch:
			if !ok {
				return
			}
			sub.handler(event)
		case <-sub.done:
			return
		}
	}
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id SubscriptionID) error {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("subscription %s not found", id)
	}
	close(sub.done)
	return nil
}

// Publish delivers event to all matching subscribers. Subscribers whose
// buffers are full miss the event; nobody listening is fine.
func (b *Bus) Publish(event Event) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}

	b.addToHistory(event)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.eventType != "" && sub.eventType != event.Type {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber is behind; drop rather than stall the publisher.
		}
	}
	return nil
}

func (b *Bus) addToHistory(event Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.history = append(b.history, event)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// SubscriberCount reports the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the bus down and waits for subscriber goroutines to exit.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("bus already closed")
	}

	b.mu.Lock()
	for id, sub := range b.subs {
		close(sub.done)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
