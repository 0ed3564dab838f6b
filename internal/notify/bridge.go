package notify

import (
	"log/slog"
	"sync"
)

const defaultSubscriberCapacity = 64

// BridgeOption customizes Bridge construction.
type BridgeOption func(*Bridge)

// BridgeWithLogger injects a logger for drop diagnostics.
func BridgeWithLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// BridgeWithSubscriberCapacity overrides the buffered channel size per
// subscriber.
func BridgeWithSubscriberCapacity(capacity int) BridgeOption {
	return func(b *Bridge) {
		if capacity > 0 {
			b.capacity = capacity
		}
	}
}

// Bridge forwards events to any number of subscribers over bounded
// channels. Notify never blocks: when a subscriber's queue is full the
// incoming event is dropped for that subscriber and logged.
type Bridge struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	capacity    int
	logger      *slog.Logger
}

// Subscription is an active Bridge subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription and closes its channel.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewBridge constructs a bridge.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{
		subscribers: map[*subscriber]struct{}{},
		capacity:    defaultSubscriberCapacity,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Subscribe registers a new subscriber. projectID filters events to one
// project; empty receives everything.
func (b *Bridge) Subscribe(projectID string) Subscription {
	sub := &subscriber{ch: make(chan Event, b.capacity), projectID: projectID}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return Subscription{
		Events: sub.ch,
		cancel: func() { b.remove(sub) },
	}
}

// Notify delivers e to every matching subscriber without blocking.
func (b *Bridge) Notify(e Event) {
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		if sub.projectID == "" || sub.projectID == e.ProjectID {
			subs = append(subs, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.deliver(e) {
			b.logger.Warn("notify: subscriber queue full, event dropped",
				"event_id", e.ID, "project_id", e.ProjectID, "operation", string(e.Operation))
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bridge) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bridge) remove(sub *subscriber) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
	sub.close()
}

type subscriber struct {
	ch        chan Event
	projectID string
	closed    bool
	closeMu   sync.Mutex
}

// deliver reports false when the event was dropped.
func (s *subscriber) deliver(e Event) bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
