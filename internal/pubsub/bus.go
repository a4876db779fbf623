// Package pubsub implements the in-memory topic fabric the teams
// subsystem communicates over. Delivery is best-effort at-most-once:
// late subscribers miss prior messages, slow subscribers drop.
package pubsub

import (
	"sync"
)

// subscriptionBuffer is the per-subscription channel capacity. A full
// buffer drops messages rather than blocking the publisher.
const subscriptionBuffer = 256

// Subscription receives messages from every topic it is attached to
type Subscription struct {
	C chan Message
}

// TapFunc observes every broadcast message, for bridging to external
// systems. Taps must not block.
type TapFunc func(topic string, msg Message)

// Bus manages topic subscriptions and fan-out
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	taps   []TapFunc
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe creates a subscription attached to the given topics
func (b *Bus) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		C: make(chan Message, subscriptionBuffer),
	}
	for _, topic := range topics {
		b.Attach(topic, sub)
	}
	return sub
}

// Attach adds an existing subscription to another topic
func (b *Bus) Attach(topic string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, exists := b.topics[topic]
	if !exists {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
}

// Detach removes a subscription from a single topic
func (b *Bus) Detach(topic string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, exists := b.topics[topic]
	if !exists {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Unsubscribe removes a subscription from all topics and closes its channel
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.topics {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(b.topics, topic)
			}
		}
	}
	close(sub.C)
}

// Tap registers an observer for every broadcast on the bus
func (b *Bus) Tap(fn TapFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taps = append(b.taps, fn)
}

// Broadcast delivers a message to every subscriber attached to the
// topic at the instant of the call. Sends are non-blocking: a
// subscriber whose buffer is full misses the message. Messages from
// one publisher reach each subscriber in publish order.
func (b *Bus) Broadcast(topic string, msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, tap := range b.taps {
		tap(topic, msg)
	}

	subs, exists := b.topics[topic]
	if !exists {
		return
	}
	for sub := range subs {
		select {
		case sub.C <- msg:
		default:
			// Buffer full, drop rather than block the publisher
		}
	}
}

// SubscriberCount returns how many subscriptions a topic currently has
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
