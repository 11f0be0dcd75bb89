// Package channel implements components C and D of the Phaneron runtime: a
// generic multi-subscriber fan-out channel with per-delivery one-shot
// acknowledgement semaphores, grounded on
// original_source/phaneron/src/channel.rs. The original is written once
// per concrete frame type via Rust generics over a Clone bound; Go
// generics let this be a single parameterized type instead.
//
// Every value sent on a Channel is delivered to every current subscriber
// together with a fresh Semaphore. A subscriber signals its semaphore once
// it has finished with the delivered value (the two-phase commit witness
// described in spec.md §4), and the sender can wait on every semaphore it
// handed out via a SemaphoreProvider's Drain to know the whole fan-out has
// been acknowledged before advancing.
package channel

import "sync"

// Delivery is one value handed to one subscriber, paired with the
// semaphore that subscriber must signal once done with Value.
type Delivery[T any] struct {
	Value     T
	Semaphore Semaphore
}

// Channel is a multi-producer-unaware, multi-subscriber fan-out channel.
// Only Send is safe for the single owning producer to call; Subscribe may
// be called by any number of consumers, including concurrently with Send.
type Channel[T any] struct {
	mu          sync.Mutex
	subscribers []chan Delivery[T]
}

// New constructs an empty Channel with no subscribers.
func New[T any]() *Channel[T] {
	return &Channel[T]{}
}

// Subscribe registers a new receiver and returns the receive side of its
// delivery channel. The channel is buffered to depth 1, matching the
// original's tokio::sync::mpsc::channel(1): a subscriber that is not yet
// ready to receive still allows the sender to hand off one delivery before
// blocking.
func (c *Channel[T]) Subscribe() <-chan Delivery[T] {
	ch := make(chan Delivery[T], 1)
	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()
	return ch
}

// Send delivers value to every current subscriber, each with its own
// semaphore drawn from provider. Send blocks until every subscriber's
// delivery channel has room, exactly as the original's blocking_send does;
// this is the channel's backpressure mechanism (spec.md §4 step on
// one-at-a-time delivery).
func (c *Channel[T]) Send(provider *SemaphoreProvider, value T) {
	c.mu.Lock()
	subs := make([]chan Delivery[T], len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	for _, sub := range subs {
		sem := provider.GetSemaphore()
		sub <- Delivery[T]{Value: value, Semaphore: sem}
	}
}

// NoReceivers reports whether the channel currently has zero subscribers.
func (c *Channel[T]) NoReceivers() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers) == 0
}

// Len reports the current subscriber count, for callers that need to
// retain a reference-counted value once per extra subscriber before
// Send fans it out (see pkg/node's videoOutput).
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

// Close closes every current subscriber's delivery channel so each
// observes end-of-stream on its next receive, and clears the subscriber
// list. The producer must not call Send after Close. Used when a node is
// removed from the graph (see pkg/node's RunContext.CloseOutputs) so
// downstream Pipe.NextFrame calls unblock instead of hanging forever.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subscribers {
		close(sub)
	}
	c.subscribers = nil
}
