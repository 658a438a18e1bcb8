package internal

import (
	"sync"

	"golang.org/x/exp/slices"
)

// This file defines the publish-subscribe model used for backend status updates and for the
// in-process broadcast bus.
//
// AddListener returns a new receive-only channel; RemoveListener unsubscribes that channel and
// closes the sending end of it; Broadcast sends a value to all of the subscribed channels (if any);
// and Close unsubscribes and closes all existing channels. Each subscriber receives values in the
// order they were broadcast.

// DefaultSubscriberBufferLength is the channel buffer size used by NewBroadcaster. It makes it less
// likely that Broadcast will block, but it is still the consumer's responsibility to keep reading.
const DefaultSubscriberBufferLength = 10

// Broadcaster is our generalized implementation of broadcasters.
type Broadcaster[V any] struct {
	subscribers  []channelPair[V]
	bufferLength int
	lock         sync.Mutex // guards subscribers
	sendLock     sync.Mutex // held while sending to or closing subscriber channels
}

// We keep both ends of each channel: the send end for Broadcast and Close, and the receive end so
// that RemoveListener can find the subscriber by the channel it was given.
type channelPair[V any] struct {
	sendCh    chan<- V
	receiveCh <-chan V
}

// NewBroadcaster creates a Broadcaster that operates on the specified value type.
func NewBroadcaster[V any]() *Broadcaster[V] {
	return NewBroadcasterWithBuffer[V](DefaultSubscriberBufferLength)
}

// NewBroadcasterWithBuffer creates a Broadcaster whose subscriber channels have the specified
// buffer length.
func NewBroadcasterWithBuffer[V any](bufferLength int) *Broadcaster[V] {
	return &Broadcaster[V]{bufferLength: bufferLength}
}

// AddListener adds a subscriber and returns a channel for it to receive values.
func (b *Broadcaster[V]) AddListener() <-chan V {
	ch := make(chan V, b.bufferLength)
	var receiveCh <-chan V = ch
	b.lock.Lock()
	defer b.lock.Unlock()
	b.subscribers = append(b.subscribers, channelPair[V]{sendCh: ch, receiveCh: receiveCh})
	return receiveCh
}

// RemoveListener removes a subscriber. The parameter is the same channel that was returned by
// AddListener.
func (b *Broadcaster[V]) RemoveListener(ch <-chan V) {
	b.sendLock.Lock()
	defer b.sendLock.Unlock()
	b.lock.Lock()
	defer b.lock.Unlock()
	i := slices.IndexFunc(b.subscribers, func(s channelPair[V]) bool { return s.receiveCh == ch })
	if i < 0 {
		return
	}
	close(b.subscribers[i].sendCh)
	b.subscribers = slices.Delete(b.subscribers, i, i+1)
}

// HasListeners returns true if there are any current subscribers.
func (b *Broadcaster[V]) HasListeners() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subscribers) > 0
}

// Broadcast sends a value to all current subscribers.
//
// Values from concurrent callers reach every subscriber in the same order. If a subscriber's
// buffer is full, this blocks until it reads; AddListener is not blocked meanwhile, but
// RemoveListener and Close are.
func (b *Broadcaster[V]) Broadcast(value V) {
	b.sendLock.Lock()
	defer b.sendLock.Unlock()
	b.lock.Lock()
	ss := slices.Clone(b.subscribers)
	b.lock.Unlock()
	for _, ch := range ss {
		ch.sendCh <- value
	}
}

// Close closes all current subscriber channels.
func (b *Broadcaster[V]) Close() {
	b.sendLock.Lock()
	defer b.sendLock.Unlock()
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, s := range b.subscribers {
		close(s.sendCh)
	}
	b.subscribers = nil
}
