package sharedtest

import (
	"sync"
	"testing"
	"time"

	th "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/subsystems"
)

// MockBus is a test implementation of subsystems.BroadcastBus that records sent updates and lets
// the test deliver updates to the subscribed handler.
type MockBus struct {
	// Sent receives each update passed to Send.
	Sent chan interfaces.StoreUpdate

	handler  func(interfaces.StoreUpdate)
	sendGate chan struct{}
	closed   bool
	lock     sync.Mutex
}

// NewMockBus creates a MockBus.
func NewMockBus() *MockBus {
	return &MockBus{Sent: make(chan interfaces.StoreUpdate, 100)}
}

// HoldSends makes Send block until ReleaseSends is called.
func (b *MockBus) HoldSends() *MockBus {
	b.lock.Lock()
	b.sendGate = make(chan struct{})
	b.lock.Unlock()
	return b
}

// ReleaseSends lets any held Send calls complete.
func (b *MockBus) ReleaseSends() {
	b.lock.Lock()
	gate := b.sendGate
	b.sendGate = nil
	b.lock.Unlock()
	if gate != nil {
		close(gate)
	}
}

// Send records the update, after waiting for ReleaseSends if sends are held.
func (b *MockBus) Send(update interfaces.StoreUpdate) {
	b.lock.Lock()
	gate := b.sendGate
	b.lock.Unlock()
	if gate != nil {
		<-gate
	}
	b.Sent <- update
}

// Subscribe stores the handler.
func (b *MockBus) Subscribe(handler func(interfaces.StoreUpdate)) {
	b.lock.Lock()
	b.handler = handler
	b.lock.Unlock()
}

// Deliver calls the subscribed handler synchronously, as if the update came from another replica.
func (b *MockBus) Deliver(update interfaces.StoreUpdate) {
	b.lock.Lock()
	handler := b.handler
	b.lock.Unlock()
	if handler != nil {
		handler(update)
	}
}

// Close marks the bus closed.
func (b *MockBus) Close() error {
	b.lock.Lock()
	b.closed = true
	b.lock.Unlock()
	return nil
}

// IsClosed returns true if Close was called.
func (b *MockBus) IsClosed() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.closed
}

// RequireSent waits for the next sent update.
func (b *MockBus) RequireSent(t *testing.T, timeout time.Duration) interfaces.StoreUpdate {
	return th.RequireValue(t, b.Sent, timeout, "timed out waiting for broadcast")
}

var _ subsystems.BroadcastBus = (*MockBus)(nil)
