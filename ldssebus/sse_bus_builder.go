package ldssebus

import (
	"errors"
	"strings"
	"time"

	"github.com/snapshelf/syncstore/subsystems"
)

const (
	// DefaultChannel is the hub channel that replicas use if none is specified.
	DefaultChannel = "default"

	// DefaultInitialReconnectDelay is the default delay before the first reconnection attempt.
	DefaultInitialReconnectDelay = time.Second

	// DefaultQueueLength is the default number of updates that can wait to be posted.
	DefaultQueueLength = 100
)

// SSEBusBuilder is a builder for configuring the SSE broadcast bus.
//
// Obtain an instance of this type by calling Bus().
type SSEBusBuilder struct {
	baseURI               string
	channel               string
	initialReconnectDelay time.Duration
	queueLength           int
}

// Bus returns a configurable builder for an SSE broadcast bus.
func Bus() *SSEBusBuilder {
	return &SSEBusBuilder{
		channel:               DefaultChannel,
		initialReconnectDelay: DefaultInitialReconnectDelay,
		queueLength:           DefaultQueueLength,
	}
}

// BaseURI specifies the base URI of the hub.
func (b *SSEBusBuilder) BaseURI(baseURI string) *SSEBusBuilder {
	b.baseURI = strings.TrimRight(baseURI, "/")
	return b
}

// Channel specifies the hub channel. Only replicas on the same channel see each other's updates.
func (b *SSEBusBuilder) Channel(channel string) *SSEBusBuilder {
	if channel == "" {
		channel = DefaultChannel
	}
	b.channel = channel
	return b
}

// InitialReconnectDelay sets the initial reconnect delay for the stream. Later attempts back off
// exponentially, with jitter, up to 30 seconds.
func (b *SSEBusBuilder) InitialReconnectDelay(delay time.Duration) *SSEBusBuilder {
	if delay <= 0 {
		delay = DefaultInitialReconnectDelay
	}
	b.initialReconnectDelay = delay
	return b
}

// QueueLength sets how many outgoing updates can wait while a previous one is being posted. When the
// queue is full, further updates are dropped.
func (b *SSEBusBuilder) QueueLength(length int) *SSEBusBuilder {
	if length < 1 {
		length = 1
	}
	b.queueLength = length
	return b
}

// Build is called internally by the store.
func (b *SSEBusBuilder) Build(clientContext subsystems.ClientContext) (subsystems.BroadcastBus, error) {
	if b.baseURI == "" {
		return nil, errors.New("SSE bus requires a base URI")
	}
	return newSSEBus(clientContext, busConfig{
		channelURI:            b.baseURI + busPath + b.channel,
		initialReconnectDelay: b.initialReconnectDelay,
		queueLength:           b.queueLength,
	}), nil
}
