package ldcomponents

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/internal"
	"github.com/snapshelf/syncstore/subsystems"
)

// inProcessHubBufferLength is the number of updates that can be queued for a replica that is slow to
// apply them before senders start to wait.
const inProcessHubBufferLength = 1000

// InProcessHub is a broadcast bus for replicas that live in the same process. Every store built
// with the same hub receives the updates sent by all the others, in the order each sender sent them.
//
//	hub := ldcomponents.NewInProcessHub()
//	store1, _ := syncstore.New(syncstore.Config{Bus: hub, Replicated: shared})
//	store2, _ := syncstore.New(syncstore.Config{Bus: hub, Replicated: shared})
type InProcessHub struct {
	broadcaster *internal.Broadcaster[interfaces.StoreUpdate]
}

// NewInProcessHub creates an InProcessHub with no members.
func NewInProcessHub() *InProcessHub {
	return &InProcessHub{
		broadcaster: internal.NewBroadcasterWithBuffer[interfaces.StoreUpdate](inProcessHubBufferLength),
	}
}

// Build is called internally by the store.
func (h *InProcessHub) Build(clientContext subsystems.ClientContext) (subsystems.BroadcastBus, error) {
	loggers := clientContext.GetLogging().Loggers
	loggers.SetPrefix("InProcessHub:")
	return &inProcessEndpoint{
		hub:      h,
		senderID: clientContext.GetReplicaID(),
		loggers:  loggers,
		doneCh:   make(chan struct{}),
	}, nil
}

// HasMembers returns true if any replica is subscribed to the hub.
func (h *InProcessHub) HasMembers() bool {
	return h.broadcaster.HasListeners()
}

type inProcessEndpoint struct {
	hub      *InProcessHub
	senderID string
	loggers  ldlog.Loggers
	ch       <-chan interfaces.StoreUpdate
	closed   bool
	doneCh   chan struct{}
	lock     sync.Mutex
}

func (e *inProcessEndpoint) Send(update interfaces.StoreUpdate) {
	e.lock.Lock()
	closed := e.closed
	e.lock.Unlock()
	if !closed {
		e.hub.broadcaster.Broadcast(update)
	}
}

func (e *inProcessEndpoint) Subscribe(handler func(interfaces.StoreUpdate)) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed || e.ch != nil {
		return
	}
	e.ch = e.hub.broadcaster.AddListener()
	go e.deliver(e.ch, handler)
}

func (e *inProcessEndpoint) deliver(ch <-chan interfaces.StoreUpdate, handler func(interfaces.StoreUpdate)) {
	defer close(e.doneCh)
	for update := range ch {
		if update.Sender == e.senderID {
			continue
		}
		handler(update)
	}
}

func (e *inProcessEndpoint) Close() error {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return nil
	}
	e.closed = true
	ch := e.ch
	e.lock.Unlock()
	if ch != nil {
		e.hub.broadcaster.RemoveListener(ch)
		<-e.doneCh
	}
	e.loggers.Debugf("Replica %s left the hub", e.senderID)
	return nil
}
