package subsystems

import (
	"io"

	"github.com/snapshelf/syncstore/interfaces"
)

// BroadcastBus is the interface for one replica's connection to the broadcast channel that links
// all live replicas.
//
// Delivery is best-effort and at-most-once, with no acknowledgement. Updates sent by one replica
// must be delivered to each listener in the order they were sent; there is no ordering guarantee
// between different senders. A bus may deliver a replica's own updates back to it; the store
// ignores any update whose Sender is its own replica ID.
type BroadcastBus interface {
	io.Closer

	// Send publishes an update to all other replicas. It must not block on delivery.
	Send(update interfaces.StoreUpdate)

	// Subscribe registers the function that receives updates sent by other replicas. It is called
	// once, before the store sends anything.
	Subscribe(handler func(interfaces.StoreUpdate))
}
