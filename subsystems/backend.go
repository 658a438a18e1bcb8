package subsystems

import (
	"context"
	"io"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Backend is the interface for the durable storage of one durability class: a flat namespace of
// key names and JSON values.
//
// The store calls BulkRead once per replica, at construction, and Write each time it flushes a
// batch of pending writes. Neither call is retried, and calls from different replicas are not
// ordered with respect to each other. Implementations must be safe for concurrent use.
type Backend interface {
	io.Closer

	// BulkRead returns the stored values for the specified key names. Names that have no stored
	// value are omitted from the result.
	BulkRead(ctx context.Context, names []string) (map[string]ldvalue.Value, error)

	// Write stores all of the specified values. A null value removes the key. There is no
	// transactional guarantee across keys.
	Write(ctx context.Context, values map[string]ldvalue.Value) error
}

// ExternalChangeSource is an optional interface for a Backend that can detect changes made to its
// storage by something other than the current process, such as a user editing a settings file.
//
// If the backend configured for a durability class implements this interface, the store registers
// a handler that merges the changed values into its in-memory state, the same way it merges
// updates received from other replicas.
type ExternalChangeSource interface {
	// SetExternalChangeHandler registers the function to call with changed values. Only the most
	// recently registered handler is called.
	SetExternalChangeHandler(handler func(values map[string]ldvalue.Value))
}
