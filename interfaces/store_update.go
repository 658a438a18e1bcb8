package interfaces

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// StoreUpdate is the message that a replica broadcasts after flushing the pending writes of one
// durability class, so that other replicas can apply the same values to their in-memory state.
type StoreUpdate struct {
	// Sender identifies the replica that sent the update. Replicas ignore their own updates.
	Sender string
	// Class is the durability class that all of the values belong to.
	Class Class
	// Values maps key names to their new values. A null value means the key was unset.
	Values map[string]ldvalue.Value
}
