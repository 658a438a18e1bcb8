package subsystems

import (
	"net/http"

	"github.com/snapshelf/syncstore/interfaces"
)

// ClientContext provides context information from the store when creating other components.
//
// This is passed as a parameter to the Build methods of backend and bus configurers. For test
// purposes you may use the simple struct type BasicClientContext.
type ClientContext interface {
	// GetReplicaID returns the identifier of the replica being built. It is unique among all live
	// replicas and is used as the Sender of broadcast updates.
	GetReplicaID() string

	// GetClass returns the durability class when a Backend is being built, or an empty string
	// otherwise.
	GetClass() interfaces.Class

	// GetHTTP returns the configured HTTPConfiguration.
	GetHTTP() HTTPConfiguration

	// GetLogging returns the configured LoggingConfiguration.
	GetLogging() LoggingConfiguration
}

// BasicClientContext is the basic implementation of the ClientContext interface.
type BasicClientContext struct {
	ReplicaID string
	Class     interfaces.Class
	HTTP      HTTPConfiguration
	Logging   LoggingConfiguration
}

func (b BasicClientContext) GetReplicaID() string { return b.ReplicaID } //nolint:revive

func (b BasicClientContext) GetClass() interfaces.Class { return b.Class } //nolint:revive

func (b BasicClientContext) GetHTTP() HTTPConfiguration { //nolint:revive
	ret := b.HTTP
	if ret.CreateHTTPClient == nil {
		ret.CreateHTTPClient = func() *http.Client {
			client := *http.DefaultClient
			return &client
		}
	}
	return ret
}

func (b BasicClientContext) GetLogging() LoggingConfiguration { return b.Logging } //nolint:revive

// WithClass returns a copy of the context for building the backend of the specified class.
func (b BasicClientContext) WithClass(class interfaces.Class) BasicClientContext {
	ret := b
	ret.Class = class
	return ret
}
