package syncstore

import (
	"time"

	"github.com/snapshelf/syncstore/subsystems"
)

// Config exposes advanced configuration options for a Store.
//
// All of these settings are optional, so an empty Config struct is always valid. See the description
// of each field for the default behavior if it is not set.
//
// The component fields are normally set with builders from the ldcomponents package or from an
// integration package:
//
//	hub := ldcomponents.NewInProcessHub()
//	config := syncstore.Config{
//	    Replicated: ldsqlite.Backend().Path("settings.db"),
//	    Local:      ldcomponents.InMemoryBackend(),
//	    Bus:        hub,
//	}
type Config struct {
	// ReplicaID identifies this replica on the broadcast bus. It must be unique among all live
	// replicas that share a bus. If empty, a random UUID is used.
	ReplicaID string

	// Replicated is the backend for the keys of the replicated class.
	//
	// If nil, the store uses a private in-memory backend, so values are lost when it is closed.
	Replicated subsystems.ComponentConfigurer[subsystems.Backend]

	// Local is the backend for the keys of the local class.
	//
	// If nil, the store uses a private in-memory backend.
	Local subsystems.ComponentConfigurer[subsystems.Backend]

	// Bus connects this replica to the others. If nil, the replica is not connected to any other
	// replica and only sees changes made by itself or reported by its backends.
	Bus subsystems.ComponentConfigurer[subsystems.BroadcastBus]

	// DebounceWindow is how long a class must be free of writes before its pending values are
	// persisted and broadcast. If zero or negative, the default of 25ms is used.
	DebounceWindow time.Duration

	// HTTP provides configuration for components that talk to a sync hub.
	//
	// If nil, the default is ldcomponents.HTTPConfiguration().
	HTTP subsystems.ComponentConfigurer[subsystems.HTTPConfiguration]

	// Logging provides logging properties for the store.
	//
	// If nil, the default is ldcomponents.Logging().
	Logging subsystems.ComponentConfigurer[subsystems.LoggingConfiguration]
}
