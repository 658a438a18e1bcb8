package syncstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/internal"
	"github.com/snapshelf/syncstore/internal/replica"
	"github.com/snapshelf/syncstore/ldcomponents"
	"github.com/snapshelf/syncstore/subsystems"
)

// Version is the module version.
const Version = "1.0.0"

// closeWriteTimeout bounds how long Close waits for writes that were already flushed before it
// closes the backends.
const closeWriteTimeout = 5 * time.Second

// Store is one replica of the configuration store.
//
// Create a Store with New. Every method is safe for concurrent use. Get and Set never block on
// I/O; before the initial load has completed they fail with NotReadyError.
type Store struct {
	replica       *replica.Replica
	backends      map[interfaces.Class]subsystems.Backend
	bus           subsystems.BroadcastBus
	statusTracker *internal.BackendStatusTracker
	loggers       ldlog.Loggers
	closeOnce     sync.Once
}

// New creates a Store and starts loading its values from the backends.
//
// New returns as soon as the components are built; it does not wait for the load. An error is
// returned only if a component could not be built, for instance because of an invalid file path.
func New(config Config) (*Store, error) {
	clientContext, err := newClientContextFromConfig(config)
	if err != nil {
		return nil, err
	}
	loggers := clientContext.GetLogging().Loggers
	loggers.Infof("Starting configuration store replica %s (version %s)", clientContext.ReplicaID, Version)

	store := &Store{
		backends: make(map[interfaces.Class]subsystems.Backend),
		loggers:  loggers,
	}
	factories := map[interfaces.Class]subsystems.ComponentConfigurer[subsystems.Backend]{
		interfaces.ReplicatedClass: config.Replicated,
		interfaces.LocalClass:      config.Local,
	}
	for _, class := range interfaces.Classes() {
		factory := factories[class]
		if factory == nil {
			factory = ldcomponents.InMemoryBackend()
		}
		backend, err := factory.Build(clientContext.WithClass(class))
		if err != nil {
			store.closeComponents()
			return nil, fmt.Errorf("unable to create %s backend: %w", class, err)
		}
		store.backends[class] = backend
	}
	if config.Bus != nil {
		bus, err := config.Bus.Build(clientContext)
		if err != nil {
			store.closeComponents()
			return nil, fmt.Errorf("unable to create broadcast bus: %w", err)
		}
		store.bus = bus
	}

	store.statusTracker = internal.NewBackendStatusTracker(loggers)
	store.replica = replica.New(replica.Config{
		ID:             clientContext.ReplicaID,
		Backends:       store.backends,
		Bus:            store.bus,
		DebounceWindow: config.DebounceWindow,
		StatusTracker:  store.statusTracker,
		Loggers:        loggers,
		LogValues:      clientContext.GetLogging().LogValues,
	})
	return store, nil
}

// ReplicaID returns the identifier this replica uses on the broadcast bus.
func (s *Store) ReplicaID() string {
	return s.replica.ID()
}

// State returns the lifecycle state of the replica.
func (s *Store) State() interfaces.LifecycleState {
	return s.replica.State()
}

// IsReady returns true once the initial load has completed.
func (s *Store) IsReady() bool {
	return s.replica.State() == interfaces.StateReady
}

// ReadyCh returns a channel that is closed when the store becomes ready. If the initial load
// fails, it is never closed.
func (s *Store) ReadyCh() <-chan struct{} {
	return s.replica.ReadyCh()
}

// OnReady calls fn once the store is ready. If it is already ready, fn is called immediately on
// the caller's goroutine. Otherwise fn is queued; queued functions are called once, in the order
// they were registered.
func (s *Store) OnReady(fn func()) {
	s.replica.OnReady(fn)
}

// Get returns the current value of a key, or a null value if the key is unset.
//
// It returns UnknownKeyError if the key is not part of the schema, and NotReadyError if the
// initial load has not completed.
func (s *Store) Get(key interfaces.Key) (ldvalue.Value, error) {
	return s.replica.Get(key)
}

// GetByName is the same as Get, but takes the key's name.
func (s *Store) GetByName(name string) (ldvalue.Value, error) {
	key, err := interfaces.ParseKey(name)
	if err != nil {
		return ldvalue.Null(), err
	}
	return s.replica.Get(key)
}

// Set changes the value of a key. The change is visible to Get immediately, and is persisted and
// sent to the other replicas after the debounce window. A null value unsets the key.
//
// It returns UnknownKeyError if the key is not part of the schema, InvalidValueError if the value
// has the wrong kind for the key, and NotReadyError if the initial load has not completed. In
// every error case nothing is changed.
func (s *Store) Set(key interfaces.Key, value ldvalue.Value) error {
	return s.replica.Set(key, value)
}

// SetByName is the same as Set, but takes the key's name.
func (s *Store) SetByName(name string, value ldvalue.Value) error {
	key, err := interfaces.ParseKey(name)
	if err != nil {
		return err
	}
	return s.replica.Set(key, value)
}

// Albums returns the live album set. It can be changed in place; call CommitAlbums to persist and
// broadcast the changes.
func (s *Store) Albums() (*interfaces.AlbumSet, error) {
	return s.replica.Albums()
}

// CommitAlbums queues the current content of the album set to be persisted and broadcast.
func (s *Store) CommitAlbums() error {
	return s.replica.CommitAlbums()
}

// BackendStatus returns the last known status of the backend for a class.
func (s *Store) BackendStatus(class interfaces.Class) interfaces.BackendStatus {
	return s.statusTracker.GetStatus(class)
}

// AddBackendStatusListener subscribes to changes of backend status. The returned channel must be
// read from, or passed to RemoveBackendStatusListener.
func (s *Store) AddBackendStatusListener() <-chan interfaces.BackendStatus {
	return s.statusTracker.GetBroadcaster().AddListener()
}

// RemoveBackendStatusListener unsubscribes a channel returned by AddBackendStatusListener.
func (s *Store) RemoveBackendStatusListener(ch <-chan interfaces.BackendStatus) {
	s.statusTracker.GetBroadcaster().RemoveListener(ch)
}

// Close shuts down the replica.
//
// Values that were set but not yet flushed are dropped and not persisted. Writes already started
// are given a few seconds to finish before the backends and the bus are closed.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.loggers.Info("Closing configuration store replica")
		s.replica.Close()
		if !s.replica.AwaitWrites(closeWriteTimeout) {
			s.loggers.Warn("Timed out waiting for backend writes to finish")
		}
		s.closeComponents()
		s.statusTracker.Close()
	})
	return nil
}

func (s *Store) closeComponents() {
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.loggers.Warnf("Error closing broadcast bus: %s", err)
		}
	}
	for class, backend := range s.backends {
		if err := backend.Close(); err != nil {
			s.loggers.Warnf("Error closing %s backend: %s", class, err)
		}
	}
}
