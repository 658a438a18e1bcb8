package ldcomponents

import (
	"context"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/internal"
	"github.com/snapshelf/syncstore/subsystems"
)

type inMemoryBackendFactory struct{}

func (f inMemoryBackendFactory) Build(clientContext subsystems.ClientContext) (subsystems.Backend, error) {
	loggers := clientContext.GetLogging().Loggers
	loggers.SetPrefix("InMemoryBackend:")
	return internal.NewInMemoryBackend(loggers), nil
}

// InMemoryBackend returns a factory for a private in-memory backend. Each store that uses it gets its
// own empty storage, which is discarded when the store is closed. This is the default for both
// classes.
func InMemoryBackend() subsystems.ComponentConfigurer[subsystems.Backend] {
	return inMemoryBackendFactory{}
}

// SharedMemoryBackend is an in-memory backend that several stores in the same process can share,
// standing in for a durable storage area that all replicas use:
//
//	shared := ldcomponents.NewSharedMemoryBackend()
//	config := syncstore.Config{Replicated: shared, Bus: hub}
//
// Closing a store does not clear the shared data.
type SharedMemoryBackend struct {
	backend *internal.InMemoryBackend
}

// NewSharedMemoryBackend creates an empty SharedMemoryBackend.
func NewSharedMemoryBackend() *SharedMemoryBackend {
	return &SharedMemoryBackend{backend: internal.NewInMemoryBackend(ldlog.NewDisabledLoggers())}
}

// Build is called internally by the store.
func (s *SharedMemoryBackend) Build(clientContext subsystems.ClientContext) (subsystems.Backend, error) {
	return s.backend, nil
}

// Put stores a value directly, as if it had been persisted earlier.
func (s *SharedMemoryBackend) Put(name string, value ldvalue.Value) {
	_ = s.backend.Write(context.Background(), map[string]ldvalue.Value{name: value})
}

// Snapshot returns a copy of everything stored.
func (s *SharedMemoryBackend) Snapshot() map[string]ldvalue.Value {
	return s.backend.Snapshot()
}
