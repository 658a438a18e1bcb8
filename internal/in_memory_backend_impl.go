package internal

import (
	"context"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// InMemoryBackend is a memory based Backend implementation. It can be shared by several replicas,
// in which case it behaves like one durable storage area that all of them use.
type InMemoryBackend struct {
	data    map[string]ldvalue.Value
	loggers ldlog.Loggers
	sync.RWMutex
}

// NewInMemoryBackend creates an empty InMemoryBackend.
func NewInMemoryBackend(loggers ldlog.Loggers) *InMemoryBackend {
	return &InMemoryBackend{
		data:    make(map[string]ldvalue.Value),
		loggers: loggers,
	}
}

// BulkRead returns the stored values of the named keys. Keys that are not stored are omitted.
func (b *InMemoryBackend) BulkRead(ctx context.Context, names []string) (map[string]ldvalue.Value, error) {
	b.RLock()
	defer b.RUnlock()
	ret := make(map[string]ldvalue.Value, len(names))
	for _, name := range names {
		if v, ok := b.data[name]; ok {
			ret[name] = v
		}
	}
	return ret, nil
}

// Write stores the values. A null value deletes the key.
func (b *InMemoryBackend) Write(ctx context.Context, values map[string]ldvalue.Value) error {
	b.Lock()
	defer b.Unlock()
	for k, v := range values {
		if v.IsNull() {
			delete(b.data, k)
		} else {
			b.data[k] = v
		}
	}
	b.loggers.Debugf("Stored %d value(s)", len(values))
	return nil
}

// Snapshot returns a copy of everything stored.
func (b *InMemoryBackend) Snapshot() map[string]ldvalue.Value {
	b.RLock()
	defer b.RUnlock()
	ret := make(map[string]ldvalue.Value, len(b.data))
	for k, v := range b.data {
		ret[k] = v
	}
	return ret
}

// Close does nothing; the data stays available to anyone else sharing the backend.
func (b *InMemoryBackend) Close() error {
	return nil
}
