package ldsqlite

import (
	"errors"
	"strings"

	"github.com/snapshelf/syncstore/subsystems"
)

// DefaultBusyTimeoutMillis is the default time that a write waits for another connection's lock.
const DefaultBusyTimeoutMillis = 5000

// SQLiteBackendBuilder is a builder for configuring the SQLite backend.
//
// Obtain an instance of this type by calling Backend().
type SQLiteBackendBuilder struct {
	path              string
	namespace         string
	busyTimeoutMillis int
}

// Backend returns a configurable builder for a SQLite backend.
func Backend() *SQLiteBackendBuilder {
	return &SQLiteBackendBuilder{busyTimeoutMillis: DefaultBusyTimeoutMillis}
}

// Path specifies the database file. It is created if it does not exist.
func (b *SQLiteBackendBuilder) Path(path string) *SQLiteBackendBuilder {
	b.path = path
	return b
}

// Namespace specifies the namespace that values are stored under. By default this is the name of
// the durability class, such as "replicated".
func (b *SQLiteBackendBuilder) Namespace(namespace string) *SQLiteBackendBuilder {
	b.namespace = namespace
	return b
}

// BusyTimeoutMillis sets how long a statement waits for a lock held by another connection before
// failing.
func (b *SQLiteBackendBuilder) BusyTimeoutMillis(millis int) *SQLiteBackendBuilder {
	if millis < 0 {
		millis = 0
	}
	b.busyTimeoutMillis = millis
	return b
}

// Build is called internally by the store.
func (b *SQLiteBackendBuilder) Build(clientContext subsystems.ClientContext) (subsystems.Backend, error) {
	if strings.TrimSpace(b.path) == "" {
		return nil, errors.New("SQLite backend requires a database path")
	}
	namespace := b.namespace
	if namespace == "" {
		namespace = string(clientContext.GetClass())
	}
	if namespace == "" {
		return nil, errors.New("SQLite backend requires a namespace")
	}
	loggers := clientContext.GetLogging().Loggers
	loggers.SetPrefix("SQLiteBackend:")
	backend, err := Open(b.path, namespace, b.busyTimeoutMillis)
	if err != nil {
		return nil, err
	}
	loggers.Infof("Using namespace %q in %s", namespace, backend.path)
	return backend, nil
}
