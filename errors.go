package syncstore

import (
	"github.com/snapshelf/syncstore/interfaces"
)

// NotReadyError is returned by Store.Get and Store.Set, and raised as a panic by the typed
// accessors, when the store is used before its initial load has completed.
type NotReadyError = interfaces.NotReadyError

// UnknownKeyError is returned when a key is not part of the schema.
type UnknownKeyError = interfaces.UnknownKeyError

// InvalidValueError is returned when a value does not have the kind required by its key.
type InvalidValueError = interfaces.InvalidValueError
