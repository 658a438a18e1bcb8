package replica

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/interfaces"
)

// Get returns the current value of a key, or a null value if it is unset.
//
// An invalid key is reported before readiness is considered, so a schema violation is always
// reported as such.
func (r *Replica) Get(key interfaces.Key) (ldvalue.Value, error) {
	if !key.IsValid() {
		return ldvalue.Null(), interfaces.UnknownKeyError{Key: key}
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state != interfaces.StateReady {
		return ldvalue.Null(), interfaces.NotReadyError{Key: key, Operation: "get"}
	}
	if key == interfaces.KeyAlbums {
		if !r.albums.IsSet() {
			return ldvalue.Null(), nil
		}
		return r.albums.AsValue(), nil
	}
	if v, ok := r.values[key]; ok {
		return v, nil
	}
	return ldvalue.Null(), nil
}

// Set updates the in-memory value of a key, so that it is immediately visible to Get, and queues
// it to be persisted and broadcast after the debounce window.
func (r *Replica) Set(key interfaces.Key, value ldvalue.Value) error {
	if err := interfaces.CheckValue(key, value); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state != interfaces.StateReady {
		return interfaces.NotReadyError{Key: key, Operation: "set"}
	}
	r.applyLocked(key, value)
	r.enqueueLocked(key, value)
	return nil
}

// Albums returns the live album set. Changes made to it are not persisted until CommitAlbums.
func (r *Replica) Albums() (*interfaces.AlbumSet, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state != interfaces.StateReady {
		return nil, interfaces.NotReadyError{Key: interfaces.KeyAlbums, Operation: "get"}
	}
	return r.albums, nil
}

// CommitAlbums queues a copy of the current album set to be persisted and broadcast.
func (r *Replica) CommitAlbums() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state != interfaces.StateReady {
		return interfaces.NotReadyError{Key: interfaces.KeyAlbums, Operation: "set"}
	}
	r.enqueueLocked(interfaces.KeyAlbums, r.albums.AsValue())
	return nil
}
