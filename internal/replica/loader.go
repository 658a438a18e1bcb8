package replica

import (
	"context"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/interfaces"
)

func (r *Replica) startLoading() {
	ctx, cancel := context.WithCancel(context.Background())
	r.lock.Lock()
	r.state = interfaces.StateLoading
	r.cancelLoad = cancel
	r.lock.Unlock()
	for _, c := range interfaces.Classes() {
		go r.load(ctx, c)
	}
}

// load performs the one bulk read for a class. There is no timeout and no retry: if the read
// hangs or fails, the replica never becomes ready.
func (r *Replica) load(ctx context.Context, class interfaces.Class) {
	keys := interfaces.KeysOf(class)
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.String())
	}
	values, err := r.backends[class].BulkRead(ctx, names)
	if ctx.Err() != nil {
		// Cancelled by Close; the backend has not failed.
		return
	}
	r.statusTracker.RecordResult(class, err)
	if err != nil {
		r.loggers.Errorf("Unable to load %s configuration values; store will remain uninitialized: %s", class, err)
		return
	}
	if r.loggers.IsDebugEnabled() {
		r.loggers.Debugf("Loaded %s configuration values: %s", class, r.describeValues(values))
	}

	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return
	}
	for name, value := range values {
		key, err := interfaces.ParseKey(name)
		if err != nil || key.Class() != class {
			r.loggers.Warnf("Ignoring %q from %s backend: not a %s key", name, class, class)
			continue
		}
		if err := interfaces.CheckValue(key, value); err != nil {
			r.loggers.Warnf("Ignoring stored value from %s backend: %s", class, err)
			continue
		}
		if r.mergedBeforeReady[key] {
			continue
		}
		r.applyLocked(key, value)
	}
	r.loadedClasses[class] = true
	becameReady := len(r.loadedClasses) == len(interfaces.Classes())
	if becameReady {
		r.state = interfaces.StateReady
		r.mergedBeforeReady = nil
		r.drainingListeners = true
		close(r.readyCh)
	}
	r.lock.Unlock()

	if becameReady {
		r.loggers.Info("Configuration store is ready")
		r.runReadyListeners()
	}
}

// applyLocked stores a value in the in-memory state. The caller must hold the lock.
func (r *Replica) applyLocked(key interfaces.Key, value ldvalue.Value) {
	if key == interfaces.KeyAlbums {
		r.albums.Replace(value)
		return
	}
	if value.IsNull() {
		delete(r.values, key)
		return
	}
	r.values[key] = value
}

// OnReady calls fn once the replica is ready. If it is already ready, fn is called immediately on
// the caller's goroutine. Otherwise fn is queued, and queued functions are called in registration
// order on the loader's goroutine. A function registered while the queue is being run is added to
// the end of the queue. If the replica is closed before it becomes ready, queued functions are
// never called.
func (r *Replica) OnReady(fn func()) {
	r.lock.Lock()
	if r.state != interfaces.StateReady || r.drainingListeners {
		if !r.closed {
			r.readyListeners = append(r.readyListeners, fn)
		}
		r.lock.Unlock()
		return
	}
	r.lock.Unlock()
	fn()
}

func (r *Replica) runReadyListeners() {
	for {
		r.lock.Lock()
		if len(r.readyListeners) == 0 {
			r.readyListeners = nil
			r.drainingListeners = false
			r.lock.Unlock()
			return
		}
		fn := r.readyListeners[0]
		r.readyListeners = r.readyListeners[1:]
		r.lock.Unlock()
		fn()
	}
}
