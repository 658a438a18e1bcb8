// Package replica implements one context's in-memory copy of the configuration store: the initial
// load from the backends, key-validated access, debounced persistence, and the exchange of updates
// with other replicas over the broadcast bus.
//
// These parts share the replica's state and lock, so they live in one type, split across files by
// responsibility.
package replica

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/maps"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/internal"
	"github.com/snapshelf/syncstore/subsystems"
)

// DefaultDebounceWindow is the quiet period used when Config.DebounceWindow is not set.
const DefaultDebounceWindow = 25 * time.Millisecond

// Config contains everything a Replica needs. Backends must have an entry for both classes.
type Config struct {
	ID             string
	Backends       map[interfaces.Class]subsystems.Backend
	Bus            subsystems.BroadcastBus
	DebounceWindow time.Duration
	StatusTracker  *internal.BackendStatusTracker
	Loggers        ldlog.Loggers
	LogValues      bool
}

// Replica is the in-memory mirror of the store for one hosting context.
type Replica struct {
	id             string
	backends       map[interfaces.Class]subsystems.Backend
	bus            subsystems.BroadcastBus
	debounceWindow time.Duration
	statusTracker  *internal.BackendStatusTracker
	loggers        ldlog.Loggers
	logValues      bool

	lock              sync.Mutex
	state             interfaces.LifecycleState
	values            map[interfaces.Key]ldvalue.Value
	albums            *interfaces.AlbumSet
	loadedClasses     map[interfaces.Class]bool
	mergedBeforeReady map[interfaces.Key]bool
	readyListeners    []func()
	drainingListeners bool
	readyCh           chan struct{}
	pending           map[interfaces.Class]map[interfaces.Key]ldvalue.Value
	timers            map[interfaces.Class]*time.Timer
	timerGenerations  map[interfaces.Class]uint64
	writers           map[interfaces.Class]*serialWriter
	flushLocks        map[interfaces.Class]*sync.Mutex
	closed            bool

	cancelLoad context.CancelFunc
	closeOnce  sync.Once
}

// New creates a replica and immediately starts loading it from the backends.
func New(config Config) *Replica {
	window := config.DebounceWindow
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	tracker := config.StatusTracker
	if tracker == nil {
		tracker = internal.NewBackendStatusTracker(config.Loggers)
	}
	r := &Replica{
		id:                config.ID,
		backends:          config.Backends,
		bus:               config.Bus,
		debounceWindow:    window,
		statusTracker:     tracker,
		loggers:           config.Loggers,
		logValues:         config.LogValues,
		state:             interfaces.StateConstructed,
		values:            make(map[interfaces.Key]ldvalue.Value),
		albums:            interfaces.NewAlbumSet(),
		loadedClasses:     make(map[interfaces.Class]bool),
		mergedBeforeReady: make(map[interfaces.Key]bool),
		readyListeners:    make([]func(), 0),
		readyCh:           make(chan struct{}),
		pending:           make(map[interfaces.Class]map[interfaces.Key]ldvalue.Value),
		timers:            make(map[interfaces.Class]*time.Timer),
		timerGenerations:  make(map[interfaces.Class]uint64),
		writers:           make(map[interfaces.Class]*serialWriter),
		flushLocks:        make(map[interfaces.Class]*sync.Mutex),
	}
	for _, c := range interfaces.Classes() {
		r.pending[c] = make(map[interfaces.Key]ldvalue.Value)
		r.writers[c] = newSerialWriter(c, config.Backends[c], tracker, config.Loggers)
		r.flushLocks[c] = &sync.Mutex{}
	}
	r.subscribe()
	r.startLoading()
	return r
}

// ID returns the replica's identifier.
func (r *Replica) ID() string {
	return r.id
}

// State returns the current lifecycle state.
func (r *Replica) State() interfaces.LifecycleState {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state
}

// ReadyCh returns a channel that is closed when the replica becomes ready.
func (r *Replica) ReadyCh() <-chan struct{} {
	return r.readyCh
}

// Close stops the debounce timers and the initial load if it is still running. Pending writes
// that have not been flushed are dropped. Writes that were already flushed keep running; use
// AwaitWrites to wait for them.
func (r *Replica) Close() {
	r.closeOnce.Do(func() {
		r.lock.Lock()
		r.closed = true
		dropped := 0
		for c, t := range r.timers {
			t.Stop()
			delete(r.timers, c)
		}
		for c, p := range r.pending {
			dropped += len(p)
			r.pending[c] = make(map[interfaces.Key]ldvalue.Value)
		}
		r.readyListeners = nil
		r.lock.Unlock()

		if r.cancelLoad != nil {
			r.cancelLoad()
		}
		if dropped > 0 {
			r.loggers.Warnf("Replica closed with %d unsaved value(s); they were not persisted", dropped)
		}
	})
}

// AwaitWrites waits until all flushed writes have finished or the timeout elapses, and returns
// true if they finished.
func (r *Replica) AwaitWrites(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		for _, c := range interfaces.Classes() {
			r.writers[c].wait()
		}
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (r *Replica) describeValues(values map[string]ldvalue.Value) string {
	if r.logValues {
		b := ldvalue.ObjectBuildWithCapacity(len(values))
		for k, v := range values {
			b.Set(k, v)
		}
		return b.Build().JSONString()
	}
	names := maps.Keys(values)
	sort.Strings(names)
	return "[" + strings.Join(names, ", ") + "]"
}
