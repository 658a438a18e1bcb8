package replica

import (
	"context"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/internal"
	"github.com/snapshelf/syncstore/subsystems"
)

// enqueueLocked adds a value to the pending writes of its class and restarts that class's
// debounce timer. The caller must hold the lock.
func (r *Replica) enqueueLocked(key interfaces.Key, value ldvalue.Value) {
	if r.closed {
		return
	}
	class := key.Class()
	r.pending[class][key] = value
	r.triggerLocked(class)
}

// triggerLocked cancels any pending flush timer for the class and starts a new one, so that only
// the last trigger within a quiet window leads to a flush. Each timer carries a generation number;
// a timer that fires after it has been superseded does nothing.
func (r *Replica) triggerLocked(class interfaces.Class) {
	if t := r.timers[class]; t != nil {
		t.Stop()
	}
	r.timerGenerations[class]++
	generation := r.timerGenerations[class]
	r.timers[class] = time.AfterFunc(r.debounceWindow, func() {
		r.flush(class, generation)
	})
}

// flush takes the pending writes of a class, hands them to the class's writer, and broadcasts
// them. The pending set is cleared as soon as the write is queued, not when it completes.
//
// Flushes of one class run one at a time from snapshot to broadcast, so both the backend and the
// bus see them in the order the snapshots were taken.
func (r *Replica) flush(class interfaces.Class, generation uint64) {
	flushLock := r.flushLocks[class]
	flushLock.Lock()
	defer flushLock.Unlock()

	r.lock.Lock()
	if r.closed || r.timerGenerations[class] != generation {
		r.lock.Unlock()
		return
	}
	delete(r.timers, class)
	batch := r.pending[class]
	r.pending[class] = make(map[interfaces.Key]ldvalue.Value)
	r.lock.Unlock()

	if len(batch) == 0 {
		return
	}
	values := make(map[string]ldvalue.Value, len(batch))
	for k, v := range batch {
		values[k.String()] = v
	}
	if r.loggers.IsDebugEnabled() {
		r.loggers.Debugf("Saving %s configuration values: %s", class, r.describeValues(values))
	}
	r.writers[class].enqueue(values)
	r.publish(class, values)
}

// serialWriter performs the backend writes of one class, one at a time and in the order they were
// flushed, so that a slow write can never be overtaken by a later one. Callers never wait for it.
type serialWriter struct {
	class         interfaces.Class
	backend       subsystems.Backend
	statusTracker *internal.BackendStatusTracker
	loggers       ldlog.Loggers
	queue         []map[string]ldvalue.Value
	running       bool
	idle          *sync.Cond
	lock          sync.Mutex
}

func newSerialWriter(
	class interfaces.Class,
	backend subsystems.Backend,
	statusTracker *internal.BackendStatusTracker,
	loggers ldlog.Loggers,
) *serialWriter {
	w := &serialWriter{
		class:         class,
		backend:       backend,
		statusTracker: statusTracker,
		loggers:       loggers,
	}
	w.idle = sync.NewCond(&w.lock)
	return w
}

func (w *serialWriter) enqueue(values map[string]ldvalue.Value) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.queue = append(w.queue, values)
	if !w.running {
		w.running = true
		go w.run()
	}
}

func (w *serialWriter) run() {
	for {
		w.lock.Lock()
		if len(w.queue) == 0 {
			w.running = false
			w.idle.Broadcast()
			w.lock.Unlock()
			return
		}
		values := w.queue[0]
		w.queue = w.queue[1:]
		w.lock.Unlock()

		// The write is attempted exactly once; failures are logged and otherwise dropped.
		err := w.backend.Write(context.Background(), values)
		w.statusTracker.RecordResult(w.class, err)
		if err != nil {
			w.loggers.Errorf("Failed to save %d %s configuration value(s); they will not be retried: %s",
				len(values), w.class, err)
		}
	}
}

func (w *serialWriter) wait() {
	w.lock.Lock()
	for w.running {
		w.idle.Wait()
	}
	w.lock.Unlock()
}
