package replica

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/subsystems"
)

const externalChangeSource = "external change"

func (r *Replica) subscribe() {
	if r.bus != nil {
		r.bus.Subscribe(r.receive)
	}
	for _, c := range interfaces.Classes() {
		class := c
		if source, ok := r.backends[class].(subsystems.ExternalChangeSource); ok {
			source.SetExternalChangeHandler(func(values map[string]ldvalue.Value) {
				r.merge(class, values, externalChangeSource)
			})
		}
	}
}

// publish sends flushed values to the other replicas. Delivery is up to the bus; nothing is
// retried or acknowledged.
func (r *Replica) publish(class interfaces.Class, values map[string]ldvalue.Value) {
	if r.bus == nil {
		return
	}
	r.bus.Send(interfaces.StoreUpdate{Sender: r.id, Class: class, Values: values})
}

func (r *Replica) receive(update interfaces.StoreUpdate) {
	if update.Sender == r.id {
		return
	}
	if !update.Class.IsValid() {
		r.loggers.Warnf("Ignoring update from replica %q with unknown class %q", update.Sender, update.Class)
		return
	}
	r.merge(update.Class, update.Values, "replica "+update.Sender)
}

// merge overwrites the in-memory values of the named keys. It never adds anything to the pending
// writes: the values are already persisted (or being persisted) by whoever produced them, and
// writing them back would make every replica echo every update.
//
// Values merged before the initial load completes take precedence over the loaded values, since
// they were flushed after the load began.
func (r *Replica) merge(class interfaces.Class, values map[string]ldvalue.Value, source string) {
	if r.loggers.IsDebugEnabled() {
		r.loggers.Debugf("Applying %s configuration values from %s: %s", class, source, r.describeValues(values))
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return
	}
	for name, value := range values {
		key, err := interfaces.ParseKey(name)
		if err != nil || key.Class() != class {
			r.loggers.Debugf("Ignoring %q from %s: not a %s key", name, source, class)
			continue
		}
		if err := interfaces.CheckValue(key, value); err != nil {
			r.loggers.Warnf("Ignoring value from %s: %s", source, err)
			continue
		}
		r.applyLocked(key, value)
		if r.state != interfaces.StateReady {
			r.mergedBeforeReady[key] = true
		}
	}
}
