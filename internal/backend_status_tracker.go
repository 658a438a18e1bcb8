package internal

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/snapshelf/syncstore/interfaces"
)

// BackendStatusTracker records the last known status of the backend for each durability class and
// notifies listeners when one changes.
type BackendStatusTracker struct {
	statuses    map[interfaces.Class]interfaces.BackendStatus
	broadcaster *Broadcaster[interfaces.BackendStatus]
	loggers     ldlog.Loggers
	lock        sync.Mutex
}

// NewBackendStatusTracker creates a BackendStatusTracker in which both backends are available.
func NewBackendStatusTracker(loggers ldlog.Loggers) *BackendStatusTracker {
	now := time.Now()
	statuses := make(map[interfaces.Class]interfaces.BackendStatus)
	for _, c := range interfaces.Classes() {
		statuses[c] = interfaces.BackendStatus{Class: c, Available: true, Time: now}
	}
	return &BackendStatusTracker{
		statuses:    statuses,
		broadcaster: NewBroadcaster[interfaces.BackendStatus](),
		loggers:     loggers,
	}
}

// GetStatus returns the last known status for a class.
func (t *BackendStatusTracker) GetStatus(class interfaces.Class) interfaces.BackendStatus {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.statuses[class]
}

// GetBroadcaster returns the broadcaster that status listeners subscribe to.
func (t *BackendStatusTracker) GetBroadcaster() *Broadcaster[interfaces.BackendStatus] {
	return t.broadcaster
}

// RecordResult updates the status of a class after a backend operation. A nil error means the
// operation succeeded. Listeners are only notified if availability or the error changed.
func (t *BackendStatusTracker) RecordResult(class interfaces.Class, err error) {
	newStatus := interfaces.BackendStatus{Class: class, Available: err == nil, Time: time.Now()}
	if err != nil {
		newStatus.LastError = err.Error()
	}
	t.lock.Lock()
	old := t.statuses[class]
	modified := old.Available != newStatus.Available || old.LastError != newStatus.LastError
	if modified {
		t.statuses[class] = newStatus
	}
	t.lock.Unlock()
	if !modified {
		return
	}
	if newStatus.Available {
		t.loggers.Warnf("Backend for %s keys is available again", class)
	}
	t.broadcaster.Broadcast(newStatus)
}

// Close closes all listener channels.
func (t *BackendStatusTracker) Close() {
	t.broadcaster.Close()
}
