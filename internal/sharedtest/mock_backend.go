package sharedtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	th "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/snapshelf/syncstore/subsystems"
)

// MockBackend is a test implementation of subsystems.Backend. Its reads can be held until the test
// releases them, and every call to Write is reported on the Writes channel.
type MockBackend struct {
	// Writes receives a copy of the values of each Write call.
	Writes chan map[string]ldvalue.Value
	// Reads receives the key names of each BulkRead call.
	Reads chan []string

	data           map[string]ldvalue.Value
	readGate       chan struct{}
	readErr        error
	writeErr       error
	writeDelay     time.Duration
	externalChange func(map[string]ldvalue.Value)
	closed         bool
	lock           sync.Mutex
}

// NewMockBackend creates a MockBackend whose reads complete immediately.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		Writes: make(chan map[string]ldvalue.Value, 100),
		Reads:  make(chan []string, 100),
		data:   make(map[string]ldvalue.Value),
	}
}

// WithData sets the initial stored values.
func (m *MockBackend) WithData(values map[string]ldvalue.Value) *MockBackend {
	m.lock.Lock()
	defer m.lock.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return m
}

// HoldReads makes BulkRead block until ReleaseReads is called or the context is cancelled.
func (m *MockBackend) HoldReads() *MockBackend {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.readGate = make(chan struct{})
	return m
}

// ReleaseReads lets any held BulkRead calls complete.
func (m *MockBackend) ReleaseReads() {
	m.lock.Lock()
	gate := m.readGate
	m.readGate = nil
	m.lock.Unlock()
	if gate != nil {
		close(gate)
	}
}

// SetReadError makes BulkRead fail with the specified error.
func (m *MockBackend) SetReadError(err error) {
	m.lock.Lock()
	m.readErr = err
	m.lock.Unlock()
}

// SetWriteError makes Write fail with the specified error. The write is still reported on Writes.
func (m *MockBackend) SetWriteError(err error) {
	m.lock.Lock()
	m.writeErr = err
	m.lock.Unlock()
}

// SetWriteDelay makes each Write call sleep before completing.
func (m *MockBackend) SetWriteDelay(delay time.Duration) {
	m.lock.Lock()
	m.writeDelay = delay
	m.lock.Unlock()
}

// BulkRead returns the stored values for the specified names.
func (m *MockBackend) BulkRead(ctx context.Context, names []string) (map[string]ldvalue.Value, error) {
	m.Reads <- append([]string(nil), names...)
	m.lock.Lock()
	gate := m.readGate
	m.lock.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	ret := make(map[string]ldvalue.Value)
	for _, name := range names {
		if v, ok := m.data[name]; ok {
			ret[name] = v
		}
	}
	return ret, nil
}

// Write stores the values unless a write error was set, and reports them on Writes.
func (m *MockBackend) Write(ctx context.Context, values map[string]ldvalue.Value) error {
	m.lock.Lock()
	delay, err := m.writeDelay, m.writeErr
	m.lock.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	copied := make(map[string]ldvalue.Value, len(values))
	for k, v := range values {
		copied[k] = v
	}
	m.lock.Lock()
	if err == nil {
		for k, v := range values {
			if v.IsNull() {
				delete(m.data, k)
			} else {
				m.data[k] = v
			}
		}
	}
	m.lock.Unlock()
	m.Writes <- copied
	return err
}

// Data returns a copy of the stored values.
func (m *MockBackend) Data() map[string]ldvalue.Value {
	m.lock.Lock()
	defer m.lock.Unlock()
	ret := make(map[string]ldvalue.Value, len(m.data))
	for k, v := range m.data {
		ret[k] = v
	}
	return ret
}

// SetExternalChangeHandler implements subsystems.ExternalChangeSource.
func (m *MockBackend) SetExternalChangeHandler(handler func(map[string]ldvalue.Value)) {
	m.lock.Lock()
	m.externalChange = handler
	m.lock.Unlock()
}

// SimulateExternalChange stores values as if another program had written them, and notifies the
// registered handler.
func (m *MockBackend) SimulateExternalChange(values map[string]ldvalue.Value) {
	m.lock.Lock()
	for k, v := range values {
		m.data[k] = v
	}
	handler := m.externalChange
	m.lock.Unlock()
	if handler != nil {
		handler(values)
	}
}

// Close marks the backend closed.
func (m *MockBackend) Close() error {
	m.lock.Lock()
	m.closed = true
	m.lock.Unlock()
	return nil
}

// IsClosed returns true if Close was called.
func (m *MockBackend) IsClosed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}

// RequireWrite waits for the next Write call and returns its values.
func (m *MockBackend) RequireWrite(t *testing.T, timeout time.Duration) map[string]ldvalue.Value {
	return th.RequireValue(t, m.Writes, timeout, "timed out waiting for backend write")
}

// AssertNoMoreWrites verifies that no Write call happens within the timeout.
func (m *MockBackend) AssertNoMoreWrites(t *testing.T, timeout time.Duration) {
	th.AssertNoMoreValues(t, m.Writes, timeout, "unexpected backend write")
}

var _ subsystems.Backend = (*MockBackend)(nil)
var _ subsystems.ExternalChangeSource = (*MockBackend)(nil)
