package interfaces

import (
	"time"
)

// BackendStatus describes whether the backend for one durability class appears to be working.
//
// The status is informational only. Backend failures are never returned to callers of the store:
// a failed read leaves the store permanently uninitialized, and a failed write is dropped.
type BackendStatus struct {
	// Class is the durability class whose backend this describes.
	Class Class

	// Available is false if the last read or write against the backend failed.
	Available bool

	// LastError is the message of the most recent failure, if Available is false.
	LastError string

	// Time is the time when the status was last changed.
	Time time.Time
}
