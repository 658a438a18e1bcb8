package subsystems

import (
	"net/http"
)

// HTTPConfiguration encapsulates HTTP configuration that applies to all components that talk to a
// sync hub.
//
// See ldcomponents.HTTPConfigurationBuilder for more details on these properties.
type HTTPConfiguration struct {
	// DefaultHeaders contains the basic headers that should be added to all HTTP requests. This map
	// is never modified once created.
	DefaultHeaders http.Header

	// CreateHTTPClient is a function that returns a new HTTP client instance based on the configuration.
	//
	// The store will ensure that this field is non-nil before passing it to any component.
	CreateHTTPClient func() *http.Client
}
