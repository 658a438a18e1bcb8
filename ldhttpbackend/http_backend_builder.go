package ldhttpbackend

import (
	"errors"
	"net/url"
	"strings"

	"github.com/snapshelf/syncstore/subsystems"
)

// HTTPBackendBuilder is a builder for configuring the HTTP backend.
//
// Obtain an instance of this type by calling Backend(). HTTP settings such as proxies, timeouts and
// headers come from the store's HTTP configuration.
type HTTPBackendBuilder struct {
	baseURI   string
	namespace string
}

// Backend returns a configurable builder for an HTTP backend.
func Backend() *HTTPBackendBuilder {
	return &HTTPBackendBuilder{}
}

// BaseURI specifies the base URI of the hub, such as "https://hub.example.com".
func (b *HTTPBackendBuilder) BaseURI(baseURI string) *HTTPBackendBuilder {
	b.baseURI = strings.TrimRight(baseURI, "/")
	return b
}

// Namespace specifies the namespace on the hub. By default this is the name of the durability
// class, such as "replicated". Give the local class a per-machine namespace if it is stored on a
// shared hub.
func (b *HTTPBackendBuilder) Namespace(namespace string) *HTTPBackendBuilder {
	b.namespace = namespace
	return b
}

// Build is called internally by the store.
func (b *HTTPBackendBuilder) Build(clientContext subsystems.ClientContext) (subsystems.Backend, error) {
	if b.baseURI == "" {
		return nil, errors.New("HTTP backend requires a base URI")
	}
	if _, err := url.Parse(b.baseURI); err != nil {
		return nil, err
	}
	namespace := b.namespace
	if namespace == "" {
		namespace = string(clientContext.GetClass())
	}
	if namespace == "" {
		return nil, errors.New("HTTP backend requires a namespace")
	}
	return newHTTPBackend(clientContext, b.baseURI, namespace), nil
}
