// Package ldhttpbackend stores values on a sync hub over HTTP, so that replicas on different
// machines share the same durable namespace.
//
//	config := syncstore.Config{
//	    Replicated: ldhttpbackend.Backend().BaseURI("https://hub.example.com"),
//	    Bus:        ldssebus.Bus().BaseURI("https://hub.example.com"),
//	}
//
// The package also provides NewNamespaceHandler, the server side of the protocol, which the
// syncstore-hub command serves on top of any other backend.
//
// Protocol:
//
//	GET   /namespaces/{namespace}?keys=a,b   200, body {"a": value, ...}; supports If-None-Match
//	PATCH /namespaces/{namespace}            body {"a": value, "b": null}; 204
//
// Reads are cached with HTTP validators, so an unchanged namespace costs a 304 response.
package ldhttpbackend
