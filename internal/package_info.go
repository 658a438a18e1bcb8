// Package internal contains implementation details that are shared between packages, but are not
// exposed to application code. The replica subpackage holds the replica engine itself.
package internal
