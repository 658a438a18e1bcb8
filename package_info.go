// Package syncstore is the main package of the synchronous configuration store.
//
// A [Store] gives synchronous read and write access to a fixed set of configuration values whose
// durable home is a slow, asynchronous key-value backend. Any number of stores (replicas) may be
// created independently, for instance one per process or per hosting context; they are kept in
// step only through their shared backends and a broadcast bus.
//
// Reads and writes are served from memory. Writes become visible immediately to the replica that
// made them, and are persisted and broadcast to the other replicas after a short quiet period.
// No value can be read or written until the replica's initial load has completed; use
// [Store.OnReady], [Store.ReadyCh] or [WhenReady] to wait for that.
//
// The backends and the bus are configured with builders from
// [github.com/snapshelf/syncstore/ldcomponents] and the integration packages (ldfilebackend,
// ldsqlite, ldhttpbackend, ldssebus).
package syncstore
