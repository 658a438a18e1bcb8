// Package ldsqlite provides a backend that keeps store values in a SQLite database, using the pure
// Go driver from modernc.org/sqlite.
//
//	config := syncstore.Config{
//	    Replicated: ldsqlite.Backend().Path("/var/lib/app/settings.db"),
//	    Local:      ldsqlite.Backend().Path("/var/lib/app/settings.db"),
//	}
//
// Both durability classes can share a database file: each class is stored under its own namespace
// in the same table. Any number of processes may open the same file.
package ldsqlite
