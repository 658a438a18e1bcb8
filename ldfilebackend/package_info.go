// Package ldfilebackend provides a backend that keeps one durability class in a JSON or YAML file.
//
//	config := syncstore.Config{
//	    Replicated: ldfilebackend.Backend().FilePath("/path/to/shared/replicated.json"),
//	    Local:      ldfilebackend.Backend().FilePath("local.yaml").Reloader(ldfilewatch.WatchFiles),
//	}
//
// The file is a single object mapping key names to values. Files whose name ends in ".yaml" or
// ".yml" are written as YAML, and any other file is written as JSON; either format is accepted
// when reading. Each write replaces the file atomically.
//
// If a Reloader is configured, changes made to the file by other programs are reported to the store
// as external changes, so that they show up in its in-memory values without a restart.
package ldfilebackend
