// Package ldfilewatch lets a file-based backend notice when its file is changed by another
// program, such as a user editing settings by hand or another process sharing the file.
//
// It is used with the ldfilebackend package:
//
//	config := syncstore.Config{
//	    Local: ldfilebackend.Backend().
//	        FilePath("local.json").
//	        Reloader(ldfilewatch.WatchFiles),
//	}
//
// The two packages are separate so as to avoid bringing in fsnotify for users who do not need
// change detection.
package ldfilewatch
