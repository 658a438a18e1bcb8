package ldfilebackend

import (
	"errors"
	"path/filepath"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/snapshelf/syncstore/subsystems"
)

// ReloaderFactory is a function type used with FileBackendBuilder.Reloader, to specify a mechanism for
// detecting when the file should be reread. Its standard implementation is in the ldfilewatch package.
type ReloaderFactory func(paths []string, loggers ldlog.Loggers, reload func(), closeCh <-chan struct{}) error

// FileBackendBuilder is a builder for configuring the file backend.
//
// Obtain an instance of this type by calling Backend(). Builder calls can be chained, for example:
//
//	config.Local = ldfilebackend.Backend().Directory(settingsDir)
type FileBackendBuilder struct {
	filePath        string
	directory       string
	reloaderFactory ReloaderFactory
}

// Backend returns a configurable builder for a file backend.
func Backend() *FileBackendBuilder {
	return &FileBackendBuilder{}
}

// FilePath specifies the file to use. This overrides Directory.
func (b *FileBackendBuilder) FilePath(path string) *FileBackendBuilder {
	b.filePath = path
	return b
}

// Directory specifies a directory in which the file is named after the durability class, such as
// "replicated.json". This allows the same builder to be used for both classes.
func (b *FileBackendBuilder) Directory(dir string) *FileBackendBuilder {
	b.directory = dir
	return b
}

// Reloader specifies a mechanism for noticing changes made to the file by other programs.
//
// It is normally used with the ldfilewatch package:
//
//	ldfilebackend.Backend().FilePath(path).Reloader(ldfilewatch.WatchFiles)
func (b *FileBackendBuilder) Reloader(reloaderFactory ReloaderFactory) *FileBackendBuilder {
	b.reloaderFactory = reloaderFactory
	return b
}

// Build is called internally by the store.
func (b *FileBackendBuilder) Build(clientContext subsystems.ClientContext) (subsystems.Backend, error) {
	path := b.filePath
	if path == "" {
		if b.directory == "" || clientContext.GetClass() == "" {
			return nil, errors.New("file backend requires a file path or a directory")
		}
		path = filepath.Join(b.directory, string(clientContext.GetClass())+".json")
	}
	fb, err := newFileBackend(clientContext, path, b.reloaderFactory)
	if err != nil {
		return nil, err
	}
	return fb, nil
}
