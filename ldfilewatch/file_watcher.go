package ldfilewatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const retryDuration = time.Second

type fileWatcher struct {
	watcher  *fsnotify.Watcher
	loggers  ldlog.Loggers
	reload   func()
	paths    []string
	absPaths map[string]bool
}

// WatchFiles sets up a mechanism for a file backend to reread its file whenever the file has been
// modified, created, renamed over, or deleted. Use it as follows:
//
//	ldfilebackend.Backend().FilePath("./settings.yaml").Reloader(ldfilewatch.WatchFiles)
//
// The reload function is called once as soon as the watches are in place, and again after each
// batch of changes. The watcher stops when closeCh is closed.
func WatchFiles(paths []string, loggers ldlog.Loggers, reload func(), closeCh <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create file watcher: %w", err)
	}
	fw := &fileWatcher{
		watcher:  watcher,
		loggers:  loggers,
		reload:   reload,
		paths:    paths,
		absPaths: make(map[string]bool),
	}
	go fw.run(closeCh)
	return nil
}

func (fw *fileWatcher) run(closeCh <-chan struct{}) {
	retryCh := make(chan struct{}, 1)
	scheduleRetry := func() {
		time.AfterFunc(retryDuration, func() {
			select {
			case retryCh <- struct{}{}:
			default:
			}
		})
	}
	for {
		if err := fw.setupWatches(); err != nil {
			fw.loggers.Error(err)
			scheduleRetry()
		}

		// Reloading after the watches are set up means a change made in between is not missed.
		fw.reload()

		if quit := fw.waitForEvents(closeCh, retryCh); quit {
			return
		}
	}
}

// setupWatches watches each file's directory, so that a file replaced by rename is still seen, and
// the file itself if it exists.
func (fw *fileWatcher) setupWatches() error {
	for _, p := range fw.paths {
		dirPath := filepath.Dir(p)
		realDirPath, err := filepath.EvalSymlinks(dirPath)
		if err != nil {
			return fmt.Errorf(`unable to evaluate symlinks for "%s": %w`, dirPath, err)
		}
		if err = fw.watcher.Add(realDirPath); err != nil {
			return fmt.Errorf(`unable to watch path "%s": %w`, realDirPath, err)
		}

		realPath := filepath.Join(realDirPath, filepath.Base(p))
		fw.absPaths[realPath] = true
		if err = fw.watcher.Add(realPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf(`unable to watch path "%s": %w`, realPath, err)
		}
	}
	return nil
}

func (fw *fileWatcher) waitForEvents(closeCh <-chan struct{}, retryCh <-chan struct{}) bool {
	for {
		select {
		case <-closeCh:
			if err := fw.watcher.Close(); err != nil {
				fw.loggers.Errorf("Error closing file watcher: %s", err)
			}
			return true
		case event := <-fw.watcher.Events:
			if !fw.absPaths[event.Name] {
				break
			}
			fw.loggers.Debugf("File changed: %s (%s)", event.Name, event.Op)
			fw.consumeExtraEvents()
			return false
		case err := <-fw.watcher.Errors:
			fw.loggers.Errorf("File watcher error: %s", err)
		case <-retryCh:
			drain(retryCh)
			return false
		}
	}
}

func (fw *fileWatcher) consumeExtraEvents() {
	for {
		select {
		case <-fw.watcher.Events:
		default:
			return
		}
	}
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
