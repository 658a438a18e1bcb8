package internal

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/snapshelf/syncstore/subsystems"
)

// CachedBackendWrapper puts a TTL cache in front of a slow Backend. Replicas in the same process that
// share the wrapper, including a store that is closed and recreated while another is still open,
// are served from memory instead of repeating the bulk read, and concurrent identical reads are
// collapsed into one.
//
// A key that the backend does not have is cached as absent, so it is not read again until it
// expires.
type CachedBackendWrapper struct {
	core     subsystems.Backend
	cache    *cache.Cache
	requests singleflight.Group
	loggers  ldlog.Loggers

	handlers      map[int]func(map[string]ldvalue.Value)
	lastHandlerID int
	watching      bool
	handlersLock  sync.Mutex
}

// absentMarker is cached for a key that the backend does not have.
type absentMarker struct{}

// NewCachedBackendWrapper creates the wrapper. A zero cacheTTL disables caching, so that only
// concurrent reads are collapsed; a negative cacheTTL caches forever.
func NewCachedBackendWrapper(core subsystems.Backend, cacheTTL time.Duration, loggers ldlog.Loggers) *CachedBackendWrapper {
	var myCache *cache.Cache
	if cacheTTL != 0 {
		myCache = cache.New(cacheTTL, 5*time.Minute)
	}
	return &CachedBackendWrapper{
		core:     core,
		cache:    myCache,
		loggers:  loggers,
		handlers: make(map[int]func(map[string]ldvalue.Value)),
	}
}

// BulkRead implements subsystems.Backend.
func (w *CachedBackendWrapper) BulkRead(ctx context.Context, names []string) (map[string]ldvalue.Value, error) {
	if ret, ok := w.readFromCache(names); ok {
		return ret, nil
	}

	// Use singleflight to ensure that we'll only do this query once even if multiple replicas are
	// requesting the same keys. The shared read must outlive any one caller, so it does not use the
	// caller's cancellation; each caller stops waiting when its own context is done.
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	reqKey := "bulk:" + strings.Join(sorted, ",")
	sharedCtx := context.WithoutCancel(ctx)
	resultCh := w.requests.DoChan(reqKey, func() (interface{}, error) {
		values, err := w.core.BulkRead(sharedCtx, sorted)
		if err != nil {
			return nil, err
		}
		if w.cache != nil {
			for _, name := range sorted {
				if v, ok := values[name]; ok {
					w.cache.Set(name, v, cache.DefaultExpiration)
				} else {
					w.cache.Set(name, absentMarker{}, cache.DefaultExpiration)
				}
			}
		}
		return values, nil
	})
	var result singleflight.Result
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if result.Err != nil {
		return nil, result.Err
	}
	valuesIntf := result.Val
	values, _ := valuesIntf.(map[string]ldvalue.Value) // singleflight.Group.Do returns value as interface{}
	ret := make(map[string]ldvalue.Value, len(names))
	for _, name := range names {
		if v, ok := values[name]; ok {
			ret[name] = v
		}
	}
	return ret, nil
}

func (w *CachedBackendWrapper) readFromCache(names []string) (map[string]ldvalue.Value, bool) {
	if w.cache == nil {
		return nil, false
	}
	ret := make(map[string]ldvalue.Value, len(names))
	for _, name := range names {
		data, present := w.cache.Get(name)
		if !present {
			return nil, false
		}
		if v, ok := data.(ldvalue.Value); ok {
			ret[name] = v
		}
	}
	w.loggers.Debugf("Served bulk read of %d key(s) from cache", len(names))
	return ret, true
}

// Write implements subsystems.Backend. The cache is updated only if the write succeeds; if it
// fails, the affected keys are evicted so that the next read goes to the backend.
func (w *CachedBackendWrapper) Write(ctx context.Context, values map[string]ldvalue.Value) error {
	err := w.core.Write(ctx, values)
	if w.cache != nil {
		for name, v := range values {
			switch {
			case err != nil:
				w.cache.Delete(name)
			case v.IsNull():
				w.cache.Set(name, absentMarker{}, cache.DefaultExpiration)
			default:
				w.cache.Set(name, v, cache.DefaultExpiration)
			}
		}
	}
	return err
}

// AddExternalChangeHandler registers a function to be called with changes that the wrapped backend
// reports as made outside this process, if it is an ExternalChangeSource. The changes are written
// into the cache first. The returned function unregisters the handler.
func (w *CachedBackendWrapper) AddExternalChangeHandler(handler func(map[string]ldvalue.Value)) func() {
	w.handlersLock.Lock()
	defer w.handlersLock.Unlock()
	if source, ok := w.core.(subsystems.ExternalChangeSource); ok && !w.watching {
		w.watching = true
		source.SetExternalChangeHandler(w.externalChange)
	}
	w.lastHandlerID++
	id := w.lastHandlerID
	w.handlers[id] = handler
	return func() {
		w.handlersLock.Lock()
		delete(w.handlers, id)
		w.handlersLock.Unlock()
	}
}

func (w *CachedBackendWrapper) externalChange(values map[string]ldvalue.Value) {
	if w.cache != nil {
		for name, v := range values {
			if v.IsNull() {
				w.cache.Set(name, absentMarker{}, cache.DefaultExpiration)
			} else {
				w.cache.Set(name, v, cache.DefaultExpiration)
			}
		}
	}
	w.handlersLock.Lock()
	handlers := make([]func(map[string]ldvalue.Value), 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.handlersLock.Unlock()
	for _, h := range handlers {
		h(values)
	}
}

// Close closes the wrapped backend.
func (w *CachedBackendWrapper) Close() error {
	if w.cache != nil {
		w.cache.Flush()
	}
	return w.core.Close()
}
