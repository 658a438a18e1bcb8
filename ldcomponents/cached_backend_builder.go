package ldcomponents

import (
	"context"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/internal"
	"github.com/snapshelf/syncstore/subsystems"
)

// CachedBackendDefaultCacheTime is the default amount of time that values read from or written to a
// backend are cached in memory, if you use CachedBackend(). You can specify otherwise with the
// CachedBackendBuilder.CacheTime() option.
const CachedBackendDefaultCacheTime = 15 * time.Second

// CachedBackend returns a configuration builder that puts an in-memory cache in front of another
// backend.
//
// The cache is shared by every store built from the same builder, so replicas in one process that
// start together read the backend only once:
//
//	replicated := ldcomponents.CachedBackend(ldsqlite.Backend().Path("settings.db")).CacheSeconds(30)
//	store1, _ := syncstore.New(syncstore.Config{Replicated: replicated, Bus: hub})
//	store2, _ := syncstore.New(syncstore.Config{Replicated: replicated, Bus: hub})
//
// The wrapped backend is built when the first store is created and closed when the last of them
// is closed.
func CachedBackend(
	backendFactory subsystems.ComponentConfigurer[subsystems.Backend],
) *CachedBackendBuilder {
	return &CachedBackendBuilder{
		backendFactory: backendFactory,
		cacheTTL:       CachedBackendDefaultCacheTime,
	}
}

// CachedBackendBuilder is a configurable factory for a cached backend.
type CachedBackendBuilder struct {
	backendFactory subsystems.ComponentConfigurer[subsystems.Backend]
	cacheTTL       time.Duration
	wrapper        *internal.CachedBackendWrapper
	refCount       int
	lock           sync.Mutex
}

// CacheTime specifies the cache TTL. Values will be evicted from the cache after this amount of time
// from the time when they were originally cached.
//
// If the value is zero, caching is disabled (equivalent to NoCaching).
//
// If the value is negative, data is cached forever (equivalent to CacheForever).
func (b *CachedBackendBuilder) CacheTime(cacheTime time.Duration) *CachedBackendBuilder {
	b.cacheTTL = cacheTime
	return b
}

// CacheSeconds is a shortcut for calling CacheTime with a duration in seconds.
func (b *CachedBackendBuilder) CacheSeconds(cacheSeconds int) *CachedBackendBuilder {
	return b.CacheTime(time.Duration(cacheSeconds) * time.Second)
}

// CacheForever specifies that the in-memory cache should never expire. Values changed by other
// processes will then only be seen through the bus or through external change notifications.
func (b *CachedBackendBuilder) CacheForever() *CachedBackendBuilder {
	return b.CacheTime(-1 * time.Millisecond)
}

// NoCaching specifies that values should not be cached. Concurrent identical reads are still
// collapsed into one.
func (b *CachedBackendBuilder) NoCaching() *CachedBackendBuilder {
	return b.CacheTime(0)
}

// Build is called internally by the store.
func (b *CachedBackendBuilder) Build(clientContext subsystems.ClientContext) (subsystems.Backend, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.wrapper == nil {
		core, err := b.backendFactory.Build(clientContext)
		if err != nil {
			return nil, err
		}
		loggers := clientContext.GetLogging().Loggers
		loggers.SetPrefix("CachedBackend:")
		b.wrapper = internal.NewCachedBackendWrapper(core, b.cacheTTL, loggers)
	}
	b.refCount++
	return &cachedBackendHandle{builder: b, wrapper: b.wrapper}, nil
}

func (b *CachedBackendBuilder) release() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.refCount--
	if b.refCount > 0 || b.wrapper == nil {
		return nil
	}
	w := b.wrapper
	b.wrapper = nil
	return w.Close()
}

// cachedBackendHandle is one store's reference to a shared CachedBackendWrapper.
type cachedBackendHandle struct {
	builder       *CachedBackendBuilder
	wrapper       *internal.CachedBackendWrapper
	removeHandler func()
	closeOnce     sync.Once
}

func (h *cachedBackendHandle) BulkRead(ctx context.Context, names []string) (map[string]ldvalue.Value, error) {
	return h.wrapper.BulkRead(ctx, names)
}

func (h *cachedBackendHandle) Write(ctx context.Context, values map[string]ldvalue.Value) error {
	return h.wrapper.Write(ctx, values)
}

func (h *cachedBackendHandle) SetExternalChangeHandler(handler func(map[string]ldvalue.Value)) {
	h.removeHandler = h.wrapper.AddExternalChangeHandler(handler)
}

func (h *cachedBackendHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		if h.removeHandler != nil {
			h.removeHandler()
		}
		err = h.builder.release()
	})
	return err
}
