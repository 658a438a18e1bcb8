package interfaces

import (
	"sort"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// AlbumSet is the live mapping of album IDs to album titles held by a store.
//
// Unlike the other values in the store, albums are edited in place: callers obtain the set from
// the store, call Put or Remove, and then ask the store to commit the albums. Edits are not
// persisted or broadcast until that commit. The store replaces the contents of the set when it
// loads from the backend or receives an update from another replica.
//
// Until albums are loaded, received or edited, the set is empty and unset: the store then reads
// the albums key as null, like any other unset key.
//
// All methods are safe for concurrent use.
type AlbumSet struct {
	titles map[string]string
	isSet  bool
	lock   sync.RWMutex
}

// NewAlbumSet creates an empty AlbumSet.
func NewAlbumSet() *AlbumSet {
	return &AlbumSet{titles: make(map[string]string)}
}

// Put adds an album or changes its title.
func (a *AlbumSet) Put(id, title string) {
	a.lock.Lock()
	a.titles[id] = title
	a.isSet = true
	a.lock.Unlock()
}

// Remove deletes an album, if present.
func (a *AlbumSet) Remove(id string) {
	a.lock.Lock()
	delete(a.titles, id)
	a.isSet = true
	a.lock.Unlock()
}

// Title returns the title of an album and whether it exists.
func (a *AlbumSet) Title(id string) (string, bool) {
	a.lock.RLock()
	defer a.lock.RUnlock()
	t, ok := a.titles[id]
	return t, ok
}

// IsSet returns false if the set has never been loaded, received or edited, or was last replaced
// with a null value.
func (a *AlbumSet) IsSet() bool {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.isSet
}

// Len returns the number of albums.
func (a *AlbumSet) Len() int {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return len(a.titles)
}

// IDs returns the album IDs in sorted order.
func (a *AlbumSet) IDs() []string {
	a.lock.RLock()
	ret := make([]string, 0, len(a.titles))
	for id := range a.titles {
		ret = append(ret, id)
	}
	a.lock.RUnlock()
	sort.Strings(ret)
	return ret
}

// Snapshot returns a copy of the current contents.
func (a *AlbumSet) Snapshot() map[string]string {
	a.lock.RLock()
	defer a.lock.RUnlock()
	ret := make(map[string]string, len(a.titles))
	for id, title := range a.titles {
		ret[id] = title
	}
	return ret
}

// AsValue returns the current contents as a JSON object value.
func (a *AlbumSet) AsValue() ldvalue.Value {
	a.lock.RLock()
	defer a.lock.RUnlock()
	b := ldvalue.ObjectBuildWithCapacity(len(a.titles))
	for id, title := range a.titles {
		b.Set(id, ldvalue.String(title))
	}
	return b.Build()
}

// Replace discards the current contents and copies in the contents of a JSON object value. A null
// value empties the set and marks it unset. Properties whose values are not strings are skipped.
func (a *AlbumSet) Replace(value ldvalue.Value) {
	titles := make(map[string]string)
	if m, ok := value.AsArbitraryValue().(map[string]interface{}); ok {
		for id, v := range m {
			if title, isString := v.(string); isString {
				titles[id] = title
			}
		}
	}
	a.lock.Lock()
	a.titles = titles
	a.isSet = !value.IsNull()
	a.lock.Unlock()
}
