package interfaces

// Key identifies one configuration value in the store.
//
// The set of keys is fixed: every valid Key is one of the constants below. The zero value is not
// a valid key, and neither is any other integer converted to Key; the store rejects those with
// UnknownKeyError.
type Key int

// Class is the durability class of a key, which determines the backend it is stored in.
type Class string

// ValueKind describes the type of value stored under a key.
type ValueKind int

const (
	// ReplicatedClass keys are synced across devices or profiles.
	ReplicatedClass Class = "replicated"
	// LocalClass keys belong to this machine or installation only.
	LocalClass Class = "local"
)

const (
	// BoolKind values are JSON booleans.
	BoolKind ValueKind = iota + 1
	// StringKind values are JSON strings.
	StringKind
	// TimestampKind values are Unix millisecond timestamps, stored as JSON numbers.
	TimestampKind
	// AlbumMapKind values are JSON objects mapping album IDs to album titles.
	AlbumMapKind
)

// The schema keys. Their declaration order is the order returned by AllKeys.
const (
	KeyIncognito Key = iota + 1
	KeyToDirectLink
	KeyNoFocus
	KeyToClipboard
	KeyClipboardOnly
	KeyScaleCapture
	KeyToAlbums
	KeyAlbums
	KeyUsername
	KeyAuthorized
	KeyRefreshToken
	KeyAccessToken
	KeyValidUntil
	endOfKeys
)

type keyInfo struct {
	name  string
	class Class
	kind  ValueKind
}

var schema = [...]keyInfo{ //nolint:gochecknoglobals
	KeyIncognito:     {"incognito", ReplicatedClass, BoolKind},
	KeyToDirectLink:  {"to_direct_link", ReplicatedClass, BoolKind},
	KeyNoFocus:       {"no_focus", ReplicatedClass, BoolKind},
	KeyToClipboard:   {"to_clipboard", ReplicatedClass, BoolKind},
	KeyClipboardOnly: {"clipboard_only", ReplicatedClass, BoolKind},
	KeyScaleCapture:  {"scale_capture", ReplicatedClass, BoolKind},
	KeyToAlbums:      {"to_albums", ReplicatedClass, BoolKind},
	KeyAlbums:        {"albums", ReplicatedClass, AlbumMapKind},
	KeyUsername:      {"username", ReplicatedClass, StringKind},
	KeyAuthorized:    {"authorized", ReplicatedClass, BoolKind},
	KeyRefreshToken:  {"refresh_token", ReplicatedClass, StringKind},
	KeyAccessToken:   {"access_token", LocalClass, StringKind},
	KeyValidUntil:    {"valid_until", LocalClass, TimestampKind},
}

var keysByName = func() map[string]Key { //nolint:gochecknoglobals
	ret := make(map[string]Key, len(schema))
	for _, k := range AllKeys() {
		ret[k.String()] = k
	}
	return ret
}()

// AllKeys returns every key in the schema.
func AllKeys() []Key {
	ret := make([]Key, 0, int(endOfKeys)-1)
	for k := KeyIncognito; k < endOfKeys; k++ {
		ret = append(ret, k)
	}
	return ret
}

// KeysOf returns the keys that belong to the specified durability class.
func KeysOf(class Class) []Key {
	var ret []Key
	for _, k := range AllKeys() {
		if k.Class() == class {
			ret = append(ret, k)
		}
	}
	return ret
}

// Classes returns both durability classes, replicated first.
func Classes() []Class {
	return []Class{ReplicatedClass, LocalClass}
}

// ParseKey returns the key with the specified name, or UnknownKeyError if there is none.
func ParseKey(name string) (Key, error) {
	if k, ok := keysByName[name]; ok {
		return k, nil
	}
	return 0, UnknownKeyError{Name: name}
}

// IsValid returns true if the key is part of the schema.
func (k Key) IsValid() bool {
	return k > 0 && k < endOfKeys
}

// String returns the key's storage name, such as "incognito".
func (k Key) String() string {
	if !k.IsValid() {
		return ""
	}
	return schema[k].name
}

// Class returns the durability class of the key, or an empty string for an invalid key.
func (k Key) Class() Class {
	if !k.IsValid() {
		return ""
	}
	return schema[k].class
}

// Kind returns the value kind of the key, or zero for an invalid key.
func (k Key) Kind() ValueKind {
	if !k.IsValid() {
		return 0
	}
	return schema[k].kind
}

// IsValid returns true if this is one of the two durability classes.
func (c Class) IsValid() bool {
	return c == ReplicatedClass || c == LocalClass
}

func (v ValueKind) String() string {
	switch v {
	case BoolKind:
		return "bool"
	case StringKind:
		return "string"
	case TimestampKind:
		return "timestamp"
	case AlbumMapKind:
		return "album map"
	default:
		return "unknown"
	}
}
