package interfaces

import (
	"fmt"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// NotReadyError is returned, or raised as a panic by the typed accessors, when a store is used
// before its initial load from the backends has completed. It indicates a programming error: the
// caller should have waited for readiness with OnReady or ReadyCh.
type NotReadyError struct {
	// Key is the key that was being accessed, if any.
	Key Key
	// Operation is "get" or "set".
	Operation string
}

func (e NotReadyError) Error() string {
	if e.Key.IsValid() {
		return fmt.Sprintf("store is not initialized yet (%s %q)", e.Operation, e.Key)
	}
	return "store is not initialized yet"
}

// UnknownKeyError is returned when a key is not part of the fixed schema.
type UnknownKeyError struct {
	// Name is the key name, when the key was given as a string.
	Name string
	// Key is the invalid key, when the key was given as a Key value.
	Key Key
}

func (e UnknownKeyError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown configuration key %q", e.Name)
	}
	return fmt.Sprintf("unknown configuration key #%d", int(e.Key))
}

// InvalidValueError is returned when a value does not have the kind required by its key.
type InvalidValueError struct {
	Key   Key
	Value ldvalue.Value
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("value %s is not a valid %s for key %q", e.Value.JSONString(), e.Key.Kind(), e.Key)
}

// CheckValue verifies that the value is acceptable for the key. A null value is always acceptable
// and means that the key is unset.
func CheckValue(key Key, value ldvalue.Value) error {
	if !key.IsValid() {
		return UnknownKeyError{Key: key}
	}
	if value.IsNull() {
		return nil
	}
	ok := false
	switch key.Kind() {
	case BoolKind:
		ok = value.Type() == ldvalue.BoolType
	case StringKind:
		ok = value.Type() == ldvalue.StringType
	case TimestampKind:
		ok = value.IsInt()
	case AlbumMapKind:
		ok = value.Type() == ldvalue.ObjectType && isStringMap(value)
	}
	if !ok {
		return InvalidValueError{Key: key, Value: value}
	}
	return nil
}

func isStringMap(value ldvalue.Value) bool {
	m, ok := value.AsArbitraryValue().(map[string]interface{})
	if !ok {
		return false
	}
	for _, v := range m {
		if _, isString := v.(string); !isString {
			return false
		}
	}
	return true
}
