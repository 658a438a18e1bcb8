package syncstore

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/interfaces"
)

// Field is a typed accessor for one key of the schema. The package provides a Field for every key
// except albums, which is accessed through Store.Albums.
//
// Fields are used with the generic functions Get, Set and Clear. Unlike the methods of Store,
// these treat use before readiness as a programming error and panic with NotReadyError.
type Field[T any] struct {
	key       interfaces.Key
	toValue   func(T) ldvalue.Value
	fromValue func(ldvalue.Value) T
}

// Key returns the schema key of the field.
func (f Field[T]) Key() interfaces.Key {
	return f.key
}

//nolint:gochecknoglobals // the fields mirror the fixed schema
var (
	Incognito     = boolField(interfaces.KeyIncognito)
	ToDirectLink  = boolField(interfaces.KeyToDirectLink)
	NoFocus       = boolField(interfaces.KeyNoFocus)
	ToClipboard   = boolField(interfaces.KeyToClipboard)
	ClipboardOnly = boolField(interfaces.KeyClipboardOnly)
	ScaleCapture  = boolField(interfaces.KeyScaleCapture)
	ToAlbums      = boolField(interfaces.KeyToAlbums)
	Authorized    = boolField(interfaces.KeyAuthorized)
	Username      = stringField(interfaces.KeyUsername)
	RefreshToken  = stringField(interfaces.KeyRefreshToken)
	AccessToken   = stringField(interfaces.KeyAccessToken)
	ValidUntil    = Field[ldtime.UnixMillisecondTime]{
		key:       interfaces.KeyValidUntil,
		toValue:   func(t ldtime.UnixMillisecondTime) ldvalue.Value { return ldvalue.Float64(float64(t)) },
		fromValue: func(v ldvalue.Value) ldtime.UnixMillisecondTime { return ldtime.UnixMillisecondTime(v.Float64Value()) },
	}
)

func boolField(key interfaces.Key) Field[bool] {
	return Field[bool]{key: key, toValue: ldvalue.Bool, fromValue: ldvalue.Value.BoolValue}
}

func stringField(key interfaces.Key) Field[string] {
	return Field[string]{key: key, toValue: ldvalue.String, fromValue: ldvalue.Value.StringValue}
}

// Get returns the value of a field, or the zero value of T if it is unset.
//
// It panics with NotReadyError if the store is not ready.
func Get[T any](s *Store, f Field[T]) T {
	v, err := s.replica.Get(f.key)
	if err != nil {
		panic(err)
	}
	return f.fromValue(v)
}

// Set changes the value of a field. See Store.Set.
//
// It panics with NotReadyError if the store is not ready.
func Set[T any](s *Store, f Field[T], value T) {
	if err := s.replica.Set(f.key, f.toValue(value)); err != nil {
		panic(err)
	}
}

// Clear unsets a field, so that Get returns the zero value and the key is deleted from its backend.
//
// It panics with NotReadyError if the store is not ready.
func Clear[T any](s *Store, f Field[T]) {
	if err := s.replica.Set(f.key, ldvalue.Null()); err != nil {
		panic(err)
	}
}

// IsSet returns true if the field has a value.
//
// It panics with NotReadyError if the store is not ready.
func IsSet[T any](s *Store, f Field[T]) bool {
	v, err := s.replica.Get(f.key)
	if err != nil {
		panic(err)
	}
	return !v.IsNull()
}
