// Package wire contains the JSON encodings used between replicas and a sync hub: the store update
// sent on the bus, and the namespace document exchanged with a remote backend.
package wire

import (
	"errors"
	"sort"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/interfaces"
)

//nolint:gochecknoglobals
var storeUpdateRequiredProperties = []string{"sender", "class", "values"}

// EncodeStoreUpdate returns the JSON representation of an update:
//
//	{"sender": "replica-id", "class": "replicated", "values": {"incognito": true}}
//
// Keys are written in sorted order, so that equal updates have equal encodings.
func EncodeStoreUpdate(update interfaces.StoreUpdate) []byte {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("sender").String(update.Sender)
	obj.Name("class").String(string(update.Class))
	writeValues(obj.Name("values"), update.Values)
	obj.End()
	return w.Bytes()
}

// DecodeStoreUpdate parses the output of EncodeStoreUpdate. Unknown properties are ignored.
func DecodeStoreUpdate(data []byte) (interfaces.StoreUpdate, error) {
	var ret interfaces.StoreUpdate
	r := jreader.NewReader(data)
	for obj := r.Object().WithRequiredProperties(storeUpdateRequiredProperties); obj.Next(); {
		switch string(obj.Name()) {
		case "sender":
			ret.Sender = r.String()
		case "class":
			ret.Class = interfaces.Class(r.String())
		case "values":
			ret.Values = readValues(&r)
		}
	}
	if err := r.Error(); err != nil {
		return interfaces.StoreUpdate{}, err
	}
	if !ret.Class.IsValid() {
		return interfaces.StoreUpdate{}, errors.New("unknown class: " + string(ret.Class))
	}
	return ret, nil
}

// EncodeValues returns a JSON object mapping key names to values. This is the body of a namespace
// read or write on a remote backend, and the content of a namespace file.
func EncodeValues(values map[string]ldvalue.Value) []byte {
	w := jwriter.NewWriter()
	writeValues(&w, values)
	return w.Bytes()
}

// DecodeValues parses a JSON object mapping key names to values. A JSON null document is treated
// as an empty object.
func DecodeValues(data []byte) (map[string]ldvalue.Value, error) {
	r := jreader.NewReader(data)
	values := readValues(&r)
	if err := r.Error(); err != nil {
		return nil, err
	}
	if err := r.RequireEOF(); err != nil {
		return nil, err
	}
	return values, nil
}

func writeValues(w *jwriter.Writer, values map[string]ldvalue.Value) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	obj := w.Object()
	for _, name := range names {
		values[name].WriteToJSONWriter(obj.Name(name))
	}
	obj.End()
}

func readValues(r *jreader.Reader) map[string]ldvalue.Value {
	ret := make(map[string]ldvalue.Value)
	for obj := r.ObjectOrNull(); obj.Next(); {
		name := string(obj.Name())
		var v ldvalue.Value
		v.ReadFromJSONReader(r)
		ret[name] = v
	}
	return ret
}
