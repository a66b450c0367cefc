package client

import (
	"bytes"
	"encoding"
	"encoding/json"
	"reflect"

	"luci-rpc/codec"
	"luci-rpc/protocol"
)

// Expect narrows a call result to one member and supplies a default.
//
// Key selects a single member of an object result; an empty Key uses the
// result itself. When the member is missing, null, or of a different JSON
// kind than T, Default is returned instead.
type Expect[T any] struct {
	Key     string
	Default T
}

// Projection is the outcome of applying an Expect: either a value found in
// the result or the declared default.
type Projection[T any] struct {
	Value     T
	Defaulted bool
}

func found[T any](v T) Projection[T] {
	return Projection[T]{Value: v}
}

func defaulted[T any](v T) Projection[T] {
	return Projection[T]{Value: v, Defaulted: true}
}

// project applies e to a decoded reply value.
func project[T any](cdc codec.Codec, v protocol.Value, e *Expect[T]) Projection[T] {
	if !v.Present {
		return defaulted(e.Default)
	}

	raw := v.Raw
	if e.Key != "" {
		if kindOf(raw) != kindObject {
			return defaulted(e.Default)
		}
		var members map[string]json.RawMessage
		if cdc.Decode(raw, &members) != nil {
			return defaulted(e.Default)
		}
		member, ok := members[e.Key]
		if !ok {
			return defaulted(e.Default)
		}
		raw = member
	}

	got := kindOf(raw)
	if got == kindNull || got == kindInvalid {
		return defaulted(e.Default)
	}
	if want := expectedKind(e); want != kindAny && want != got {
		return defaulted(e.Default)
	}

	var out T
	if err := cdc.Decode(raw, &out); err != nil {
		return defaulted(e.Default)
	}
	return found(out)
}

// expectedKind is the JSON kind a result must have to replace the default.
// For an interface T the dynamic type of a non-nil default decides.
func expectedKind[T any](e *Expect[T]) jsonKind {
	want := kindFor(reflect.TypeFor[T]())
	if want == kindAny && reflect.TypeFor[T]().Kind() == reflect.Interface {
		if d := any(e.Default); d != nil {
			want = kindFor(reflect.TypeOf(d))
		}
	}
	return want
}

type jsonKind int

const (
	kindInvalid jsonKind = iota
	kindAny
	kindNull
	kindObject
	kindArray
	kindString
	kindNumber
	kindBool
)

// kindOf classifies a raw JSON value by its first byte.
func kindOf(raw json.RawMessage) jsonKind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return kindInvalid
	}
	switch c := trimmed[0]; {
	case c == '{':
		return kindObject
	case c == '[':
		return kindArray
	case c == '"':
		return kindString
	case c == 't' || c == 'f':
		return kindBool
	case c == 'n':
		return kindNull
	case c == '-' || (c >= '0' && c <= '9'):
		return kindNumber
	}
	return kindInvalid
}

var (
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// kindFor is the JSON kind a Go type decodes from. Interfaces and types with
// their own decoding accept any kind.
func kindFor(t reflect.Type) jsonKind {
	if reflect.PointerTo(t).Implements(jsonUnmarshalerType) {
		return kindAny
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return kindString
	}

	switch t.Kind() {
	case reflect.Pointer:
		return kindFor(t.Elem())
	case reflect.Interface:
		return kindAny
	case reflect.Map, reflect.Struct:
		return kindObject
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return kindString
		}
		return kindArray
	case reflect.Array:
		return kindArray
	case reflect.String:
		return kindString
	case reflect.Bool:
		return kindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return kindNumber
	}
	return kindInvalid
}
