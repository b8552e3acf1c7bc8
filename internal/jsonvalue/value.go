// Package jsonvalue models arbitrary JSON documents as a closed set of value types.
// Unlike decoding into map[string]any, object members keep the order in which they
// appeared in the source payload.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind identifies the concrete type behind a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one of Null, Bool, Number, String, Array or Object.
// The set is closed: no other package can implement it.
type Value interface {
	Kind() Kind
	json.Marshaler
	sealed()
}

// Null is the JSON null literal.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number keeps the literal text of a JSON number so no precision is lost.
type Number string

// String is a JSON string.
type String string

// Array is a JSON array in index order.
type Array []Value

// Member is a single key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is a JSON object; members are kept in source order.
type Object []Member

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Null) sealed()   {}
func (Bool) sealed()   {}
func (Number) sealed() {}
func (String) sealed() {}
func (Array) sealed()  {}
func (Object) sealed() {}

// Float64 converts the number literal.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Int64 converts the number literal; fractional literals are rejected.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Get returns the value of the last member named key.
func (o Object) Get(key string) (Value, bool) {
	for i := len(o) - 1; i >= 0; i-- {
		if o[i].Key == key {
			return o[i].Value, true
		}
	}
	return nil, false
}

// Keys returns member keys in source order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for _, m := range o {
		keys = append(keys, m.Key)
	}
	return keys
}

func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (b Bool) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatBool(bool(b))), nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("0"), nil
	}
	return []byte(n), nil
}

func (s String) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (a Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		b, err := marshalValue(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return v.MarshalJSON()
}
